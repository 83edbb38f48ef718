package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"framed/internal/eventbus"
	"framed/internal/storage"
	logx "framed/pkg/logx"
)

func writeConfig(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cases := map[string]string{
		"bad fps":   `{"clock":{"fps":-3}}`,
		"bad flush": `{"stats":{"enabled":true,"flush":"whenever"}}`,
		"unknown":   `{"clocks":{}}`,
	}
	for name, data := range cases {
		path := filepath.Join(dir, name+".json")
		writeConfig(t, path, data)
		if _, err := NewApp(path); err == nil {
			t.Fatalf("%s: NewApp accepted invalid config", name)
		}
	}
	if _, err := NewApp(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("NewApp accepted a missing file")
	}
}

func TestAppLifecycle(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "framed.json")
	dataPath := filepath.Join(dir, "data", "framed")
	writeConfig(t, cfgPath, `{
		"logging": {"level": "error"},
		"clock": {"fps": 200},
		"stats": {"enabled": true, "flush": "@every 1h"},
		"storage": {"driver": "file", "path": "`+filepath.ToSlash(dataPath)+`"},
		"demo": {"enabled": true, "speed": 3600}
	}`)

	a, err := NewApp(cfgPath)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	events, unsub := a.Bus().Subscribe(64)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for a.Loop().Frames() < 5 {
		if time.Now().After(deadline) {
			t.Fatalf("loop did not dispatch frames")
		}
		time.Sleep(10 * time.Millisecond)
	}

	writeConfig(t, cfgPath, `{
		"logging": {"level": "error"},
		"clock": {"fps": 100},
		"stats": {"enabled": true, "flush": "@every 1h"},
		"storage": {"driver": "file", "path": "`+filepath.ToSlash(dataPath)+`"},
		"demo": {"enabled": false}
	}`)
	if _, err := a.cfgm.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	waitFor(t, events, eventbus.ConfigApplied)
	if a.spinner.Attached() {
		t.Fatalf("spinner still attached after demo was disabled")
	}
	if got := a.Loop().Config().FPS; got != 100 {
		t.Fatalf("fps = %d, want 100", got)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, StopAppStop); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-a.Done():
	default:
		t.Fatalf("Done not closed after Stop")
	}
	if err := a.Err(); err != nil {
		t.Fatalf("Err = %v", err)
	}

	st, err := storage.Open(storage.Config{Driver: "file", Path: dataPath}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	saved, err := st.RecentSamples(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 1 || saved[0].Frames == 0 {
		t.Fatalf("final flush not stored: %+v", saved)
	}
}

func waitFor(t *testing.T, events <-chan eventbus.Event, typ string) {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Type == typ {
				return
			}
		case <-timeout:
			t.Fatalf("no %s event", typ)
		}
	}
}
