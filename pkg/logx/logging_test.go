package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "info").With(String("comp", "loop"))

	log.Debug("hidden")
	log.Info("tick", Int("n", 3), Float64("delta", 0.016), Err(errors.New("boom")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if m["comp"] != "loop" || m["message"] != "tick" || m["n"] != float64(3) || m["err"] != "boom" {
		t.Fatalf("unexpected entry: %v", m)
	}
	if c, _ := m["caller"].(string); !strings.HasPrefix(c, "logging_test.go:") {
		t.Fatalf("caller = %q, want short file:line", c)
	}
}

func TestNopAndZeroLogger(t *testing.T) {
	var zero Logger
	if !zero.IsZero() {
		t.Fatalf("zero value should report IsZero")
	}
	zero.Info("must not panic")
	Nop().Error("must not panic")
	if Nop().IsZero() {
		t.Fatalf("Nop should not report IsZero")
	}
}

func TestServiceApplySwapsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framed.log")
	svc, log := New(Config{Level: "error", File: FileConfig{Enabled: true, Path: path}})
	defer svc.Close()

	if log.Enabled(LevelInfo) {
		t.Fatalf("info enabled at error level")
	}
	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	if !log.Enabled(LevelDebug) {
		t.Fatalf("existing logger did not follow Apply")
	}
	if got := svc.Config().Level; got != "debug" {
		t.Fatalf("Config().Level = %q", got)
	}
}

func TestValidLevel(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"", "info", "WARN", " debug "} {
		if !ValidLevel(s) {
			t.Fatalf("ValidLevel(%q) = false", s)
		}
	}
	if ValidLevel("loud") {
		t.Fatalf("ValidLevel(loud) = true")
	}
	if ParseLevel("nonsense") != LevelInfo {
		t.Fatalf("ParseLevel fallback is not info")
	}
}
