package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "framed/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for missing path")
	}
}

func TestFileStoreAppendAndRecent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "data", "framed")
	st, err := Open(Config{Driver: "file", Path: path, Keep: 3}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		if err := st.AppendSample(ctx, Sample{At: base.Add(time.Duration(i) * time.Second), Frames: i}); err != nil {
			t.Fatalf("AppendSample error: %v", err)
		}
	}

	got, err := st.RecentSamples(ctx, 0)
	if err != nil {
		t.Fatalf("RecentSamples error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d samples, want 3", len(got))
	}
	for i, want := range []int{5, 6, 7} {
		if got[i].Frames != want {
			t.Fatalf("samples = %+v, want frames 5,6,7", got)
		}
	}
	two, _ := st.RecentSamples(ctx, 2)
	if len(two) != 2 || two[0].Frames != 6 || two[1].Frames != 7 {
		t.Fatalf("RecentSamples(2) = %+v", two)
	}

	if err := st.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := st.AppendSample(ctx, Sample{}); err != ErrClosed {
		t.Fatalf("append after close err = %v, want ErrClosed", err)
	}

	// Reopen: retained samples survive, line count is restored.
	st2, err := Open(Config{Driver: "file", Path: path, Keep: 3}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer st2.Close()
	got, _ = st2.RecentSamples(ctx, 10)
	if len(got) != 3 || got[2].Frames != 7 || !got[2].At.Equal(base.Add(7*time.Second)) {
		t.Fatalf("after reopen = %+v", got)
	}
	fs := st2.(*fileStore)
	if fs.lines > 2*fs.keep {
		t.Fatalf("lines = %d, compaction did not run", fs.lines)
	}
}
