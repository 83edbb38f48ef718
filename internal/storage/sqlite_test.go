//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "framed/pkg/logx"
)

func TestSQLiteStorePrunesToKeep(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "framed.db")
	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second, Keep: 5}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	s := st.(*sqliteStore)
	s.pruneEvery = 4

	ctx := context.Background()
	base := time.Unix(1000, 0)
	for i := 1; i <= 12; i++ {
		if err := st.AppendSample(ctx, Sample{At: base.Add(time.Duration(i) * time.Second), Frames: i}); err != nil {
			t.Fatalf("AppendSample: %v", err)
		}
	}

	got, err := st.RecentSamples(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Frames != 10 || got[2].Frames != 12 {
		t.Fatalf("recent = %+v", got)
	}
	if !got[2].At.Equal(base.Add(12 * time.Second)) {
		t.Fatalf("at = %v", got[2].At)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM samples`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	// pruned to keep at the 12th insert
	if n != 5 {
		t.Fatalf("rows = %d, want 5", n)
	}
}
