//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	logx "framed/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db   *sql.DB
	log  logx.Logger
	keep int

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, keep: cfg.keep(), pruneEvery: 100}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendSample(ctx context.Context, smp Sample) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if smp.At.IsZero() {
		smp.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO samples(at, window_s, frames, fps, min_delta, max_delta, avg_delta, jank, registrations)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		smp.At.UTC().Format(time.RFC3339Nano), smp.Window, smp.Frames, smp.FPS,
		smp.MinDelta, smp.MaxDelta, smp.AvgDelta, smp.Jank, smp.Registrations,
	)
	if err != nil {
		return err
	}
	if s.opCount.Add(1)%s.pruneEvery == 0 {
		if err := s.prune(ctx); err != nil {
			s.log.Debug("samples prune failed", logx.Err(err))
		}
	}
	return nil
}

func (s *sqliteStore) prune(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM samples WHERE id <= (SELECT id FROM samples ORDER BY id DESC LIMIT 1 OFFSET ?)`, s.keep)
	return err
}

func (s *sqliteStore) RecentSamples(ctx context.Context, limit int) ([]Sample, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 || limit > s.keep {
		limit = s.keep
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, window_s, frames, fps, min_delta, max_delta, avg_delta, jank, registrations
		 FROM samples ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var (
			smp Sample
			at  string
		)
		if err := rows.Scan(&at, &smp.Window, &smp.Frames, &smp.FPS, &smp.MinDelta, &smp.MaxDelta, &smp.AvgDelta, &smp.Jank, &smp.Registrations); err != nil {
			return nil, err
		}
		smp.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// newest first from the query; callers want oldest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
