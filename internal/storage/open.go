package storage

import (
	"context"
	"fmt"
	"strings"

	logx "framed/pkg/logx"
)

// Store is the persistence API used by the stats reporter and the CLI.
type Store interface {
	AppendSample(ctx context.Context, s Sample) error
	// RecentSamples returns up to limit samples, oldest first. limit <= 0 means all retained.
	RecentSamples(ctx context.Context, limit int) ([]Sample, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}
