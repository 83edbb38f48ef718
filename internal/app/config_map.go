package app

import (
	"strings"
	"time"

	"framed/internal/config"
	"framed/internal/debugsrv"
	"framed/internal/loop"
	"framed/internal/stats"
	"framed/internal/storage"
	logx "framed/pkg/logx"
)

const defaultDemoSpeed = 90

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    strings.TrimSpace(cfg.Logging.File.Path),
		},
	}
}

func mapLoopConfig(cfg *config.Config) (loop.Config, error) {
	slow, err := config.ParseDurationField("clock.slow_frame", cfg.Clock.SlowFrame)
	if err != nil {
		return loop.Config{}, err
	}
	return loop.Config{
		FPS:                 cfg.Clock.FPS,
		SlowFrame:           slow,
		SlowFrameWarnPerSec: cfg.Clock.SlowFrameWarnPerSec,
	}, nil
}

func mapStatsConfig(cfg *config.Config) (stats.Config, error) {
	sc := stats.Config{Flush: strings.TrimSpace(cfg.Stats.Flush), FPS: cfg.Clock.FPS}
	if sc.Flush != "" {
		if _, err := stats.ParseFlush(sc.Flush); err != nil {
			return stats.Config{}, err
		}
	}
	return sc, nil
}

// mapStorageConfig returns (cfg, enabled, err).
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        strings.TrimSpace(sc.Path),
		BusyTimeout: busy,
		Keep:        sc.Keep,
	}, true, nil
}

func mapDebugConfig(cfg *config.Config) (debugsrv.Config, error) {
	dc := debugsrv.Config{
		Enabled:       cfg.Debug.Enabled,
		Addr:          strings.TrimSpace(cfg.Debug.Addr),
		Token:         strings.TrimSpace(cfg.Debug.Token),
		AllowInsecure: cfg.Debug.AllowInsecure,
		Pprof:         cfg.Debug.Pprof,
	}
	return dc, dc.Check()
}

func demoSpeed(cfg *config.Config) float64 {
	if cfg.Demo.Speed > 0 {
		return cfg.Demo.Speed
	}
	return defaultDemoSpeed
}

// OpenStore opens the store named by the config file at path. It returns (nil, nil)
// when storage is disabled.
func OpenStore(path string, log logx.Logger) (storage.Store, error) {
	cfg, err := config.NewConfigManager(path).Load()
	if err != nil {
		return nil, err
	}
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil || !enabled {
		return nil, err
	}
	return storage.Open(sc, log)
}
