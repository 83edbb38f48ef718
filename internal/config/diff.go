package config

import (
	"strings"

	logx "framed/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and structured attrs
// describing their new values, for logging.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Clock.FPS != newCfg.Clock.FPS ||
		strings.TrimSpace(oldCfg.Clock.SlowFrame) != strings.TrimSpace(newCfg.Clock.SlowFrame) ||
		oldCfg.Clock.SlowFrameWarnPerSec != newCfg.Clock.SlowFrameWarnPerSec {
		changed = append(changed, "clock")
		attrs = append(attrs,
			logx.Int("clock.fps", newCfg.Clock.FPS),
			logx.String("clock.slow_frame", strings.TrimSpace(newCfg.Clock.SlowFrame)),
		)
	}

	if oldCfg.Stats.Enabled != newCfg.Stats.Enabled ||
		strings.TrimSpace(oldCfg.Stats.Flush) != strings.TrimSpace(newCfg.Stats.Flush) {
		changed = append(changed, "stats")
		attrs = append(attrs,
			logx.Bool("stats.enabled", newCfg.Stats.Enabled),
			logx.String("stats.flush", strings.TrimSpace(newCfg.Stats.Flush)),
		)
	}

	// Storage is opened once at startup; report the change so the operator knows a restart is needed.
	var oldSt, newSt StorageConfig
	if oldCfg.Storage != nil {
		oldSt = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		newSt = *newCfg.Storage
	}
	if oldSt != newSt {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newSt.Driver)),
			logx.Bool("storage.restart_required", true),
		)
	}

	if oldCfg.Systemd != newCfg.Systemd {
		changed = append(changed, "systemd")
		attrs = append(attrs, logx.Bool("systemd.notify", newCfg.Systemd.Notify))
	}

	if oldCfg.Demo != newCfg.Demo {
		changed = append(changed, "demo")
		attrs = append(attrs,
			logx.Bool("demo.enabled", newCfg.Demo.Enabled),
			logx.Float64("demo.speed", newCfg.Demo.Speed),
		)
	}

	// never log the token
	if oldCfg.Debug != newCfg.Debug {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", newCfg.Debug.Enabled),
			logx.String("debug.addr", strings.TrimSpace(newCfg.Debug.Addr)),
			logx.Bool("debug.token_set", strings.TrimSpace(newCfg.Debug.Token) != ""),
			logx.Bool("debug.pprof", newCfg.Debug.Pprof),
		)
	}

	return changed, attrs
}
