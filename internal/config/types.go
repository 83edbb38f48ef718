package config

// Config is the on-disk configuration for framed.
//
// All durations are Go duration strings (e.g. "16ms", "10s").
type Config struct {
	Logging LoggingConfig  `json:"logging"`
	Clock   ClockConfig    `json:"clock"`
	Stats   StatsConfig    `json:"stats"`
	Storage *StorageConfig `json:"storage,omitempty"`
	Systemd SystemdConfig  `json:"systemd"`
	Demo    DemoConfig     `json:"demo"`
	Debug   DebugConfig    `json:"debug,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ClockConfig controls the frame loop.
//
// Defaults (when fields are omitted/zero):
//   - fps: 60 (max 1000)
//   - slow_frame: "0s" (disabled)
//   - slow_frame_warn_per_sec: 1
type ClockConfig struct {
	FPS int `json:"fps,omitempty"`
	// SlowFrame is the dispatch duration above which a frame is logged as slow.
	SlowFrame           string  `json:"slow_frame,omitempty"`
	SlowFrameWarnPerSec float64 `json:"slow_frame_warn_per_sec,omitempty"`
}

// StatsConfig controls the frame statistics reporter.
//
// Flush is a cron spec (5 or 6 fields, or a descriptor like "@every 10s").
type StatsConfig struct {
	Enabled bool   `json:"enabled"`
	Flush   string `json:"flush,omitempty"`
}

// StorageConfig controls persistence of stats samples.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/framed", "keep": 500 }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
	Keep        int    `json:"keep,omitempty"`
}

// SystemdConfig controls sd_notify integration. Without NOTIFY_SOCKET it is a no-op.
type SystemdConfig struct {
	Notify bool `json:"notify"`
}

// DemoConfig registers the sample spinner consumer.
type DemoConfig struct {
	Enabled bool `json:"enabled"`
	// Speed in degrees per second. Default 90.
	Speed float64 `json:"speed,omitempty"`
}

// DebugConfig controls the optional debug HTTP server (/healthz, /frame, /stats and
// optionally /debug/pprof/).
//
// Security:
//   - Prefer binding to localhost (default "127.0.0.1:6060").
//   - If binding to a non-loopback address, set Token or enable AllowInsecure.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`
}
