package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	logx "framed/pkg/logx"
)

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// Validate performs the checks that need no other package. Component-specific checks
// (such as cron specs) are installed by the app via SetValidator.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if !logx.ValidLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	if cfg.Clock.FPS < 0 || cfg.Clock.FPS > 1000 {
		errs = append(errs, fmt.Errorf("clock.fps: must be within 0..1000, got %d", cfg.Clock.FPS))
	}
	if _, err := ParseDurationField("clock.slow_frame", cfg.Clock.SlowFrame); err != nil {
		errs = append(errs, err)
	}
	if cfg.Clock.SlowFrameWarnPerSec < 0 {
		errs = append(errs, errors.New("clock.slow_frame_warn_per_sec: must be >= 0"))
	}
	if sc := cfg.Storage; sc != nil {
		switch strings.ToLower(strings.TrimSpace(sc.Driver)) {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(sc.Path) == "" {
				errs = append(errs, errors.New("storage.path: required"))
			}
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", sc.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", sc.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
		if sc.Keep < 0 {
			errs = append(errs, errors.New("storage.keep: must be >= 0"))
		}
	}
	if cfg.Demo.Speed < 0 {
		errs = append(errs, errors.New("demo.speed: must be >= 0"))
	}
	return errors.Join(errs...)
}
