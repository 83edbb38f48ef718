package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"framed/internal/config"
	"framed/internal/debugsrv"
	"framed/internal/demo"
	"framed/internal/eventbus"
	"framed/internal/loop"
	"framed/internal/runtime/supervisor"
	"framed/internal/stats"
	"framed/internal/storage"
	"framed/internal/watchdog"
	logx "framed/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	loop     *loop.Loop
	reporter *stats.Reporter
	spinner  *demo.Spinner
	wd       *watchdog.Watchdog // nil unless systemd.notify
	debug    *debugsrv.Server

	// mu serializes applyConfig and the consumer part of Stop.
	mu      sync.Mutex
	stopped bool
	statsOn bool
	demoOn  bool
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	loopCfg, err := mapLoopConfig(cfg)
	if err != nil {
		return nil, err
	}
	statsCfg, err := mapStatsConfig(cfg)
	if err != nil {
		return nil, err
	}
	debugCfg, err := mapDebugConfig(cfg)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	appLog := log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Storage (optional)
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
		store = st
		appLog.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	lp := loop.New(loopCfg, log.With(logx.String("comp", "loop")), bus)

	a := &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      appLog,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		loop:     lp,
		reporter: stats.NewReporter(statsCfg, lp, store, log.With(logx.String("comp", "stats")), bus),
		spinner:  demo.NewSpinner(demoSpeed(cfg), log.With(logx.String("comp", "demo"))),
	}
	a.debug = debugsrv.New(debugCfg, lp, a.reporter.Last, log.With(logx.String("comp", "debug")))
	if cfg.Systemd.Notify {
		a.wd = watchdog.New(log.With(logx.String("comp", "watchdog")))
	}
	return a, nil
}

// Loop returns the frame loop that owns the scheduler.
func (a *App) Loop() *loop.Loop { return a.loop }

// Reporter returns the stats reporter (it is idle when stats are disabled).
func (a *App) Reporter() *stats.Reporter { return a.reporter }

// Bus returns the app event bus.
func (a *App) Bus() eventbus.Bus { return a.bus }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapLoopConfig(cfg); err != nil {
			return err
		}
		if _, err := mapStatsConfig(cfg); err != nil {
			return err
		}
		if _, err := mapDebugConfig(cfg); err != nil {
			return err
		}
		_, _, err := mapStorageConfig(cfg)
		return err
	})

	// Consumer panics propagate out of Run; the loop is restarted with the same
	// scheduler state.
	a.sup.GoRestart("frame.loop", a.loop.Run,
		supervisor.WithRestartBackoff(100*time.Millisecond, 5*time.Second),
		supervisor.WithMaxRestarts(10),
	)

	run := a.sup.Context()
	cfg := a.cfgm.Get()
	if cfg.Stats.Enabled {
		if err := a.reporter.Start(run); err != nil {
			return err
		}
		a.statsOn = true
	}
	if cfg.Demo.Enabled {
		if err := a.spinner.Attach(run, a.loop); err != nil {
			return err
		}
		a.demoOn = true
	}
	if a.wd != nil {
		if err := a.wd.Attach(run, a.loop); err != nil {
			return err
		}
	}

	// debug server is optional observability; it runs under its own supervisor.
	a.debug.Start(run)

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.onEvent(e)
			}
		}
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", a.cfgm.Watch)

	if a.wd != nil {
		if err := a.wd.Ready(); err != nil {
			a.log.Warn("sd_notify ready failed", logx.Err(err))
		}
	}
	a.log.Info("app started",
		logx.Int("fps", cfg.Clock.FPS),
		logx.Bool("stats", a.statsOn),
		logx.Bool("demo", a.demoOn),
	)
	return nil
}

func (a *App) onEvent(e eventbus.Event) {
	// Keep this debug-level; frame.* events follow every idle/subscribed flip.
	a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
	if a.wd == nil || e.Type != eventbus.StatsFlushed {
		return
	}
	if smp, ok := e.Data.(storage.Sample); ok {
		if err := a.wd.Status("fps=%.1f registrations=%d jank=%d", smp.FPS, smp.Registrations, smp.Jank); err != nil {
			a.log.Debug("sd_notify status failed", logx.Err(err))
		}
	}
}

// applyConfig runs on the config.reload goroutine only.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	for _, s := range sections {
		if s == "storage" || s == "systemd" {
			a.log.Warn("config section changed; restart required for changes to take effect", logx.String("section", s))
		}
	}

	a.logs.Apply(mapLogConfig(newCfg))

	if lc, err := mapLoopConfig(newCfg); err != nil {
		a.log.Warn("invalid clock config; keeping previous", logx.Err(err))
	} else {
		a.loop.Apply(lc)
	}

	if sc, err := mapStatsConfig(newCfg); err != nil {
		a.log.Warn("invalid stats config; keeping previous", logx.Err(err))
	} else {
		switch {
		case a.statsOn && !newCfg.Stats.Enabled:
			a.log.Info("stats disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			if err := a.reporter.Stop(stopCtx); err != nil {
				a.log.Warn("stats stop failed", logx.Err(err))
			}
			cancel()
			a.statsOn = false
		case !a.statsOn && newCfg.Stats.Enabled:
			a.log.Info("stats enabled via config")
			if err := a.reporter.Apply(ctx, sc); err != nil {
				a.log.Warn("stats apply failed", logx.Err(err))
			} else if err := a.reporter.Start(ctx); err != nil {
				a.log.Warn("stats start failed", logx.Err(err))
			} else {
				a.statsOn = true
			}
		default:
			if err := a.reporter.Apply(ctx, sc); err != nil {
				a.log.Warn("stats apply failed", logx.Err(err))
			}
		}
	}

	switch {
	case a.demoOn && !newCfg.Demo.Enabled:
		if err := a.spinner.Dispose(ctx, a.loop); err != nil {
			a.log.Warn("demo dispose failed", logx.Err(err))
		} else {
			a.demoOn = false
		}
	case !a.demoOn && newCfg.Demo.Enabled:
		if err := a.spinner.SetSpeed(ctx, a.loop, demoSpeed(newCfg)); err != nil {
			a.log.Warn("demo speed update failed", logx.Err(err))
		}
		if err := a.spinner.Attach(ctx, a.loop); err != nil {
			a.log.Warn("demo attach failed", logx.Err(err))
		} else {
			a.demoOn = true
		}
	case a.demoOn && oldCfg.Demo.Speed != newCfg.Demo.Speed:
		if err := a.spinner.SetSpeed(ctx, a.loop, demoSpeed(newCfg)); err != nil {
			a.log.Warn("demo speed update failed", logx.Err(err))
		}
	}

	if dc, err := mapDebugConfig(newCfg); err != nil {
		a.log.Warn("invalid debug config; keeping previous", logx.Err(err))
	} else {
		a.debug.Reconfigure(ctx, dc)
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.ConfigApplied, Data: sections})
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if a.wd != nil {
		if err := a.wd.Stopping(); err != nil {
			a.log.Warn("sd_notify stopping failed", logx.Err(err))
		}
	}

	// Consumers detach through the loop, so it keeps running until they are gone.
	var errs []error
	a.mu.Lock()
	statsOn, demoOn := a.statsOn, a.demoOn
	a.statsOn, a.demoOn = false, false
	a.stopped = true
	a.step(ctx, "stats", 3*time.Second, func(c context.Context) error {
		if !statsOn {
			return nil
		}
		return a.reporter.Stop(c)
	}, &errs)
	a.step(ctx, "demo", time.Second, func(c context.Context) error {
		if !demoOn {
			return nil
		}
		return a.spinner.Dispose(c, a.loop)
	}, &errs)
	a.step(ctx, "watchdog", time.Second, func(c context.Context) error {
		if a.wd == nil {
			return nil
		}
		return a.wd.Detach(c, a.loop)
	}, &errs)
	a.mu.Unlock()

	a.step(ctx, "debug", time.Second, func(c context.Context) error {
		a.debug.Stop(c)
		return nil
	}, &errs)

	a.sup.Cancel()

	a.step(ctx, "storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	}, &errs)

	// Finally, wait for supervised goroutines (loop, config watch/reload).
	a.step(ctx, "supervisor", 2*time.Second, func(c context.Context) error {
		err := a.sup.Wait(c)
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("supervised goroutines still running: %w", err)
		}
		return nil
	}, &errs)

	a.log.Info("stopped", logx.Uint64("frames", a.loop.Frames()), logx.Uint64("slow_frames", a.loop.SlowFrames()))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return errors.Join(errs...)
}
