// Package watchdog reports service state to systemd.
//
// Readiness and stopping are sent once. When the unit has WatchdogSec set, a frame
// consumer pings the watchdog, so systemd restarts the service if frames stop being
// dispatched (for example a callback that never returns).
package watchdog

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"framed/internal/frame"
	logx "framed/pkg/logx"
)

// Notifier sends sd_notify messages. It reports false when no notify socket is set.
type Notifier interface {
	Notify(state string) (bool, error)
}

type sdNotifier struct{}

func (sdNotifier) Notify(state string) (bool, error) { return daemon.SdNotify(false, state) }

// Runner executes work on the frame loop goroutine.
type Runner interface {
	Do(ctx context.Context, fn func(s *frame.Scheduler) error) error
}

type Option func(*Watchdog)

// WithNotifier replaces the sd_notify socket client.
func WithNotifier(n Notifier) Option { return func(w *Watchdog) { w.n = n } }

// WithInterval overrides the ping interval read from WATCHDOG_USEC.
func WithInterval(d time.Duration) Option { return func(w *Watchdog) { w.interval = d } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(w *Watchdog) { w.now = now } }

type Watchdog struct {
	log      logx.Logger
	n        Notifier
	interval time.Duration
	now      func() time.Time

	// loop goroutine only
	last   time.Time
	handle frame.Handle

	attached atomic.Bool
	pings    atomic.Uint64
}

func New(log logx.Logger, opts ...Option) *Watchdog {
	if log.IsZero() {
		log = logx.Nop()
	}
	w := &Watchdog{log: log, n: sdNotifier{}, now: time.Now, interval: -1}
	for _, o := range opts {
		o(w)
	}
	if w.interval < 0 {
		w.interval = 0
		d, err := daemon.SdWatchdogEnabled(false)
		if err != nil {
			log.Warn("invalid systemd watchdog environment", logx.Err(err))
		} else if d > 0 {
			// Ping twice per period, as sd_watchdog_enabled(3) recommends.
			w.interval = d / 2
		}
	}
	return w
}

// Enabled reports whether watchdog pings are expected.
func (w *Watchdog) Enabled() bool { return w.interval > 0 }

// Pings returns the number of watchdog pings sent.
func (w *Watchdog) Pings() uint64 { return w.pings.Load() }

func (w *Watchdog) Ready() error { return w.send(daemon.SdNotifyReady) }

func (w *Watchdog) Stopping() error { return w.send(daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
func (w *Watchdog) Status(format string, args ...any) error {
	return w.send("STATUS=" + fmt.Sprintf(format, args...))
}

func (w *Watchdog) send(state string) error {
	sent, err := w.n.Notify(state)
	if err != nil {
		return fmt.Errorf("sd_notify %q: %w", state, err)
	}
	if sent {
		w.log.Trace("sd_notify sent", logx.String("state", state))
	}
	return nil
}

// Animate implements frame.Animator.
func (w *Watchdog) Animate(delta float64) {
	_ = delta
	now := w.now()
	if !w.last.IsZero() && now.Sub(w.last) < w.interval {
		return
	}
	w.last = now
	if err := w.send(daemon.SdNotifyWatchdog); err != nil {
		w.log.Warn("watchdog ping failed", logx.Err(err))
		return
	}
	w.pings.Add(1)
}

// Attach registers the watchdog consumer if the watchdog is enabled.
func (w *Watchdog) Attach(ctx context.Context, run Runner) error {
	if !w.Enabled() || w.attached.Load() {
		return nil
	}
	err := run.Do(ctx, func(s *frame.Scheduler) error {
		h, err := s.Register(w)
		if err != nil {
			return err
		}
		w.handle = h
		return nil
	})
	if err != nil {
		return fmt.Errorf("watchdog: %w", err)
	}
	w.attached.Store(true)
	w.log.Info("systemd watchdog attached", logx.Duration("interval", w.interval))
	return nil
}

// Detach cancels the watchdog consumer.
func (w *Watchdog) Detach(ctx context.Context, run Runner) error {
	if !w.attached.CompareAndSwap(true, false) {
		return nil
	}
	return run.Do(ctx, func(s *frame.Scheduler) error { return s.Cancel(w.handle) })
}
