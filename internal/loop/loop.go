// Package loop runs a frame.Scheduler on a single goroutine.
//
// The Loop is both the scheduler's FrameClock (a ticker firing at the configured frame
// rate, stopped while no tick is requested) and its only caller: other goroutines hand
// it work with Post or Do, and that work runs between frames on the loop goroutine.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"golang.org/x/time/rate"

	"framed/internal/clock"
	"framed/internal/eventbus"
	"framed/internal/frame"
	logx "framed/pkg/logx"
)

var ErrRunning = errors.New("loop already running")

const (
	DefaultFPS = 60
	MaxFPS     = 1000
)

type Config struct {
	FPS int
	// SlowFrame is the dispatch duration above which a frame is reported slow.
	// 0 disables the check.
	SlowFrame time.Duration
	// SlowFrameWarnPerSec limits slow-frame warnings. Defaults to 1.
	SlowFrameWarnPerSec float64
}

func (c Config) interval() time.Duration {
	fps := c.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	if fps > MaxFPS {
		fps = MaxFPS
	}
	return time.Second / time.Duration(fps)
}

type Loop struct {
	log logx.Logger
	bus eventbus.Bus
	now *clock.Monotonic

	sched *frame.Scheduler

	// Owned by the loop goroutine.
	pending  func(timestamp float64)
	ticker   *time.Ticker
	interval time.Duration

	mu      sync.Mutex
	cfg     Config
	work    *queue.Queue // of func(*frame.Scheduler)
	limiter *rate.Limiter

	wake    chan struct{}
	running atomic.Bool
	frames  atomic.Uint64
	slow    atomic.Uint64
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Loop {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	l := &Loop{
		log:  log,
		bus:  bus,
		now:  clock.NewMonotonic(),
		work: queue.New(),
		wake: make(chan struct{}, 1),
	}
	l.applyLocked(cfg)
	l.sched = frame.New(l, l.now)
	l.sched.OnStateChange(l.onStateChange)
	return l
}

// Apply updates frame rate and slow-frame settings. Safe for concurrent use.
func (l *Loop) Apply(cfg Config) {
	l.mu.Lock()
	l.applyLocked(cfg)
	l.mu.Unlock()
	l.signal()
}

func (l *Loop) applyLocked(cfg Config) {
	rps := cfg.SlowFrameWarnPerSec
	if rps <= 0 {
		rps = 1
	}
	if l.limiter == nil || l.cfg.SlowFrameWarnPerSec != cfg.SlowFrameWarnPerSec {
		l.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	l.cfg = cfg
}

func (l *Loop) Config() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// Now returns the loop's time source reading in milliseconds.
func (l *Loop) Now() float64 { return l.now.Now() }

// Epoch is the wall time of timestamp 0.
func (l *Loop) Epoch() time.Time { return l.now.Epoch() }

// RequestTick implements frame.FrameClock. It must only be called on the loop goroutine,
// which is always the case when called by the loop's own scheduler.
func (l *Loop) RequestTick(driver func(timestamp float64)) { l.pending = driver }

// Post queues fn to run on the loop goroutine. It never blocks.
func (l *Loop) Post(fn func(s *frame.Scheduler)) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.work.Add(fn)
	l.mu.Unlock()
	l.signal()
}

// Do runs fn on the loop goroutine and waits for its result.
// If ctx ends before fn starts, fn is skipped and Do returns ctx.Err(). Once fn
// has started, Do waits for it, so a nil error always means fn ran.
// If fn panics, Do returns an error and the panic continues on the loop goroutine.
func (l *Loop) Do(ctx context.Context, fn func(s *frame.Scheduler) error) error {
	if fn == nil {
		return nil
	}
	const (
		pending int32 = iota
		started
		abandoned
	)
	var st atomic.Int32
	done := make(chan error, 1)
	l.Post(func(s *frame.Scheduler) {
		if !st.CompareAndSwap(pending, started) {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("loop: panic in posted work: %v", r)
				panic(r)
			}
		}()
		done <- fn(s)
	})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if st.CompareAndSwap(pending, abandoned) {
			return ctx.Err()
		}
		return <-done
	}
}

// Snapshot returns the scheduler snapshot, read on the loop goroutine.
func (l *Loop) Snapshot(ctx context.Context) (frame.Snapshot, error) {
	var snap frame.Snapshot
	err := l.Do(ctx, func(s *frame.Scheduler) error {
		snap = s.Snapshot()
		return nil
	})
	return snap, err
}

// Frames returns the number of ticks fired so far.
func (l *Loop) Frames() uint64 { return l.frames.Load() }

// SlowFrames returns the number of ticks that exceeded the slow-frame budget.
func (l *Loop) SlowFrames() uint64 { return l.slow.Load() }

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run drives the scheduler until ctx is done. Panics from consumer callbacks or posted
// work propagate to the caller; Run may be called again afterwards and resumes with the
// same scheduler state.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer l.running.Store(false)
	defer l.stopTicker()

	l.log.Debug("frame loop started", logx.Duration("interval", l.Config().interval()))
	for {
		l.drain()
		tickC := l.syncTicker()

		select {
		case <-ctx.Done():
			l.log.Debug("frame loop stopped", logx.Uint64("frames", l.frames.Load()))
			return ctx.Err()
		case <-l.wake:
		case <-tickC:
			l.fire()
		}
	}
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if l.work.Length() == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.work.Remove().(func(*frame.Scheduler))
		l.mu.Unlock()
		fn(l.sched)
	}
}

// syncTicker runs the ticker only while a tick is requested.
func (l *Loop) syncTicker() <-chan time.Time {
	if l.pending == nil {
		l.stopTicker()
		return nil
	}
	iv := l.Config().interval()
	switch {
	case l.ticker == nil:
		l.ticker = time.NewTicker(iv)
		l.interval = iv
	case l.interval != iv:
		l.ticker.Reset(iv)
		l.interval = iv
	}
	return l.ticker.C
}

func (l *Loop) stopTicker() {
	if l.ticker != nil {
		l.ticker.Stop()
		l.ticker = nil
	}
}

func (l *Loop) fire() {
	d := l.pending
	if d == nil {
		return
	}
	l.pending = nil
	l.frames.Add(1)

	start := time.Now()
	d(l.now.Now())
	took := time.Since(start)

	l.mu.Lock()
	budget := l.cfg.SlowFrame
	lim := l.limiter
	l.mu.Unlock()
	if budget <= 0 || took <= budget {
		return
	}
	l.slow.Add(1)
	l.bus.Publish(eventbus.Event{Type: eventbus.FrameSlow, Data: took})
	if lim.Allow() {
		l.log.Warn("slow frame", logx.Duration("took", took), logx.Duration("budget", budget), logx.Uint64("slow_total", l.slow.Load()))
	}
}

func (l *Loop) onStateChange(st frame.State) {
	snap := l.sched.Snapshot()
	typ := eventbus.FrameIdle
	if st == frame.StateSubscribed {
		typ = eventbus.FrameSubscribed
	}
	l.log.Debug("frame clock "+st.String(), logx.Int("registrations", snap.Registrations), logx.Uint64("ticks", snap.Ticks))
	l.bus.Publish(eventbus.Event{Type: typ, Data: snap})
}
