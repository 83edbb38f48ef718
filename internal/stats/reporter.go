package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"framed/internal/eventbus"
	"framed/internal/frame"
	"framed/internal/storage"
	logx "framed/pkg/logx"
)

const DefaultFlush = "@every 10s"

// Runner executes work on the goroutine that owns the frame scheduler.
// *loop.Loop implements it.
type Runner interface {
	Do(ctx context.Context, fn func(s *frame.Scheduler) error) error
}

type Config struct {
	// Flush is a cron spec: 5 or 6 fields (seconds optional) or a descriptor
	// such as "@every 10s". Empty means DefaultFlush.
	Flush string
	// FPS is the target frame rate jank is measured against.
	FPS int
}

func (c Config) spec() string {
	if s := strings.TrimSpace(c.Flush); s != "" {
		return s
	}
	return DefaultFlush
}

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseFlush validates a flush spec.
func ParseFlush(spec string) (cron.Schedule, error) {
	s, err := parser.Parse(strings.TrimSpace(spec))
	if err != nil {
		return nil, fmt.Errorf("invalid flush spec %q: %w", spec, err)
	}
	return s, nil
}

// Reporter owns a Collector registered on the scheduler and flushes it on a cron
// schedule: the sample is logged, published on the bus and appended to the store.
type Reporter struct {
	log   logx.Logger
	bus   eventbus.Bus
	run   Runner
	store storage.Store // optional

	col *Collector

	mu     sync.Mutex
	cfg    Config
	c      *cron.Cron
	entry  cron.EntryID
	handle frame.Handle
	last   storage.Sample
}

func NewReporter(cfg Config, run Runner, store storage.Store, log logx.Logger, bus eventbus.Bus) *Reporter {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	return &Reporter{
		log:   log,
		bus:   bus,
		run:   run,
		store: store,
		col:   NewCollector(cfg.FPS),
		cfg:   cfg,
	}
}

// Start registers the collector and starts the flush schedule.
func (r *Reporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return nil
	}
	sched, err := ParseFlush(r.cfg.spec())
	if err != nil {
		return err
	}

	fps := r.cfg.FPS
	err = r.run.Do(ctx, func(s *frame.Scheduler) error {
		r.col.SetFPS(fps)
		h, err := s.Register(r.col)
		if err != nil {
			return err
		}
		r.handle = h
		return nil
	})
	if err != nil {
		return fmt.Errorf("stats: register collector: %w", err)
	}

	r.c = cron.New(cron.WithParser(parser))
	r.entry = r.c.Schedule(sched, cron.FuncJob(r.tick))
	r.c.Start()
	r.log.Info("stats reporter started", logx.String("flush", r.cfg.spec()))
	return nil
}

// Apply updates the flush schedule and target frame rate at runtime.
func (r *Reporter) Apply(ctx context.Context, cfg Config) error {
	sched, err := ParseFlush(cfg.spec())
	if err != nil {
		return err
	}

	r.mu.Lock()
	old := r.cfg
	r.cfg = cfg
	c := r.c
	if c != nil && old.spec() != cfg.spec() {
		c.Remove(r.entry)
		r.entry = c.Schedule(sched, cron.FuncJob(r.tick))
		r.log.Info("stats flush rescheduled", logx.String("flush", cfg.spec()))
	}
	r.mu.Unlock()

	if c != nil && old.FPS != cfg.FPS {
		fps := cfg.FPS
		return r.run.Do(ctx, func(*frame.Scheduler) error {
			r.col.SetFPS(fps)
			return nil
		})
	}
	return nil
}

func (r *Reporter) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := r.FlushNow(ctx); err != nil {
		r.log.Warn("stats flush failed", logx.Err(err))
	}
}

// FlushNow takes a sample from the collector and reports it.
func (r *Reporter) FlushNow(ctx context.Context) (storage.Sample, error) {
	var smp storage.Sample
	err := r.run.Do(ctx, func(s *frame.Scheduler) error {
		smp = r.col.Flush(time.Now(), s.Snapshot().Active)
		return nil
	})
	if err != nil {
		return storage.Sample{}, err
	}

	r.mu.Lock()
	r.last = smp
	r.mu.Unlock()

	r.log.Info("frame stats",
		logx.Int("frames", smp.Frames),
		logx.Float64("fps", round2(smp.FPS)),
		logx.Float64("avg_ms", round2(smp.AvgDelta*1000)),
		logx.Float64("max_ms", round2(smp.MaxDelta*1000)),
		logx.Int("jank", smp.Jank),
		logx.Int("registrations", smp.Registrations),
	)
	r.bus.Publish(eventbus.Event{Type: eventbus.StatsFlushed, Data: smp})

	if r.store != nil {
		if err := r.store.AppendSample(ctx, smp); err != nil {
			return smp, fmt.Errorf("stats: store sample: %w", err)
		}
	}
	return smp, nil
}

// Last returns the most recent flushed sample.
func (r *Reporter) Last() storage.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Stop halts the schedule, flushes the final window and cancels the collector.
func (r *Reporter) Stop(ctx context.Context) error {
	r.mu.Lock()
	c := r.c
	r.c = nil
	h := r.handle
	r.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}

	_, ferr := r.FlushNow(ctx)
	cerr := r.run.Do(ctx, func(s *frame.Scheduler) error { return s.Cancel(h) })
	return errors.Join(ferr, cerr)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
