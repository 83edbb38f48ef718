package stats

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"framed/internal/clock"
	"framed/internal/eventbus"
	"framed/internal/frame"
	"framed/internal/storage"
	logx "framed/pkg/logx"
)

// syncRunner runs work inline against a scheduler driven by a manual clock.
type syncRunner struct {
	mu    sync.Mutex
	clk   *clock.Manual
	sched *frame.Scheduler
}

func newSyncRunner() *syncRunner {
	c := clock.NewManual(0)
	return &syncRunner{clk: c, sched: frame.New(c, c)}
}

func (r *syncRunner) Do(ctx context.Context, fn func(s *frame.Scheduler) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.sched)
}

func (r *syncRunner) step(ms float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clk.Step(ms)
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCollectorFlush(t *testing.T) {
	t.Parallel()
	c := NewCollector(50) // 20ms per frame, jank above 40ms
	for _, d := range []float64{0.02, 0.02, 0.05, 0.01} {
		c.Animate(d)
	}
	at := time.Unix(100, 0)
	s := c.Flush(at, 3)

	if s.Frames != 4 || s.Jank != 1 || s.Registrations != 3 || !s.At.Equal(at) {
		t.Fatalf("sample = %+v", s)
	}
	if !approx(s.Window, 0.1) || !approx(s.FPS, 40) || !approx(s.AvgDelta, 0.025) {
		t.Fatalf("window/fps/avg = %v/%v/%v", s.Window, s.FPS, s.AvgDelta)
	}
	if s.MinDelta != 0.01 || s.MaxDelta != 0.05 {
		t.Fatalf("min/max = %v/%v", s.MinDelta, s.MaxDelta)
	}

	empty := c.Flush(at, 0)
	if empty.Frames != 0 || empty.FPS != 0 || empty.MinDelta != 0 || !math.IsInf(c.min, 1) {
		t.Fatalf("flush did not reset: %+v", empty)
	}
}

func TestReporterLifecycle(t *testing.T) {
	t.Parallel()
	run := newSyncRunner()
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "framed")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	r := NewReporter(Config{Flush: "@every 1h", FPS: 60}, run, st, logx.Nop(), bus)
	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := r.Start(ctx); err != nil {
		t.Fatalf("second Start error: %v", err)
	}
	if run.sched.Len() != 1 || !run.sched.Subscribed() {
		t.Fatalf("collector not registered")
	}

	for i := 0; i < 3; i++ {
		run.step(16)
	}
	smp, err := r.FlushNow(ctx)
	if err != nil {
		t.Fatalf("FlushNow error: %v", err)
	}
	if smp.Frames != 3 || !approx(smp.AvgDelta, 0.016) || smp.Registrations != 1 {
		t.Fatalf("sample = %+v", smp)
	}
	if r.Last().Frames != 3 {
		t.Fatalf("Last = %+v", r.Last())
	}
	if e := <-events; e.Type != eventbus.StatsFlushed {
		t.Fatalf("event = %q", e.Type)
	}

	run.step(16)
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	run.step(16) // sweep the cancelled collector
	if run.sched.Len() != 0 || run.sched.Subscribed() {
		t.Fatalf("collector still registered after Stop")
	}

	saved, err := st.RecentSamples(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 2 || saved[0].Frames != 3 || saved[1].Frames != 1 {
		t.Fatalf("stored = %+v", saved)
	}
}

func TestReporterDuplicateCollector(t *testing.T) {
	t.Parallel()
	run := newSyncRunner()
	r := NewReporter(Config{}, run, nil, logx.Nop(), nil)
	_, _ = run.sched.Register(r.col)

	err := r.Start(context.Background())
	if !errors.Is(err, frame.ErrDuplicateRegistration) {
		t.Fatalf("Start err = %v, want ErrDuplicateRegistration", err)
	}
}

func TestReporterApply(t *testing.T) {
	t.Parallel()
	run := newSyncRunner()
	r := NewReporter(Config{Flush: "@every 1h", FPS: 60}, run, nil, logx.Nop(), nil)
	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer r.Stop(ctx)

	if err := r.Apply(ctx, Config{Flush: "not a spec"}); err == nil {
		t.Fatalf("expected invalid spec error")
	}
	if err := r.Apply(ctx, Config{Flush: "*/30 * * * * *", FPS: 30}); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if !approx(r.col.expected, 1.0/30) {
		t.Fatalf("expected frame time = %v", r.col.expected)
	}
	r.mu.Lock()
	entries := len(r.c.Entries())
	r.mu.Unlock()
	if entries != 1 {
		t.Fatalf("cron entries = %d, want 1", entries)
	}
}

func TestReporterCronFlush(t *testing.T) {
	t.Parallel()
	run := newSyncRunner()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	r := NewReporter(Config{Flush: "* * * * * *"}, run, nil, logx.Nop(), bus)
	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer r.Stop(ctx)

	select {
	case e := <-events:
		if e.Type != eventbus.StatsFlushed {
			t.Fatalf("event = %q", e.Type)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("cron flush did not run")
	}
}

func TestParseFlush(t *testing.T) {
	t.Parallel()
	for _, spec := range []string{"@every 5s", "*/10 * * * * *", "0 * * * *", "@hourly"} {
		if _, err := ParseFlush(spec); err != nil {
			t.Fatalf("ParseFlush(%q) error: %v", spec, err)
		}
	}
	if _, err := ParseFlush("every now and then"); err == nil {
		t.Fatalf("expected error")
	}
}
