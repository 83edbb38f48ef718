package demo

import (
	"context"
	"errors"
	"testing"

	"framed/internal/clock"
	"framed/internal/frame"
	logx "framed/pkg/logx"
)

type inlineRunner struct{ s *frame.Scheduler }

func (r inlineRunner) Do(ctx context.Context, fn func(s *frame.Scheduler) error) error {
	return fn(r.s)
}

func TestSpinnerLifecycle(t *testing.T) {
	t.Parallel()
	c := clock.NewManual(0)
	run := inlineRunner{s: frame.New(c, c)}
	ctx := context.Background()

	sp := NewSpinner(360, logx.Nop()) // one turn per second
	if err := sp.Attach(ctx, run); err != nil {
		t.Fatalf("Attach error: %v", err)
	}
	if err := sp.Attach(ctx, run); !errors.Is(err, frame.ErrDuplicateRegistration) {
		t.Fatalf("second Attach err = %v, want duplicate", err)
	}

	for i := 0; i < 10; i++ {
		c.Step(250)
	}
	if got := sp.Revolutions(); got != 2 {
		t.Fatalf("revolutions = %d, want 2", got)
	}

	if err := sp.SetSpeed(ctx, run, 720); err != nil {
		t.Fatal(err)
	}
	c.Step(1000)
	if got := sp.Revolutions(); got != 4 {
		t.Fatalf("revolutions = %d, want 4", got)
	}

	if err := sp.Dispose(ctx, run); err != nil {
		t.Fatalf("Dispose error: %v", err)
	}
	if sp.Attached() {
		t.Fatalf("still attached")
	}
	if err := sp.Dispose(ctx, run); !errors.Is(err, frame.ErrNotRegistered) {
		t.Fatalf("second Dispose err = %v, want ErrNotRegistered", err)
	}
}
