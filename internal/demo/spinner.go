// Package demo holds a sample frame consumer used by `framed run` when demo.enabled is set.
package demo

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"framed/internal/frame"
	logx "framed/pkg/logx"
)

// Runner executes work on the frame loop goroutine.
type Runner interface {
	Do(ctx context.Context, fn func(s *frame.Scheduler) error) error
}

// Spinner rotates at Speed degrees per second and logs every completed revolution.
type Spinner struct {
	log logx.Logger

	// loop goroutine only
	speed  float64
	angle  float64
	handle frame.Handle

	revolutions atomic.Int64
	attached    atomic.Bool
}

func NewSpinner(speed float64, log logx.Logger) *Spinner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Spinner{log: log, speed: speed}
}

func (s *Spinner) Animate(delta float64) {
	s.angle += s.speed * delta
	if s.angle < 360 {
		return
	}
	turns := math.Floor(s.angle / 360)
	s.angle -= turns * 360
	n := s.revolutions.Add(int64(turns))
	s.log.Debug("spinner revolution", logx.Int64("revolutions", n))
}

// Angle returns the current angle in degrees. Loop goroutine only.
func (s *Spinner) Angle() float64 { return s.angle }

// Revolutions returns completed full turns.
func (s *Spinner) Revolutions() int64 { return s.revolutions.Load() }

// Attach registers the spinner.
func (s *Spinner) Attach(ctx context.Context, run Runner) error {
	err := run.Do(ctx, func(sch *frame.Scheduler) error {
		h, err := sch.Register(s)
		if err != nil {
			return err
		}
		s.handle = h
		return nil
	})
	if err != nil {
		return fmt.Errorf("spinner: %w", err)
	}
	s.attached.Store(true)
	return nil
}

// SetSpeed changes the rotation speed (degrees per second).
func (s *Spinner) SetSpeed(ctx context.Context, run Runner, speed float64) error {
	return run.Do(ctx, func(*frame.Scheduler) error {
		s.speed = speed
		return nil
	})
}

// Attached reports whether the spinner is registered.
func (s *Spinner) Attached() bool { return s.attached.Load() }

// Dispose cancels the spinner. It fails with frame.ErrNotRegistered if it is not attached.
func (s *Spinner) Dispose(ctx context.Context, run Runner) error {
	err := run.Do(ctx, func(sch *frame.Scheduler) error { return sch.Cancel(s.handle) })
	if err != nil {
		return fmt.Errorf("spinner: %w", err)
	}
	s.attached.Store(false)
	return nil
}
