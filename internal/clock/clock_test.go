package clock

import (
	"testing"
	"time"
)

func TestManualFire(t *testing.T) {
	t.Parallel()
	m := NewManual(10)
	if m.Fire(20) {
		t.Fatalf("Fire without a request delivered a tick")
	}
	if m.Now() != 20 {
		t.Fatalf("Now = %v, want 20", m.Now())
	}

	var got []float64
	driver := func(ts float64) { got = append(got, ts) }
	m.RequestTick(driver)
	m.RequestTick(driver)
	if m.Overlaps() != 1 || m.Requests() != 2 || !m.Pending() {
		t.Fatalf("overlaps=%d requests=%d pending=%v", m.Overlaps(), m.Requests(), m.Pending())
	}
	if !m.Step(16) || m.Pending() || m.Fired() != 1 {
		t.Fatalf("Step did not fire exactly once")
	}
	if len(got) != 1 || got[0] != 36 {
		t.Fatalf("driver got %v, want [36]", got)
	}

	m.Advance(4)
	m.Set(m.Now() + 1)
	if m.Now() != 41 || m.Pending() {
		t.Fatalf("Advance/Set fired or miscounted: now=%v", m.Now())
	}
}

func TestMonotonic(t *testing.T) {
	t.Parallel()
	m := NewMonotonic()
	a := m.Now()
	time.Sleep(2 * time.Millisecond)
	b := m.Now()
	if a < 0 || b <= a {
		t.Fatalf("not monotonic: %v then %v", a, b)
	}
	if m.Epoch().After(time.Now()) {
		t.Fatalf("epoch in the future")
	}
}

func TestMillisDuration(t *testing.T) {
	t.Parallel()
	if got := Millis(1500 * time.Microsecond); got != 1.5 {
		t.Fatalf("Millis = %v", got)
	}
	if got := Duration(16.5); got != 16500*time.Microsecond {
		t.Fatalf("Duration = %v", got)
	}
}
