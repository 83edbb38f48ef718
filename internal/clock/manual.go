package clock

// Manual is a hand-driven frame clock and time source.
//
// Ticks are only delivered when Fire or Step is called, which makes it suitable for
// tests and for hosts that already own a frame loop. Manual is not safe for
// concurrent use.
type Manual struct {
	now     float64
	pending func(timestamp float64)

	requests int
	fired    int
	// overlaps counts requests made while one was already pending.
	overlaps int
}

func NewManual(now float64) *Manual { return &Manual{now: now} }

func (m *Manual) Now() float64 { return m.now }

// Set moves the time source without firing a tick.
func (m *Manual) Set(now float64) { m.now = now }

// Advance moves the time source forward by ms without firing a tick.
func (m *Manual) Advance(ms float64) { m.now += ms }

func (m *Manual) RequestTick(driver func(timestamp float64)) {
	if m.pending != nil {
		m.overlaps++
	}
	m.pending = driver
	m.requests++
}

// Fire sets the time to ts and delivers the pending tick, if any.
// It reports whether a driver was invoked.
func (m *Manual) Fire(ts float64) bool {
	m.now = ts
	d := m.pending
	if d == nil {
		return false
	}
	m.pending = nil
	m.fired++
	d(ts)
	return true
}

// Step advances the time by ms and fires.
func (m *Manual) Step(ms float64) bool { return m.Fire(m.now + ms) }

// Pending reports whether a tick has been requested and not yet fired.
func (m *Manual) Pending() bool { return m.pending != nil }

// Requests returns the total number of RequestTick calls.
func (m *Manual) Requests() int { return m.requests }

// Fired returns the number of delivered ticks.
func (m *Manual) Fired() int { return m.fired }

// Overlaps returns how many requests replaced one that was still pending.
func (m *Manual) Overlaps() int { return m.overlaps }
