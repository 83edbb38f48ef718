package clock

import "time"

// Monotonic reports milliseconds elapsed since it was created.
// time.Since uses the monotonic reading, so wall clock changes don't affect it.
type Monotonic struct {
	epoch time.Time
}

func NewMonotonic() *Monotonic { return &Monotonic{epoch: time.Now()} }

func (m *Monotonic) Now() float64 { return Millis(time.Since(m.epoch)) }

// Epoch returns the wall time that corresponds to timestamp 0.
func (m *Monotonic) Epoch() time.Time { return m.epoch }

// Millis converts a duration to fractional milliseconds.
func Millis(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// Duration converts fractional milliseconds to a duration.
func Duration(ms float64) time.Duration { return time.Duration(ms * float64(time.Millisecond)) }
