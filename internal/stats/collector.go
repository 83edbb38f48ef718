// Package stats measures frame pacing by registering a consumer on the frame scheduler
// and periodically flushing what it saw to storage.
package stats

import (
	"math"
	"time"

	"framed/internal/storage"
)

// JankFactor: a delta longer than JankFactor expected frame times counts as jank.
const JankFactor = 2.0

// Collector accumulates per-frame deltas. It is a frame.Animator and, like every
// scheduler consumer, is only touched from the loop goroutine.
type Collector struct {
	expected float64 // seconds per frame

	frames int
	sum    float64
	min    float64
	max    float64
	jank   int
}

func NewCollector(fps int) *Collector {
	c := &Collector{}
	c.SetFPS(fps)
	c.reset()
	return c
}

// SetFPS updates the frame rate jank is measured against.
func (c *Collector) SetFPS(fps int) {
	if fps <= 0 {
		fps = 60
	}
	c.expected = 1 / float64(fps)
}

func (c *Collector) Animate(delta float64) {
	c.frames++
	c.sum += delta
	c.min = math.Min(c.min, delta)
	c.max = math.Max(c.max, delta)
	if delta > JankFactor*c.expected {
		c.jank++
	}
}

// Flush returns the accumulated window and starts a new one.
func (c *Collector) Flush(at time.Time, registrations int) storage.Sample {
	s := storage.Sample{
		At:            at,
		Window:        c.sum,
		Frames:        c.frames,
		Jank:          c.jank,
		Registrations: registrations,
	}
	if c.frames > 0 {
		s.MinDelta = c.min
		s.MaxDelta = c.max
		s.AvgDelta = c.sum / float64(c.frames)
		if c.sum > 0 {
			s.FPS = float64(c.frames) / c.sum
		}
	}
	c.reset()
	return s
}

func (c *Collector) reset() {
	c.frames = 0
	c.sum = 0
	c.min = math.Inf(1)
	c.max = 0
	c.jank = 0
}
