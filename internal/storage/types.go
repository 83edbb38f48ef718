package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	// Keep bounds the number of retained samples. <=0 means DefaultKeep.
	Keep int
}

const DefaultKeep = 1000

func (c Config) keep() int {
	if c.Keep <= 0 {
		return DefaultKeep
	}
	return c.Keep
}

// Sample is one flushed window of frame statistics. Deltas are in seconds.
// Keep it compact and schema-stable.
type Sample struct {
	At            time.Time `json:"at"`
	Window        float64   `json:"window"` // seconds covered by the dispatched deltas
	Frames        int       `json:"frames"`
	FPS           float64   `json:"fps"`
	MinDelta      float64   `json:"min_delta"`
	MaxDelta      float64   `json:"max_delta"`
	AvgDelta      float64   `json:"avg_delta"`
	Jank          int       `json:"jank"`
	Registrations int       `json:"registrations"`
}
