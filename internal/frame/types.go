package frame

import "errors"

var (
	// ErrDuplicateRegistration is returned by Register when the animator already has an
	// active (not disposing) registration.
	ErrDuplicateRegistration = errors.New("animation request has already been made")
	// ErrNotRegistered is returned by Cancel when no active registration matches.
	ErrNotRegistered = errors.New("callback was not registered for animation")
	// ErrNilCallback is returned when registering a nil animator or func.
	ErrNilCallback = errors.New("nil animation callback")
)

// FrameClock delivers one tick per request.
//
// RequestTick arranges for driver to be called exactly once at the next frame
// boundary with a non-decreasing timestamp in milliseconds. It is not a standing
// subscription: the driver must be requested again for every frame.
type FrameClock interface {
	RequestTick(driver func(timestamp float64))
}

// TimeSource returns a monotonic timestamp in milliseconds, comparable to the values
// passed by the FrameClock.
type TimeSource interface {
	Now() float64
}

// TimeSourceFunc adapts a plain function to TimeSource.
type TimeSourceFunc func() float64

func (f TimeSourceFunc) Now() float64 { return f() }

// Animator is a consumer with a stable identity.
//
// Two registrations are considered the same consumer when their Animator values
// compare equal, so implementations should use pointer receivers.
type Animator interface {
	Animate(delta float64)
}

// Func is an anonymous per-frame callback. delta is in seconds.
type Func func(delta float64)

// Handle identifies one registration. Handles are never reused by a Scheduler.
type Handle uint64

// State reports whether the scheduler currently holds a tick request.
type State uint8

const (
	StateIdle State = iota
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of a scheduler, for diagnostics and tests.
type Snapshot struct {
	State            State   `json:"state"`
	Registrations    int     `json:"registrations"`
	Active           int     `json:"active"`
	PendingDisposals int     `json:"pending_disposals"`
	LastTickTime     float64 `json:"last_tick_time"`

	Ticks        uint64 `json:"ticks"`
	SkippedTicks uint64 `json:"skipped_ticks"`
	Dispatches   uint64 `json:"dispatches"`
}
