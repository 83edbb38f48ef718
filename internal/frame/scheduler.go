package frame

import (
	"fmt"
	"reflect"
)

type registration struct {
	handle   Handle
	animator Animator // nil for RegisterFunc entries
	fn       Func

	// comparable is false when the animator's value can't be compared with ==,
	// including comparable structs holding a slice, map or func in an interface field.
	comparable bool

	start     float64
	disposing bool
}

// Scheduler dispatches frame callbacks. The zero value is not usable; use New.
type Scheduler struct {
	clock FrameClock
	now   TimeSource

	regs     []*registration
	active   map[Handle]*registration
	nextID   Handle
	disposed int // pending disposals

	lastTickTime float64
	state        State
	onState      func(State)

	// cached method value so every RequestTick hands out the same driver
	driver func(timestamp float64)

	ticks      uint64
	skipped    uint64
	dispatches uint64
}

func New(clock FrameClock, now TimeSource) *Scheduler {
	if clock == nil {
		panic("frame: nil FrameClock")
	}
	if now == nil {
		panic("frame: nil TimeSource")
	}
	s := &Scheduler{
		clock:  clock,
		now:    now,
		active: map[Handle]*registration{},
	}
	s.driver = s.onTick
	return s
}

// OnStateChange installs a hook called on idle <-> subscribed transitions.
// The hook runs synchronously on the scheduler goroutine.
func (s *Scheduler) OnStateChange(fn func(State)) { s.onState = fn }

// Register adds an animator. It fails with ErrDuplicateRegistration if the same
// animator is already active.
func (s *Scheduler) Register(a Animator) (Handle, error) {
	if a == nil {
		return 0, ErrNilCallback
	}
	cmp := isComparable(a)
	if cmp && s.findActive(a) != nil {
		return 0, fmt.Errorf("register %T: %w", a, ErrDuplicateRegistration)
	}
	return s.add(&registration{animator: a, fn: a.Animate, comparable: cmp}), nil
}

// RegisterFunc adds an anonymous callback. Every call creates a new registration.
func (s *Scheduler) RegisterFunc(fn Func) (Handle, error) {
	if fn == nil {
		return 0, ErrNilCallback
	}
	return s.add(&registration{fn: fn}), nil
}

func (s *Scheduler) add(r *registration) Handle {
	s.nextID++
	r.handle = s.nextID
	s.regs = append(s.regs, r)
	s.active[r.handle] = r

	if s.state == StateIdle {
		s.lastTickTime = s.now.Now()
		s.request()
	}
	return r.handle
}

// Cancel marks the registration for removal. The entry is swept after the current
// (or next) tick; until then it is no longer dispatched.
func (s *Scheduler) Cancel(h Handle) error {
	r, ok := s.active[h]
	if !ok {
		return fmt.Errorf("cancel handle %d: %w", h, ErrNotRegistered)
	}
	s.dispose(r)
	return nil
}

// CancelAnimator cancels the active registration of a.
func (s *Scheduler) CancelAnimator(a Animator) error {
	if a == nil || !isComparable(a) {
		return fmt.Errorf("cancel %T: %w", a, ErrNotRegistered)
	}
	r := s.findActive(a)
	if r == nil {
		return fmt.Errorf("cancel %T: %w", a, ErrNotRegistered)
	}
	s.dispose(r)
	return nil
}

func (s *Scheduler) dispose(r *registration) {
	r.disposing = true
	s.disposed++
	delete(s.active, r.handle)
}

// isComparable inspects the stored value, not just its type: == on two
// interfaces of the same dynamic type panics if any nested value isn't comparable.
func isComparable(a Animator) bool {
	return reflect.ValueOf(a).Comparable()
}

// findActive requires isComparable(a).
func (s *Scheduler) findActive(a Animator) *registration {
	for _, r := range s.regs {
		if r.disposing || !r.comparable {
			continue
		}
		if r.animator == a {
			return r
		}
	}
	return nil
}

// onTick is the driver handed to the FrameClock.
func (s *Scheduler) onTick(timestamp float64) {
	s.ticks++
	delta := (timestamp - s.lastTickTime) / 1000
	s.lastTickTime = timestamp

	// Runs on consumer panics too, so the clock stays armed iff entries remain.
	defer s.finishTick()

	if delta <= 0 {
		s.skipped++
		return
	}

	// Entries appended during the pass sit past n and wait for the next tick.
	// Nothing is removed before the sweep, so indices are stable.
	n := len(s.regs)
	for i := 0; i < n; i++ {
		r := s.regs[i]
		if r.disposing {
			continue
		}
		if r.start == 0 {
			r.start = timestamp
		}
		s.dispatches++
		r.fn(delta)
	}
}

func (s *Scheduler) finishTick() {
	s.sweep()
	if len(s.regs) > 0 {
		s.request()
		return
	}
	s.setState(StateIdle)
}

// sweep drops disposing entries, keeping survivors in order.
func (s *Scheduler) sweep() {
	if s.disposed == 0 {
		return
	}
	kept := s.regs[:0]
	for _, r := range s.regs {
		if !r.disposing {
			kept = append(kept, r)
		}
	}
	for i := len(kept); i < len(s.regs); i++ {
		s.regs[i] = nil
	}
	s.regs = kept
	s.disposed = 0
}

func (s *Scheduler) request() {
	s.setState(StateSubscribed)
	s.clock.RequestTick(s.driver)
}

func (s *Scheduler) setState(st State) {
	if s.state == st {
		return
	}
	s.state = st
	if s.onState != nil {
		s.onState(st)
	}
}

// Len returns the number of registrations, including ones pending removal.
func (s *Scheduler) Len() int { return len(s.regs) }

func (s *Scheduler) State() State { return s.state }

// Subscribed reports whether a tick has been requested from the clock.
func (s *Scheduler) Subscribed() bool { return s.state == StateSubscribed }

// Start returns the timestamp of the first tick h was dispatched on.
// ok is false if h is not active; start is 0 before the first dispatch.
func (s *Scheduler) Start(h Handle) (start float64, ok bool) {
	r, ok := s.active[h]
	if !ok {
		return 0, false
	}
	return r.start, true
}

func (s *Scheduler) Snapshot() Snapshot {
	return Snapshot{
		State:            s.state,
		Registrations:    len(s.regs),
		Active:           len(s.regs) - s.disposed,
		PendingDisposals: s.disposed,
		LastTickTime:     s.lastTickTime,
		Ticks:            s.ticks,
		SkippedTicks:     s.skipped,
		Dispatches:       s.dispatches,
	}
}
