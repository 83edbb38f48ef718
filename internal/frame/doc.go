// Package frame dispatches per-frame update callbacks driven by a one-shot frame clock.
//
// A Scheduler keeps an ordered list of registrations. The first registration arms the
// clock; every tick computes the delta since the previous tick, dispatches it to each
// active registration in order, sweeps cancelled entries and re-arms the clock while
// anything is left. Cancellation is deferred to the sweep, so callbacks may register
// and cancel (themselves included) while a tick is in flight.
//
// A Scheduler is not safe for concurrent use. All calls, ticks included, must happen
// on one goroutine (see internal/loop).
package frame
