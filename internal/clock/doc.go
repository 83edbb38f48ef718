// Package clock provides time sources and frame clocks for the frame scheduler.
//
// All timestamps are float64 milliseconds, matching frame.FrameClock and
// frame.TimeSource.
package clock
