package clocksync

import "time"

// Timer is the platform clock.
type Timer interface {
	// Ticks returns the current time in ticks.
	Ticks() uint64
	// Resolution returns ticks per second.
	Resolution() uint64
	// IsGlobal reports whether all processes read the same clock.
	IsGlobal() bool
}

// MonotonicTimer reads the process-local monotonic clock in nanoseconds since
// its creation.
type MonotonicTimer struct {
	start time.Time
}

// NewMonotonicTimer returns a monotonic timer starting at zero.
func NewMonotonicTimer() *MonotonicTimer {
	return &MonotonicTimer{start: time.Now()}
}

func (t *MonotonicTimer) Ticks() uint64 {
	return uint64(time.Since(t.start).Nanoseconds()) //nolint:gosec // monotonic, never negative
}

func (t *MonotonicTimer) Resolution() uint64 { return uint64(time.Second) }

func (t *MonotonicTimer) IsGlobal() bool { return false }

// WallClockTimer reads the system wall clock in nanoseconds since the Unix epoch.
type WallClockTimer struct{}

func (WallClockTimer) Ticks() uint64 {
	return uint64(time.Now().UnixNano()) //nolint:gosec // after 1970
}

func (WallClockTimer) Resolution() uint64 { return uint64(time.Second) }

func (WallClockTimer) IsGlobal() bool { return false }

type globalTimer struct {
	Timer
}

func (globalTimer) IsGlobal() bool { return true }

// Global marks t as shared by all processes, for clocks such as a
// synchronized hardware counter.
func Global(t Timer) Timer {
	return globalTimer{Timer: t}
}

// Seconds converts a tick count of t into a duration.
func Seconds(t Timer, ticks uint64) time.Duration {
	res := t.Resolution()
	if res == 0 {
		return 0
	}
	sec := ticks / res
	rem := ticks % res
	return time.Duration(sec)*time.Second + time.Duration(rem*uint64(time.Second)/res) //nolint:gosec // bounded by resolution
}
