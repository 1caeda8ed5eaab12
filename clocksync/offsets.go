package clocksync

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

var (
	// ErrNotEnoughSamples is returned when an operation needs more samples than recorded.
	ErrNotEnoughSamples = errors.New("clocksync: not enough offset samples")
	// ErrOutOfOrder is returned when a sample is older than the newest recorded one.
	ErrOutOfOrder = errors.New("clocksync: offset sample out of order")
)

// Offset is one sample: at local time Time the global clock was ahead by Offset ticks.
type Offset struct {
	Time   uint64  `json:"time" cbor:"1,keyasint"`
	Offset int64   `json:"offset" cbor:"2,keyasint"`
	Stddev float64 `json:"stddev" cbor:"3,keyasint"`
}

// Offsets is the append-only list of samples of one process, oldest first.
// It has a single writer; readers may run concurrently.
type Offsets struct {
	mu      sync.RWMutex
	samples []Offset
}

// Add appends a sample. time must not be older than the newest sample.
func (o *Offsets) Add(time uint64, offset int64, stddev float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if n := len(o.samples); n > 0 && time < o.samples[n-1].Time {
		return fmt.Errorf("%w: %d before %d", ErrOutOfOrder, time, o.samples[n-1].Time)
	}
	o.samples = append(o.samples, Offset{Time: time, Offset: offset, Stddev: stddev})
	return nil
}

// Len returns the number of samples.
func (o *Offsets) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.samples)
}

// All returns a copy of the samples, oldest first.
func (o *Offsets) All() []Offset {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]Offset(nil), o.samples...)
}

// FirstPair returns the two oldest samples.
func (o *Offsets) FirstPair() (Offset, Offset, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if len(o.samples) < 2 {
		return Offset{}, Offset{}, fmt.Errorf("%w: have %d, need 2", ErrNotEnoughSamples, len(o.samples))
	}
	return o.samples[0], o.samples[1], nil
}

// LastPair returns the two newest samples.
func (o *Offsets) LastPair() (Offset, Offset, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	n := len(o.samples)
	if n < 2 {
		return Offset{}, Offset{}, fmt.Errorf("%w: have %d, need 2", ErrNotEnoughSamples, n)
	}
	return o.samples[n-2], o.samples[n-1], nil
}

// Interpolate returns the offset at local time t on the line through a and b.
// At t == a.Time and t == b.Time the sample offsets are returned exactly.
func Interpolate(t uint64, a, b Offset) int64 {
	switch {
	case t == a.Time:
		return a.Offset
	case t == b.Time:
		return b.Offset
	case a.Time == b.Time:
		return a.Offset
	}
	dt := float64(t) - float64(a.Time)
	slope := (float64(b.Offset) - float64(a.Offset)) / (float64(b.Time) - float64(a.Time))
	return a.Offset + int64(math.Round(slope*dt))
}

// OffsetAt returns the offset at local time t: before the first sample the
// first pair is extrapolated, after the last sample the last pair, and in
// between the enclosing pair is interpolated. A single sample is a constant
// offset.
func (o *Offsets) OffsetAt(t uint64) (int64, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s := o.samples
	switch len(s) {
	case 0:
		return 0, ErrNotEnoughSamples
	case 1:
		return s[0].Offset, nil
	}

	// i is the first sample strictly after t.
	i := sort.Search(len(s), func(i int) bool { return s[i].Time > t })
	switch {
	case i == 0:
		return Interpolate(t, s[0], s[1]), nil
	case i == len(s):
		return Interpolate(t, s[len(s)-2], s[len(s)-1]), nil
	default:
		return Interpolate(t, s[i-1], s[i]), nil
	}
}

// Translate maps local time t into the global epoch. Results below zero clamp to zero.
func (o *Offsets) Translate(t uint64) (uint64, error) {
	off, err := o.OffsetAt(t)
	if err != nil {
		return 0, err
	}
	return shift(t, off), nil
}

func shift(t uint64, off int64) uint64 {
	if off < 0 {
		d := uint64(-off)
		if d > t {
			return 0
		}
		return t - d
	}
	return t + uint64(off)
}
