package perfdefs

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/perfdefs/definitions"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus;
// see package promcollector.
//
// RecordDefine is called under no lock but on the hot path of every definition,
// so implementations should be cheap.
type MetricsCollector interface {
	definitions.Observer

	// RecordClockSync is called after each clock synchronization round.
	RecordClockSync(mode string, duration time.Duration, err error)

	// RecordUnification is called after unification on this rank.
	// exported is the number of local definitions contributed.
	RecordUnification(ranks, exported int, duration time.Duration, err error)

	// RecordArchive is called after the archive was written (coordinator only).
	RecordArchive(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordDefine(definitions.Kind, bool)              {}
func (NoopMetricsCollector) RecordClockSync(string, time.Duration, error)     {}
func (NoopMetricsCollector) RecordUnification(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordArchive(int64, time.Duration, error)        {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	Defined           atomic.Int64
	Deduplicated      atomic.Int64
	ClockSyncCount    atomic.Int64
	ClockSyncErrors   atomic.Int64
	ClockSyncNanos    atomic.Int64
	UnificationCount  atomic.Int64
	UnificationErrors atomic.Int64
	UnificationNanos  atomic.Int64
	ExportedCount     atomic.Int64
	ArchiveCount      atomic.Int64
	ArchiveErrors     atomic.Int64
	ArchiveBytes      atomic.Int64
	definedPerKind    [16]atomic.Int64
}

// RecordDefine implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDefine(k definitions.Kind, created bool) {
	if !created {
		b.Deduplicated.Add(1)
		return
	}
	b.Defined.Add(1)
	if int(k) < len(b.definedPerKind) {
		b.definedPerKind[k].Add(1)
	}
}

// RecordClockSync implements MetricsCollector.
func (b *BasicMetricsCollector) RecordClockSync(_ string, duration time.Duration, err error) {
	b.ClockSyncCount.Add(1)
	b.ClockSyncNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ClockSyncErrors.Add(1)
	}
}

// RecordUnification implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUnification(_, exported int, duration time.Duration, err error) {
	b.UnificationCount.Add(1)
	b.UnificationNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.UnificationErrors.Add(1)
		return
	}
	b.ExportedCount.Add(int64(exported))
}

// RecordArchive implements MetricsCollector.
func (b *BasicMetricsCollector) RecordArchive(bytes int64, _ time.Duration, err error) {
	b.ArchiveCount.Add(1)
	if err != nil {
		b.ArchiveErrors.Add(1)
		return
	}
	b.ArchiveBytes.Add(bytes)
}

// DefinedOf returns the number of definitions created for kind k.
func (b *BasicMetricsCollector) DefinedOf(k definitions.Kind) int64 {
	if int(k) >= len(b.definedPerKind) {
		return 0
	}
	return b.definedPerKind[k].Load()
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		Defined:           b.Defined.Load(),
		Deduplicated:      b.Deduplicated.Load(),
		ClockSyncCount:    b.ClockSyncCount.Load(),
		ClockSyncErrors:   b.ClockSyncErrors.Load(),
		ClockSyncAvgNanos: avg(b.ClockSyncNanos.Load(), b.ClockSyncCount.Load()),
		UnificationCount:  b.UnificationCount.Load(),
		UnificationErrors: b.UnificationErrors.Load(),
		UnificationNanos:  b.UnificationNanos.Load(),
		ExportedCount:     b.ExportedCount.Load(),
		ArchiveCount:      b.ArchiveCount.Load(),
		ArchiveErrors:     b.ArchiveErrors.Load(),
		ArchiveBytes:      b.ArchiveBytes.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	Defined           int64
	Deduplicated      int64
	ClockSyncCount    int64
	ClockSyncErrors   int64
	ClockSyncAvgNanos int64
	UnificationCount  int64
	UnificationErrors int64
	UnificationNanos  int64
	ExportedCount     int64
	ArchiveCount      int64
	ArchiveErrors     int64
	ArchiveBytes      int64
}
