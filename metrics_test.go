package perfdefs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/perfdefs/definitions"
)

func TestBasicMetricsCollector(t *testing.T) {
	var b BasicMetricsCollector

	b.RecordDefine(definitions.KindString, true)
	b.RecordDefine(definitions.KindString, false)
	b.RecordDefine(definitions.KindCallpath, true)
	b.RecordClockSync("global", 2*time.Millisecond, nil)
	b.RecordClockSync("global", 4*time.Millisecond, errors.New("boom"))
	b.RecordUnification(3, 7, time.Second, nil)
	b.RecordArchive(100, time.Millisecond, nil)
	b.RecordArchive(50, time.Millisecond, errors.New("boom"))

	stats := b.GetStats()
	assert.Equal(t, int64(2), stats.Defined)
	assert.Equal(t, int64(1), stats.Deduplicated)
	assert.Equal(t, int64(2), stats.ClockSyncCount)
	assert.Equal(t, int64(1), stats.ClockSyncErrors)
	assert.Equal(t, (3 * time.Millisecond).Nanoseconds(), stats.ClockSyncAvgNanos)
	assert.Equal(t, int64(7), stats.ExportedCount)
	assert.Equal(t, int64(2), stats.ArchiveCount)
	assert.Equal(t, int64(1), stats.ArchiveErrors)
	assert.Equal(t, int64(100), stats.ArchiveBytes)
	assert.Equal(t, int64(1), b.DefinedOf(definitions.KindCallpath))
	assert.Zero(t, b.DefinedOf(definitions.KindRegion))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).
		WithRank(2).
		WithKind(definitions.KindRegion)

	l.LogUnification(context.Background(), 4, 12, time.Millisecond, nil)
	assert.Contains(t, buf.String(), "unification completed")
	assert.Contains(t, buf.String(), "rank=2")
	assert.Contains(t, buf.String(), "kind=region")

	buf.Reset()
	l.LogFatal(context.Background(), &FatalError{Subsystem: SubsystemUnify, Err: errors.New("missing dependency")})
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), `subsystem=unification`)
	assert.Contains(t, buf.String(), `error="missing dependency"`)
}

func TestFatalError(t *testing.T) {
	cause := errors.New("page allocation failed")
	err := &FatalError{Subsystem: SubsystemMemory, Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "perfdefs: fatal memory error: page allocation failed", err.Error())
}
