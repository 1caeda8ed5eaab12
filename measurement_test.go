package perfdefs_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/perfdefs"
	"github.com/hupe1980/perfdefs/archive"
	"github.com/hupe1980/perfdefs/blobstore"
	"github.com/hupe1980/perfdefs/clocksync"
	"github.com/hupe1980/perfdefs/definitions"
	"github.com/hupe1980/perfdefs/ipc"
)

func noAbort(t *testing.T) perfdefs.Option {
	return perfdefs.WithAbortHandler(func(err *perfdefs.FatalError) {
		t.Errorf("unexpected fatal error: %v", err)
	})
}

func defineMain(t *testing.T, m *perfdefs.Measurement) definitions.Handle {
	t.Helper()
	name, err := m.DefineString("main")
	require.NoError(t, err)
	file, err := m.DefineString("main.c")
	require.NoError(t, err)
	sf, err := m.DefineSourceFile(definitions.SourceFile{Name: file})
	require.NoError(t, err)
	r, err := m.DefineRegion(definitions.Region{
		Name: name, CanonicalName: name, File: sf, BeginLine: 10, EndLine: 20, Type: definitions.RegionFunction,
	})
	require.NoError(t, err)
	return r
}

func TestMeasurement_SingleProcess(t *testing.T) {
	ctx := context.Background()
	metrics := &perfdefs.BasicMetricsCollector{}

	m, err := perfdefs.New(noAbort(t), perfdefs.WithMetricsCollector(metrics))
	require.NoError(t, err)
	defer func() { assert.NoError(t, m.Close()) }()

	require.NoError(t, m.Begin(ctx))

	r1 := defineMain(t, m)
	r2 := defineMain(t, m)
	assert.Equal(t, r1, r2)
	assert.Equal(t, 2, m.Definitions().Count(definitions.KindString))

	res, err := m.Finalize(ctx)
	require.NoError(t, err)
	assert.Equal(t, clocksync.ModeGlobal, res.Mode)
	assert.LessOrEqual(t, res.Epoch.Begin, res.Epoch.End)
	require.NotNil(t, res.Unified)
	assert.Nil(t, res.Manifest)
	assert.Positive(t, res.Stats.BytesUsed)
	assert.Equal(t, 2, m.Offsets().Len())

	u, err := m.Definitions().Unified(r1)
	require.NoError(t, err)
	region, err := res.Unified.Region(u)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), region.BeginLine)

	stats := metrics.GetStats()
	assert.Equal(t, int64(4), stats.Defined)
	assert.Equal(t, int64(4), stats.Deduplicated)
	assert.Equal(t, int64(2), stats.ClockSyncCount)
	assert.Equal(t, int64(1), stats.UnificationCount)
	assert.Equal(t, int64(4), stats.ExportedCount)
	assert.Equal(t, int64(1), metrics.DefinedOf(definitions.KindRegion))
}

func TestMeasurement_ThreeRanks(t *testing.T) {
	const ranks = 3
	store := blobstore.NewMemoryStore()
	timer := clocksync.NewMonotonicTimer()

	var (
		mu       sync.Mutex
		globalID = make([]uint32, ranks)
		manifest *archive.Manifest
	)

	err := ipc.RunLocal(context.Background(), ranks, func(ctx context.Context, c ipc.Communicator) error {
		m, err := perfdefs.New(
			noAbort(t),
			perfdefs.WithCommunicator(c),
			perfdefs.WithTimer(timer),
			perfdefs.WithArchiveStore(store),
		)
		if err != nil {
			return err
		}
		defer func() { _ = m.Close() }()

		if err := m.Begin(ctx); err != nil {
			return err
		}
		if _, err := m.DefineString(fmt.Sprintf("rank %d", c.Rank())); err != nil {
			return err
		}
		r := defineMain(t, m)

		res, err := m.Finalize(ctx)
		if err != nil {
			return err
		}
		if res.Mode != clocksync.ModeDistributed {
			return fmt.Errorf("rank %d: mode %s", c.Rank(), res.Mode)
		}
		if res.Epoch.End < res.Epoch.Begin {
			return fmt.Errorf("rank %d: epoch %+v", c.Rank(), res.Epoch)
		}

		seq, err := m.Definitions().SequenceNumber(r)
		if err != nil {
			return err
		}
		id, ok := res.Remap.GlobalID(definitions.KindRegion, seq)
		if !ok {
			return fmt.Errorf("rank %d: region not remapped", c.Rank())
		}

		mu.Lock()
		defer mu.Unlock()
		globalID[c.Rank()] = id
		if c.Rank() == 0 {
			manifest = res.Manifest
			if res.Unified.Count(definitions.KindRegion) != 1 {
				return fmt.Errorf("unified regions: %d", res.Unified.Count(definitions.KindRegion))
			}
		} else if res.Unified != nil || res.Manifest != nil {
			return fmt.Errorf("rank %d holds coordinator output", c.Rank())
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []uint32{0, 0, 0}, globalID)
	require.NotNil(t, manifest)
	assert.Equal(t, ranks, manifest.Ranks)
	assert.Equal(t, "distributed", manifest.ClockMode)

	a, err := archive.Open(context.Background(), store)
	require.NoError(t, err)
	defs, err := a.Definitions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"rank 0", "main", "main.c", "rank 1", "rank 2"}, defs.Strings)

	for rank := 0; rank < ranks; rank++ {
		samples, err := a.Clock(context.Background(), rank)
		require.NoError(t, err)
		assert.Len(t, samples, 2)
	}
}

func TestMeasurement_OutOfMemoryIsFatal(t *testing.T) {
	cfg := perfdefs.DefaultConfig()
	cfg.PageSize = 512
	cfg.TotalMemory = 1024

	var aborts []*perfdefs.FatalError
	m, err := perfdefs.New(
		perfdefs.WithConfig(cfg),
		perfdefs.WithAbortHandler(func(err *perfdefs.FatalError) {
			aborts = append(aborts, err)
		}),
	)
	require.NoError(t, err)
	defer func() { _ = m.Close() }()

	var defineErr error
	for i := 0; i < 16 && defineErr == nil; i++ {
		_, defineErr = m.DefineString(fmt.Sprintf("%0600d", i))
	}
	require.Error(t, defineErr)

	var fe *perfdefs.FatalError
	require.True(t, errors.As(defineErr, &fe))
	assert.Equal(t, perfdefs.SubsystemMemory, fe.Subsystem)
	assert.ErrorIs(t, defineErr, definitions.ErrOutOfMemory)
	require.Len(t, aborts, 1)
	assert.Same(t, fe, aborts[0])

	// The measurement is unusable afterwards and does not abort again.
	_, err = m.DefineString("x")
	assert.ErrorIs(t, err, perfdefs.ErrFinalized)
	assert.Len(t, aborts, 1)
}

func TestMeasurement_InvalidHandleIsNotFatal(t *testing.T) {
	m, err := perfdefs.New(noAbort(t))
	require.NoError(t, err)
	defer func() { _ = m.Close() }()

	_, err = m.DefineSourceFile(definitions.SourceFile{Name: definitions.Handle(0x7fff0000)})
	assert.ErrorIs(t, err, definitions.ErrInvalidHandle)

	name, err := m.DefineString("ok")
	require.NoError(t, err)
	_, err = m.DefineRegion(definitions.Region{Name: name, CanonicalName: name, File: name})
	assert.ErrorIs(t, err, definitions.ErrKindMismatch)

	_, err = m.DefineString("still usable")
	assert.NoError(t, err)
}

func TestMeasurement_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m, err := perfdefs.New(noAbort(t))
	require.NoError(t, err)
	defer func() { _ = m.Close() }()

	_, err = m.Finalize(ctx)
	assert.ErrorIs(t, err, perfdefs.ErrNotStarted)

	require.NoError(t, m.Begin(ctx))
	assert.ErrorIs(t, m.Begin(ctx), perfdefs.ErrAlreadyStarted)

	_, err = m.Finalize(ctx)
	require.NoError(t, err)

	_, err = m.Finalize(ctx)
	assert.ErrorIs(t, err, perfdefs.ErrFinalized)
	_, err = m.DefineString("late")
	assert.ErrorIs(t, err, perfdefs.ErrFinalized)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestMeasurement_ArchiveDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := perfdefs.DefaultConfig()
	cfg.ArchiveDir = dir
	cfg.ArchivePrefix = "run-1"
	cfg.Codec = "go-json"
	cfg.Compression = "lz4"

	m, err := perfdefs.New(noAbort(t), perfdefs.WithConfig(cfg))
	require.NoError(t, err)
	defer func() { _ = m.Close() }()

	require.NoError(t, m.Begin(ctx))
	defineMain(t, m)
	res, err := m.Finalize(ctx)
	require.NoError(t, err)
	require.NotNil(t, res.Manifest)
	assert.Equal(t, "go-json", res.Manifest.Codec)
	assert.Equal(t, "lz4", res.Manifest.Compression)

	a, err := archive.Open(ctx, blobstore.NewLocalStore(filepath.Join(dir, "run-1")))
	require.NoError(t, err)
	rt, err := a.Remap(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, rt.Len(definitions.KindRegion))
}

func TestMeasurement_TransportFailureIsFatal(t *testing.T) {
	world, err := ipc.NewWorld(2)
	require.NoError(t, err)
	c, err := world.Comm(1)
	require.NoError(t, err)
	world.Close()

	var aborted *perfdefs.FatalError
	m, err := perfdefs.New(
		perfdefs.WithCommunicator(c),
		perfdefs.WithAbortHandler(func(err *perfdefs.FatalError) { aborted = err }),
	)
	require.NoError(t, err)
	defer func() { _ = m.Close() }()

	err = m.Begin(context.Background())
	require.Error(t, err)
	require.NotNil(t, aborted)
	assert.Equal(t, perfdefs.SubsystemClockSync, aborted.Subsystem)
	assert.ErrorIs(t, err, ipc.ErrClosed)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := perfdefs.DefaultConfig()
	cfg.Codec = "xml"
	_, err := perfdefs.New(perfdefs.WithConfig(cfg))
	assert.Error(t, err)
}

func TestMeasurement_UnifiedArenaUsesConfig(t *testing.T) {
	if testing.Short() {
		t.Skip("allocates tens of megabytes")
	}
	const (
		ranks   = 2
		perRank = 4500
	)
	cfg := perfdefs.DefaultConfig()
	cfg.TotalMemory = 64 << 20
	timer := clocksync.NewMonotonicTimer()

	// Together the ranks define more than the default arena holds.
	payload := make([]byte, 2000)
	require.Greater(t, int64(ranks*perRank*len(payload)), perfdefs.DefaultConfig().TotalMemory)

	var unified int
	err := ipc.RunLocal(context.Background(), ranks, func(ctx context.Context, c ipc.Communicator) error {
		m, err := perfdefs.New(
			noAbort(t),
			perfdefs.WithConfig(cfg),
			perfdefs.WithCommunicator(c),
			perfdefs.WithTimer(timer),
		)
		if err != nil {
			return err
		}
		defer func() { _ = m.Close() }()

		if err := m.Begin(ctx); err != nil {
			return err
		}
		for i := 0; i < perRank; i++ {
			s := fmt.Sprintf("rank %d string %d %s", c.Rank(), i, payload)
			if _, err := m.DefineString(s); err != nil {
				return err
			}
		}
		res, err := m.Finalize(ctx)
		if err != nil {
			return err
		}
		if c.Rank() == 0 {
			unified = res.Unified.Count(definitions.KindString)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, ranks*perRank, unified)
}

func TestMeasurement_DefinesRacingFinalize(t *testing.T) {
	ctx := context.Background()
	m, err := perfdefs.New(noAbort(t))
	require.NoError(t, err)
	defer func() { _ = m.Close() }()
	require.NoError(t, m.Begin(ctx))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; ; i++ {
				_, err := m.DefineString(fmt.Sprintf("worker %d string %d", w, i))
				if errors.Is(err, perfdefs.ErrFinalized) {
					return
				}
				if err != nil {
					t.Errorf("define: %v", err)
					return
				}
			}
		}()
	}

	res, err := m.Finalize(ctx)
	wg.Wait()
	require.NoError(t, err)

	n := m.Definitions().Count(definitions.KindString)
	assert.Equal(t, n, res.Remap.Len(definitions.KindString))
	assert.Equal(t, n, res.Unified.Count(definitions.KindString))
}
