package perfdefs

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/perfdefs/archive"
	"github.com/hupe1980/perfdefs/blobstore"
	"github.com/hupe1980/perfdefs/clocksync"
	"github.com/hupe1980/perfdefs/codec"
	"github.com/hupe1980/perfdefs/definitions"
	"github.com/hupe1980/perfdefs/internal/arena"
	"github.com/hupe1980/perfdefs/internal/compress"
	"github.com/hupe1980/perfdefs/internal/resource"
	"github.com/hupe1980/perfdefs/unify"
)

type state int32

const (
	stateCreated state = iota
	stateRunning
	stateFinalized
	stateFailed
)

// Measurement owns the definitions and clock offsets of one process of a run.
//
// Define methods may be called concurrently from any goroutine until Finalize.
// Begin and Finalize are collective: every process of the run calls them.
type Measurement struct {
	cfg       Config
	opts      options
	logger    *Logger
	codec     codec.Codec
	compress  compress.Type
	store     blobstore.Store
	resources *resource.Controller

	local     *definitions.Manager
	arenaOpts []arena.Option
	offsets   clocksync.Offsets

	// defineMu is held shared by every Define and exclusively while Finalize
	// closes the measurement for further definitions.
	defineMu sync.RWMutex
	mu       sync.Mutex
	state    atomic.Int32
	begin    uint64
	result   *Result
	closeMu  sync.Once
}

// Result is the outcome of Finalize on one process.
type Result struct {
	// Mode is the clock synchronization mode of the run.
	Mode clocksync.Mode
	// Epoch is the global epoch of the run.
	Epoch clocksync.Epoch
	// Remap maps this process's definitions to unified ones.
	Remap *unify.RemapTable
	// Unified holds the unified definitions on the coordinator, nil elsewhere.
	Unified *definitions.Manager
	// Manifest describes the archive on the coordinator if one was written.
	Manifest *archive.Manifest
	// Stats is the arena usage of the local definitions.
	Stats arena.Stats
}

// New creates a measurement context.
func New(optFns ...Option) (*Measurement, error) {
	o := applyOptions(optFns)
	cfg := o.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c, _ := codec.ByName(cfg.Codec)
	ct, _ := compress.ParseType(cfg.Compression)

	m := &Measurement{
		cfg:      cfg,
		opts:     o,
		logger:   o.logger.WithRank(o.comm.Rank()),
		codec:    c,
		compress: ct,
		store:    o.store,
		resources: resource.NewController(resource.Config{
			MemoryLimitBytes:         cfg.TotalMemory,
			TransferLimitBytesPerSec: cfg.TransferLimitBytesPerSec,
		}),
	}
	if m.store == nil && cfg.ArchiveDir != "" {
		m.store = blobstore.NewLocalStore(filepath.Join(cfg.ArchiveDir, cfg.ArchivePrefix))
	}

	arenaOpts := []arena.Option{
		arena.WithPageSize(cfg.PageSize),
		arena.WithTotalMemory(cfg.TotalMemory),
		arena.WithMemoryAcquirer(m.resources),
	}
	if cfg.AnonymousPages {
		arenaOpts = append(arenaOpts, arena.WithPageSource(&arena.AnonPages{}))
	}

	m.arenaOpts = arenaOpts

	local, err := definitions.New(definitions.Local,
		definitions.WithArenaOptions(arenaOpts...),
		definitions.WithLogger(m.logger.Logger),
		definitions.WithObserver(o.metricsCollector),
	)
	if err != nil {
		return nil, err
	}
	m.local = local
	return m, nil
}

// Rank returns the rank of this process.
func (m *Measurement) Rank() int {
	return m.opts.comm.Rank()
}

// Definitions returns the local definition manager for read access.
func (m *Measurement) Definitions() *definitions.Manager {
	return m.local
}

// Offsets returns the clock offset samples of this process.
func (m *Measurement) Offsets() *clocksync.Offsets {
	return &m.offsets
}

// MemoryPeak returns the highest arena memory reserved so far.
func (m *Measurement) MemoryPeak() int64 {
	return m.resources.MemoryPeak()
}

// fail escalates err: one diagnostic is logged and the abort handler runs.
func (m *Measurement) fail(ctx context.Context, subsystem string, err error) *FatalError {
	fe := &FatalError{Subsystem: subsystem, Err: err}
	m.state.Store(int32(stateFailed))
	m.logger.LogFatal(ctx, fe)
	m.opts.abort(fe)
	return fe
}

func (m *Measurement) checkUsable() error {
	switch state(m.state.Load()) {
	case stateFinalized:
		return ErrFinalized
	case stateFailed:
		return fmt.Errorf("%w: a fatal error occurred", ErrFinalized)
	default:
		return nil
	}
}

// Begin records the start of the epoch and performs the first clock
// synchronization.
func (m *Measurement) Begin(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkUsable(); err != nil {
		return err
	}
	if state(m.state.Load()) != stateCreated {
		return ErrAlreadyStarted
	}

	m.begin = m.opts.timer.Ticks()
	if _, err := m.synchronize(ctx); err != nil {
		return m.fail(ctx, SubsystemClockSync, err)
	}
	m.state.Store(int32(stateRunning))
	return nil
}

func (m *Measurement) synchronize(ctx context.Context) (clocksync.Mode, error) {
	start := time.Now()
	mode, err := clocksync.Synchronize(ctx, m.opts.comm, m.opts.timer, &m.offsets,
		clocksync.WithPingPongs(m.cfg.PingPongs),
		clocksync.WithLogger(m.logger.Logger),
	)
	d := time.Since(start)
	m.opts.metricsCollector.RecordClockSync(mode.String(), d, err)
	m.logger.LogClockSync(ctx, mode.String(), m.offsets.Len(), d, err)
	return mode, err
}

// Finalize ends the epoch, synchronizes clocks a last time, unifies the
// definitions of all processes and writes the archive if one is configured.
// Any failure is fatal.
func (m *Measurement) Finalize(ctx context.Context) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkUsable(); err != nil {
		return nil, err
	}
	if state(m.state.Load()) != stateRunning {
		return nil, ErrNotStarted
	}
	// Defines racing with Finalize either complete before the export or fail.
	m.defineMu.Lock()
	m.state.Store(int32(stateFinalized))
	m.defineMu.Unlock()

	end := m.opts.timer.Ticks()
	mode, err := m.synchronize(ctx)
	if err != nil {
		return nil, m.fail(ctx, SubsystemClockSync, err)
	}

	epoch, err := clocksync.GlobalEpoch(ctx, m.opts.comm, clocksync.Epoch{Begin: m.begin, End: end}, &m.offsets)
	if err != nil {
		return nil, m.fail(ctx, SubsystemClockSync, err)
	}

	res, err := unify.Run(ctx, m.opts.comm, m.local,
		unify.WithCodec(m.codec),
		unify.WithCompression(m.compress),
		unify.WithLogger(m.logger.Logger),
		unify.WithTransferLimiter(m.resources),
		unify.WithUnifiedOptions(
			definitions.WithArenaOptions(m.arenaOpts...),
			definitions.WithLogger(m.logger.Logger),
		),
	)
	var (
		exported int
		duration time.Duration
	)
	if res != nil {
		exported, duration = res.Exported, res.Duration
	}
	m.opts.metricsCollector.RecordUnification(m.opts.comm.Size(), exported, duration, err)
	m.logger.LogUnification(ctx, m.opts.comm.Size(), exported, duration, err)
	if err != nil {
		return nil, m.fail(ctx, SubsystemUnify, err)
	}

	out := &Result{
		Mode:    mode,
		Epoch:   epoch,
		Remap:   res.Remap,
		Unified: res.Unified,
		Stats:   m.local.Stats(),
	}
	m.result = out

	if m.store != nil {
		manifest, err := m.writeArchive(ctx, res, epoch, mode)
		if err != nil {
			return nil, m.fail(ctx, SubsystemArchive, err)
		}
		out.Manifest = manifest
	}
	return out, nil
}

func (m *Measurement) writeArchive(ctx context.Context, res *unify.Result, epoch clocksync.Epoch, mode clocksync.Mode) (*archive.Manifest, error) {
	start := time.Now()
	w := archive.NewWriter(m.store,
		archive.WithCodec(m.codec),
		archive.WithCompression(m.compress),
		archive.WithLogger(m.logger.Logger),
	)
	manifest, err := w.Write(ctx, m.opts.comm, archive.Input{
		Result:  res,
		Offsets: &m.offsets,
		Epoch:   epoch,
		Mode:    mode,
	})
	if manifest != nil || err != nil {
		var size int64
		blobs := 0
		if manifest != nil {
			size, blobs = manifest.TotalSize(), len(manifest.Blobs)
		}
		m.opts.metricsCollector.RecordArchive(size, time.Since(start), err)
		m.logger.LogArchive(ctx, blobs, size, err)
	}
	return manifest, err
}

// Close releases the local and unified definitions. It is safe to call more
// than once.
func (m *Measurement) Close() error {
	var err error
	m.closeMu.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.result != nil && m.result.Unified != nil {
			err = m.result.Unified.Free()
		}
		if ferr := m.local.Free(); err == nil {
			err = ferr
		}
		if state(m.state.Load()) != stateFailed {
			m.state.Store(int32(stateFinalized))
		}
	})
	return err
}
