package unify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hupe1980/perfdefs/codec"
	"github.com/hupe1980/perfdefs/definitions"
	"github.com/hupe1980/perfdefs/internal/compress"
	"github.com/hupe1980/perfdefs/ipc"
)

// Coordinator is the rank that builds the unified manager.
const Coordinator = 0

// TransferLimiter throttles outgoing payload bytes.
type TransferLimiter interface {
	AcquireTransfer(ctx context.Context, n int) error
}

type options struct {
	wire        Wire
	logger      *slog.Logger
	limiter     TransferLimiter
	unifiedOpts []definitions.Option
}

// Option configures Run.
type Option func(*options)

// WithCodec sets the codec of batches and remap tables. All ranks must agree.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.wire.Codec = c
	}
}

// WithCompression sets the compression of outgoing messages.
func WithCompression(t compress.Type) Option {
	return func(o *options) {
		o.wire.Compression = t
	}
}

// WithLogger sets the logger. Nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTransferLimiter throttles batch and remap-table sends.
func WithTransferLimiter(l TransferLimiter) Option {
	return func(o *options) {
		o.limiter = l
	}
}

// WithUnifiedOptions configures the unified manager created on the coordinator.
func WithUnifiedOptions(opts ...definitions.Option) Option {
	return func(o *options) {
		o.unifiedOpts = append(o.unifiedOpts, opts...)
	}
}

// Result is the outcome of unification on one rank.
type Result struct {
	// Remap is this rank's remap table. It has been applied to the local manager.
	Remap *RemapTable
	// Unified is the unified manager. Nil on every rank but the coordinator.
	Unified *definitions.Manager
	// Tables holds the remap tables of all ranks, indexed by rank. Coordinator only.
	Tables []*RemapTable
	// Exported is the number of local definitions this rank contributed.
	Exported int
	// Duration is the wall time of Run on this rank.
	Duration time.Duration
}

// Run unifies the local managers of all ranks of c. It must be called by every
// rank. Any error leaves the run without consistent global definitions.
func Run(ctx context.Context, c ipc.Communicator, local *definitions.Manager, optFns ...Option) (*Result, error) {
	o := options{}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger := o.logger.With("rank", c.Rank())

	start := time.Now()
	batch, err := Export(local, c.Rank())
	if err != nil {
		return nil, err
	}

	var res *Result
	if c.Rank() == Coordinator {
		res, err = coordinate(ctx, c, &o, batch, logger)
	} else {
		res, err = contribute(ctx, c, &o, batch, logger)
	}
	if err != nil {
		return nil, err
	}

	if err := res.Remap.Apply(local); err != nil {
		if res.Unified != nil {
			_ = res.Unified.Free()
		}
		return nil, err
	}
	res.Exported = batch.Total()
	res.Duration = time.Since(start)
	return res, nil
}

func (o *options) send(ctx context.Context, c ipc.Communicator, dst int, tag ipc.Tag, v any) error {
	data, err := o.wire.Encode(v)
	if err != nil {
		return err
	}
	if o.limiter != nil {
		if err := o.limiter.AcquireTransfer(ctx, len(data)); err != nil {
			return &TransportError{Op: "throttle send to", Peer: dst, Err: err}
		}
	}
	if err := c.Send(ctx, dst, tag, data); err != nil {
		return &TransportError{Op: "send to", Peer: dst, Err: err}
	}
	return nil
}

func (o *options) recv(ctx context.Context, c ipc.Communicator, src int, tag ipc.Tag, v any) error {
	data, err := c.Recv(ctx, src, tag)
	if err != nil {
		return &TransportError{Op: "receive from", Peer: src, Err: err}
	}
	return o.wire.Decode(data, v)
}

// coordinate drains the batches of all ranks in rank order, merges them and
// sends every rank its remap table.
func coordinate(ctx context.Context, c ipc.Communicator, o *options, own *Batch, logger *slog.Logger) (*Result, error) {
	unified, err := definitions.New(definitions.Unified, o.unifiedOpts...)
	if err != nil {
		return nil, err
	}

	tables := make([]*RemapTable, c.Size())
	for rank := 0; rank < c.Size(); rank++ {
		b := own
		if rank != Coordinator {
			b = &Batch{}
			if err := o.recv(ctx, c, rank, ipc.TagUnify, b); err != nil {
				_ = unified.Free()
				return nil, err
			}
			if b.Rank != rank {
				_ = unified.Free()
				return nil, fmt.Errorf("%w: batch from rank %d claims rank %d", ErrCorruptBatch, rank, b.Rank)
			}
		}

		t, err := Merge(unified, b)
		if err != nil {
			_ = unified.Free()
			return nil, err
		}
		tables[rank] = t
		logger.Debug("merged batch", "from", rank, "definitions", b.Total())
	}

	if err := VerifyCoverage(unified, tables); err != nil {
		_ = unified.Free()
		return nil, err
	}

	for rank := 0; rank < c.Size(); rank++ {
		if rank == Coordinator {
			continue
		}
		if err := o.send(ctx, c, rank, ipc.TagRemap, tables[rank]); err != nil {
			_ = unified.Free()
			return nil, err
		}
	}

	logger.Info("unification completed",
		"ranks", c.Size(),
		"unified", totalCount(unified),
	)

	return &Result{Remap: tables[Coordinator], Unified: unified, Tables: tables}, nil
}

// contribute sends the local batch to the coordinator and waits for the remap table.
func contribute(ctx context.Context, c ipc.Communicator, o *options, own *Batch, logger *slog.Logger) (*Result, error) {
	if err := o.send(ctx, c, Coordinator, ipc.TagUnify, own); err != nil {
		return nil, err
	}

	t := &RemapTable{}
	if err := o.recv(ctx, c, Coordinator, ipc.TagRemap, t); err != nil {
		return nil, err
	}
	if t.Rank != c.Rank() {
		return nil, fmt.Errorf("%w: remap table for rank %d received by rank %d", ErrCorruptBatch, t.Rank, c.Rank())
	}
	logger.Debug("received remap table", "definitions", own.Total())

	return &Result{Remap: t}, nil
}

func totalCount(m *definitions.Manager) int {
	n := 0
	for _, k := range definitions.Kinds {
		n += m.Count(k)
	}
	return n
}
