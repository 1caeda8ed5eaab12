package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/perfdefs/blobstore"
	"github.com/hupe1980/perfdefs/clocksync"
	"github.com/hupe1980/perfdefs/codec"
	"github.com/hupe1980/perfdefs/definitions"
	"github.com/hupe1980/perfdefs/internal/compress"
	"github.com/hupe1980/perfdefs/ipc"
	"github.com/hupe1980/perfdefs/unify"
)

// DefaultConcurrency is the default number of parallel blob uploads.
const DefaultConcurrency = 4

// Writer stores archives. It is used collectively: every rank calls Write.
type Writer struct {
	store       blobstore.Store
	wire        unify.Wire
	logger      *slog.Logger
	concurrency int
}

// Option configures a Writer or Open.
type Option func(*Writer)

// WithCodec sets the blob codec. All ranks must agree.
func WithCodec(c codec.Codec) Option {
	return func(w *Writer) {
		w.wire.Codec = c
	}
}

// WithCompression sets the blob compression.
func WithCompression(t compress.Type) Option {
	return func(w *Writer) {
		w.wire.Compression = t
	}
}

// WithLogger sets the logger. Nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = l
	}
}

// WithConcurrency sets the number of parallel uploads.
func WithConcurrency(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// NewWriter creates a writer on store.
func NewWriter(store blobstore.Store, opts ...Option) *Writer {
	w := &Writer{
		store:       store,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.wire.Codec == nil {
		w.wire.Codec = codec.Default
	}
	if w.logger == nil {
		w.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return w
}

// Input is what one rank contributes to an archive.
type Input struct {
	// Result is the rank's unification result.
	Result *unify.Result
	// Offsets are the rank's clock offset samples.
	Offsets *clocksync.Offsets
	// Epoch is the global epoch of the run.
	Epoch clocksync.Epoch
	// Mode is the clock synchronization mode of the run.
	Mode clocksync.Mode
}

type pending struct {
	name string
	data []byte
}

// Write gathers the clock offsets of all ranks at the coordinator, which then
// stores all blobs in parallel and commits the manifest. The manifest is
// returned on the coordinator; other ranks get nil.
func (w *Writer) Write(ctx context.Context, c ipc.Communicator, in Input) (*Manifest, error) {
	own, err := w.wire.Encode(in.Offsets.All())
	if err != nil {
		return nil, err
	}
	clocks, err := ipc.Gather(ctx, c, unify.Coordinator, own)
	if err != nil {
		return nil, &unify.TransportError{Op: "gather clock offsets at", Peer: unify.Coordinator, Err: err}
	}
	if c.Rank() != unify.Coordinator {
		return nil, nil
	}

	start := time.Now()
	res := in.Result
	if res == nil || res.Unified == nil || len(res.Tables) != c.Size() {
		return nil, fmt.Errorf("archive: coordinator result incomplete")
	}

	name := w.wire.Codec.Name()
	blobs := make([]pending, 0, 3*c.Size()+1)

	defs, err := unify.Export(res.Unified, unify.Coordinator)
	if err != nil {
		return nil, err
	}
	data, err := w.wire.Encode(defs)
	if err != nil {
		return nil, err
	}
	blobs = append(blobs, pending{name: DefinitionsName(name), data: data})

	for rank := 0; rank < c.Size(); rank++ {
		data, err := w.wire.Encode(res.Tables[rank])
		if err != nil {
			return nil, err
		}
		used, err := encodeUsed(res.Tables[rank])
		if err != nil {
			return nil, err
		}
		usedData, err := w.wire.Encode(used)
		if err != nil {
			return nil, err
		}
		blobs = append(blobs,
			pending{name: RemapName(rank, name), data: data},
			pending{name: ClockName(rank, name), data: clocks[rank]},
			pending{name: UsedName(rank, name), data: usedData},
		)
	}

	m := &Manifest{
		Version:     CurrentVersion,
		CreatedAt:   time.Now().UTC(),
		Ranks:       c.Size(),
		Codec:       name,
		Compression: w.wire.Compression.String(),
		ClockMode:   in.Mode.String(),
		Epoch:       in.Epoch,
		Definitions: make(map[string]int, len(definitions.Kinds)),
		Blobs:       make([]BlobInfo, len(blobs)),
	}
	for _, k := range definitions.Kinds {
		m.Definitions[k.String()] = res.Unified.Count(k)
	}

	// A manifest left by an earlier run would describe a mix of old and new
	// blobs until the new one is committed.
	if err := w.retract(ctx); err != nil {
		return nil, err
	}
	if err := w.putAll(ctx, blobs, m); err != nil {
		return nil, err
	}

	data, err = w.wire.Encode(m)
	if err != nil {
		return nil, err
	}
	if err := w.store.Put(ctx, ManifestName(name), data); err != nil {
		return nil, fmt.Errorf("archive: put manifest: %w", err)
	}

	w.logger.Info("archive written",
		"blobs", len(blobs)+1,
		"bytes", m.TotalSize()+int64(len(data)),
		"duration", time.Since(start),
	)
	return m, nil
}

func (w *Writer) putAll(ctx context.Context, blobs []pending, m *Manifest) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	var mu sync.Mutex
	for i, b := range blobs {
		g.Go(func() error {
			if err := w.store.Put(ctx, b.name, b.data); err != nil {
				return fmt.Errorf("archive: put %s: %w", b.name, err)
			}
			mu.Lock()
			m.Blobs[i] = BlobInfo{Name: b.name, Size: int64(len(b.data))}
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// retract deletes every committed manifest in the store.
func (w *Writer) retract(ctx context.Context) error {
	names, err := w.store.List(ctx, ManifestPrefix)
	if err != nil {
		return fmt.Errorf("archive: list manifests: %w", err)
	}
	for _, name := range names {
		if _, ok := codecOf(name); !ok {
			continue
		}
		if err := w.store.Delete(ctx, name); err != nil {
			return fmt.Errorf("archive: delete %s: %w", name, err)
		}
		w.logger.Debug("retracted manifest", "name", name)
	}
	return nil
}

// encodeUsed serializes the referenced global IDs per kind in the portable
// roaring format.
func encodeUsed(t *unify.RemapTable) (map[definitions.Kind][]byte, error) {
	out := make(map[definitions.Kind][]byte, len(definitions.Kinds))
	for _, k := range definitions.Kinds {
		bm := t.Referenced(k)
		bm.RunOptimize()
		data, err := bm.ToBytes()
		if err != nil {
			return nil, fmt.Errorf("archive: encode used %s: %w", k, err)
		}
		out[k] = data
	}
	return out, nil
}
