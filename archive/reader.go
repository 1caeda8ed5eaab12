package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/perfdefs/blobstore"
	"github.com/hupe1980/perfdefs/clocksync"
	"github.com/hupe1980/perfdefs/codec"
	"github.com/hupe1980/perfdefs/definitions"
	"github.com/hupe1980/perfdefs/unify"
)

var (
	// ErrNoManifest is returned by Open when the store holds no committed archive.
	ErrNoManifest = errors.New("archive: no manifest")
	// ErrUnknownCodec is returned for a manifest written with an unknown codec.
	ErrUnknownCodec = errors.New("archive: unknown codec")
	// ErrInvalidRank is returned for a rank outside the archived run.
	ErrInvalidRank = errors.New("archive: invalid rank")
)

// Archive reads a committed archive.
type Archive struct {
	Manifest *Manifest

	store blobstore.Store
	wire  unify.Wire
}

// Open reads the manifest of the archive in store. The codec is taken from
// the manifest name.
func Open(ctx context.Context, store blobstore.Store) (*Archive, error) {
	names, err := store.List(ctx, ManifestPrefix)
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		cname, ok := codecOf(name)
		if !ok {
			continue
		}
		c, ok := codec.ByName(cname)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, cname)
		}

		a := &Archive{store: store, wire: unify.Wire{Codec: c}}
		m := &Manifest{}
		if err := a.read(ctx, name, m); err != nil {
			return nil, err
		}
		if m.Version != CurrentVersion {
			return nil, fmt.Errorf("archive: unsupported version %d", m.Version)
		}
		a.Manifest = m
		return a, nil
	}
	return nil, ErrNoManifest
}

func (a *Archive) read(ctx context.Context, name string, v any) error {
	data, err := blobstore.ReadAll(ctx, a.store, name)
	if err != nil {
		return fmt.Errorf("archive: read %s: %w", name, err)
	}
	if err := a.wire.Decode(data, v); err != nil {
		return fmt.Errorf("archive: decode %s: %w", name, err)
	}
	return nil
}

func (a *Archive) checkRank(rank int) error {
	if rank < 0 || rank >= a.Manifest.Ranks {
		return fmt.Errorf("%w: %d of %d", ErrInvalidRank, rank, a.Manifest.Ranks)
	}
	return nil
}

// Definitions returns the unified definitions. The sequence number of a
// definition in the batch is its global ID.
func (a *Archive) Definitions(ctx context.Context) (*unify.Batch, error) {
	b := &unify.Batch{}
	if err := a.read(ctx, DefinitionsName(a.Manifest.Codec), b); err != nil {
		return nil, err
	}
	return b, nil
}

// Remap returns the remap table of rank.
func (a *Archive) Remap(ctx context.Context, rank int) (*unify.RemapTable, error) {
	if err := a.checkRank(rank); err != nil {
		return nil, err
	}
	t := &unify.RemapTable{}
	if err := a.read(ctx, RemapName(rank, a.Manifest.Codec), t); err != nil {
		return nil, err
	}
	return t, nil
}

// Clock returns the clock offset samples of rank, oldest first.
func (a *Archive) Clock(ctx context.Context, rank int) ([]clocksync.Offset, error) {
	if err := a.checkRank(rank); err != nil {
		return nil, err
	}
	var samples []clocksync.Offset
	if err := a.read(ctx, ClockName(rank, a.Manifest.Codec), &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

// Used returns, per kind, the global IDs of the unified definitions rank
// refers to.
func (a *Archive) Used(ctx context.Context, rank int) (map[definitions.Kind]*roaring.Bitmap, error) {
	if err := a.checkRank(rank); err != nil {
		return nil, err
	}
	var raw map[definitions.Kind][]byte
	name := UsedName(rank, a.Manifest.Codec)
	if err := a.read(ctx, name, &raw); err != nil {
		return nil, err
	}
	out := make(map[definitions.Kind]*roaring.Bitmap, len(raw))
	for k, data := range raw {
		bm := roaring.New()
		if err := bm.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("archive: decode %s %s: %w", name, k, err)
		}
		out[k] = bm
	}
	return out, nil
}
