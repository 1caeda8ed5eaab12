package unify

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/perfdefs/definitions"
)

// Entry maps one local definition to its unified counterpart.
type Entry struct {
	// Unified is the handle in the unified manager. It is only meaningful on the
	// coordinator.
	Unified definitions.Handle `json:"unified" cbor:"1,keyasint"`
	// GlobalID is the unified sequence number, identical on every rank.
	GlobalID uint32 `json:"global_id" cbor:"2,keyasint"`
}

// RemapTable maps the local sequence numbers of one rank to unified definitions.
type RemapTable struct {
	Rank    int                          `json:"rank" cbor:"1,keyasint"`
	Entries map[definitions.Kind][]Entry `json:"entries" cbor:"2,keyasint"`
}

func newRemapTable(rank int) *RemapTable {
	return &RemapTable{Rank: rank, Entries: make(map[definitions.Kind][]Entry, len(definitions.Kinds))}
}

// Len returns the number of entries for kind k.
func (t *RemapTable) Len(k definitions.Kind) int {
	return len(t.Entries[k])
}

// Lookup returns the entry for the local definition of kind k with sequence number seq.
func (t *RemapTable) Lookup(k definitions.Kind, seq uint32) (Entry, bool) {
	es := t.Entries[k]
	if int(seq) >= len(es) {
		return Entry{}, false
	}
	return es[seq], true
}

// Unified returns the unified handle for (k, seq).
func (t *RemapTable) Unified(k definitions.Kind, seq uint32) (definitions.Handle, bool) {
	e, ok := t.Lookup(k, seq)
	return e.Unified, ok
}

// GlobalID returns the unified sequence number for (k, seq).
func (t *RemapTable) GlobalID(k definitions.Kind, seq uint32) (uint32, bool) {
	e, ok := t.Lookup(k, seq)
	return e.GlobalID, ok
}

// Referenced returns the set of global IDs of kind k this rank uses. Writers
// use it to restrict a rank's output to the unified definitions it refers to.
func (t *RemapTable) Referenced(k definitions.Kind) *roaring.Bitmap {
	bm := roaring.New()
	for _, e := range t.Entries[k] {
		bm.Add(e.GlobalID)
	}
	return bm
}

// Verify checks that the table is total for m: every local definition of every
// kind has an entry with a unified handle.
func (t *RemapTable) Verify(m *definitions.Manager) error {
	for _, k := range definitions.Kinds {
		want := m.Count(k)
		got := 0
		for _, e := range t.Entries[k] {
			if e.Unified != definitions.Invalid {
				got++
			}
		}
		if got != want || len(t.Entries[k]) != want {
			return fmt.Errorf("%w: rank %d %s: %d of %d definitions mapped",
				ErrIncompleteRemap, t.Rank, k, got, want)
		}
	}
	return nil
}

// VerifyCoverage checks that the tables of all ranks together reference every
// unified definition exactly by its global ID: the union of the referenced
// sets of each kind must be 0..n-1 for the n unified definitions of that kind.
func VerifyCoverage(unified *definitions.Manager, tables []*RemapTable) error {
	for _, k := range definitions.Kinds {
		union := roaring.New()
		for _, t := range tables {
			union.Or(t.Referenced(k))
		}
		n := uint64(unified.Count(k)) //nolint:gosec // count >= 0
		if union.GetCardinality() != n || (n > 0 && uint64(union.Maximum()) != n-1) {
			return fmt.Errorf("%w: %s: ranks reference %d global IDs, %d unified",
				ErrIncompleteRemap, k, union.GetCardinality(), n)
		}
	}
	return nil
}

// Apply stores the unified handles into the local records of m.
func (t *RemapTable) Apply(m *definitions.Manager) error {
	if err := t.Verify(m); err != nil {
		return err
	}
	for _, k := range definitions.Kinds {
		es := t.Entries[k]
		hs := make([]definitions.Handle, len(es))
		for i, e := range es {
			hs[i] = e.Unified
		}
		if err := m.ApplyRemap(k, hs); err != nil {
			return err
		}
	}
	return nil
}
