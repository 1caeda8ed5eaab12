package unify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/perfdefs/codec"
	"github.com/hupe1980/perfdefs/definitions"
	"github.com/hupe1980/perfdefs/internal/compress"
	"github.com/hupe1980/perfdefs/ipc"
)

func newLocal(t *testing.T) *definitions.Manager {
	t.Helper()
	m, err := definitions.New(definitions.Local)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Free() })
	return m
}

// defineRegion defines name@(file, begin, end) with all its dependencies.
func defineRegion(t *testing.T, m *definitions.Manager, name, file string, begin, end uint32) definitions.Handle {
	t.Helper()
	n, err := m.DefineString(name)
	require.NoError(t, err)
	fn, err := m.DefineString(file)
	require.NoError(t, err)
	f, err := m.DefineSourceFile(definitions.SourceFile{Name: fn})
	require.NoError(t, err)
	r, err := m.DefineRegion(definitions.Region{
		Name: n, CanonicalName: n, File: f, BeginLine: begin, EndLine: end, Type: definitions.RegionFunction,
	})
	require.NoError(t, err)
	return r
}

// contents renders every definition of m by value, independent of handles.
func contents(t *testing.T, m *definitions.Manager) []string {
	t.Helper()
	str := func(h definitions.Handle) string {
		if h == definitions.Invalid {
			return "-"
		}
		s, err := m.StringValue(h)
		require.NoError(t, err)
		return s
	}
	region := func(h definitions.Handle) string {
		r, err := m.Region(h)
		require.NoError(t, err)
		file := "-"
		if r.File != definitions.Invalid {
			sf, err := m.SourceFile(r.File)
			require.NoError(t, err)
			file = str(sf.Name)
		}
		return fmt.Sprintf("%s@%s:%d-%d", str(r.Name), file, r.BeginLine, r.EndLine)
	}
	var callpath func(h definitions.Handle) string
	callpath = func(h definitions.Handle) string {
		cp, err := m.Callpath(h)
		require.NoError(t, err)
		if cp.Parent == definitions.Invalid {
			return region(cp.Region)
		}
		return callpath(cp.Parent) + "/" + region(cp.Region)
	}

	var out []string
	for _, k := range definitions.Kinds {
		err := m.ForEach(k, func(h definitions.Handle) error {
			switch k {
			case definitions.KindString:
				out = append(out, "string "+str(h))
			case definitions.KindSourceFile:
				sf, err := m.SourceFile(h)
				require.NoError(t, err)
				out = append(out, "file "+str(sf.Name))
			case definitions.KindRegion:
				out = append(out, "region "+region(h))
			case definitions.KindProperty:
				p, err := m.Property(h)
				require.NoError(t, err)
				out = append(out, fmt.Sprintf("property %d=%v", p.ID, p.Value))
			case definitions.KindCallpath:
				out = append(out, "callpath "+callpath(h))
			default:
				out = append(out, k.String())
			}
			return nil
		})
		require.NoError(t, err)
	}
	sort.Strings(out)
	return out
}

func TestRunThreeRanks(t *testing.T) {
	const n = 3
	locals := make([]*definitions.Manager, n)
	regions := make([]definitions.Handle, n)
	for r := range locals {
		locals[r] = newLocal(t)
		// Give every rank a different local layout.
		for i := 0; i < r; i++ {
			_, err := locals[r].DefineString(fmt.Sprintf("rank%d-only-%d", r, i))
			require.NoError(t, err)
		}
		regions[r] = defineRegion(t, locals[r], "main", "main.c", 10, 20)
	}

	results := make([]*Result, n)
	var mu sync.Mutex
	err := ipc.RunLocal(context.Background(), n, func(ctx context.Context, c ipc.Communicator) error {
		res, err := Run(ctx, c, locals[c.Rank()])
		if err != nil {
			return err
		}
		mu.Lock()
		results[c.Rank()] = res
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	unified := results[Coordinator].Unified
	require.NotNil(t, unified)
	defer func() { _ = unified.Free() }()

	for r := 1; r < n; r++ {
		assert.Nil(t, results[r].Unified)
		assert.Nil(t, results[r].Tables)
	}

	assert.Equal(t, 1, unified.Count(definitions.KindRegion))
	assert.Equal(t, 1, unified.Count(definitions.KindSourceFile))
	// "main", "main.c" plus one rank1 and two rank2 private strings.
	assert.Equal(t, 5, unified.Count(definitions.KindString))

	var mainCount int
	require.NoError(t, unified.ForEach(definitions.KindString, func(h definitions.Handle) error {
		if s, _ := unified.StringValue(h); s == "main" {
			mainCount++
		}
		return nil
	}))
	assert.Equal(t, 1, mainCount)

	unifiedRegions, err := unified.Handles(definitions.KindRegion)
	require.NoError(t, err)
	require.Len(t, unifiedRegions, 1)

	for r := 0; r < n; r++ {
		seq, err := locals[r].SequenceNumber(regions[r])
		require.NoError(t, err)

		h, ok := results[Coordinator].Tables[r].Unified(definitions.KindRegion, seq)
		require.True(t, ok)
		assert.Equal(t, unifiedRegions[0], h)

		gid, ok := results[r].Remap.GlobalID(definitions.KindRegion, seq)
		require.True(t, ok)
		assert.Equal(t, uint32(0), gid)

		u, err := locals[r].Unified(regions[r])
		require.NoError(t, err)
		assert.Equal(t, unifiedRegions[0], u)

		assert.Equal(t, locals[r].Count(definitions.KindString)+2, results[r].Exported)
	}
}

func TestRunSingleProcess(t *testing.T) {
	local := newLocal(t)
	h := defineRegion(t, local, "foo", "foo.c", 1, 2)

	res, err := Run(context.Background(), ipc.Single(), local)
	require.NoError(t, err)
	defer func() { _ = res.Unified.Free() }()

	require.Len(t, res.Tables, 1)
	assert.Same(t, res.Remap, res.Tables[0])
	assert.Equal(t, contents(t, local), contents(t, res.Unified))

	u, err := local.Unified(h)
	require.NoError(t, err)
	assert.NotEqual(t, definitions.Invalid, u)
}

// buildBatches creates three ranks with overlapping definitions in different
// local orders.
func buildBatches(t *testing.T) []*Batch {
	t.Helper()
	specs := [][]string{
		{"main", "solve", "io"},
		{"io", "main", "mpi_send"},
		{"solve", "mpi_send", "main", "init"},
	}
	batches := make([]*Batch, len(specs))
	for r, names := range specs {
		m := newLocal(t)
		var parent definitions.Handle
		for i, name := range names {
			defineRegion(t, m, name, name+".c", uint32(i), uint32(i+1)) //nolint:gosec // small
			region := defineRegion(t, m, name, name+".c", 0, 1)
			cp, err := m.DefineCallpath(definitions.Callpath{Parent: parent, Region: region})
			require.NoError(t, err)
			parent = cp
		}
		_, err := m.DefineProperty(definitions.Property{
			ID: definitions.PropertyMPICommunicationComplete, Condition: definitions.ConditionAll, Value: r != 1,
		})
		require.NoError(t, err)

		b, err := Export(m, r)
		require.NoError(t, err)
		batches[r] = b
	}
	return batches
}

func permutations(n int) [][]int {
	if n == 1 {
		return [][]int{{0}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			q := append(append(append([]int{}, p[:i]...), n-1), p[i:]...)
			out = append(out, q)
		}
	}
	return out
}

func TestMergeDeterminism(t *testing.T) {
	batches := buildBatches(t)

	merge := func(order []int) (*definitions.Manager, []*RemapTable) {
		u, err := definitions.New(definitions.Unified)
		require.NoError(t, err)
		t.Cleanup(func() { _ = u.Free() })
		tables := make([]*RemapTable, len(order))
		for _, r := range order {
			tbl, err := Merge(u, batches[r])
			require.NoError(t, err)
			tables[r] = tbl
		}
		return u, tables
	}

	ref, refTables := merge([]int{0, 1, 2})
	want := contents(t, ref)
	assert.Contains(t, want, "property 1=false")

	for _, order := range permutations(3) {
		t.Run(fmt.Sprint(order), func(t *testing.T) {
			u, _ := merge(order)
			assert.Equal(t, want, contents(t, u))
		})
	}

	// The rank-then-sequence order reproduces exactly.
	again, againTables := merge([]int{0, 1, 2})
	assert.Equal(t, refTables, againTables)
	for _, k := range definitions.Kinds {
		a, err := ref.Handles(k)
		require.NoError(t, err)
		b, err := again.Handles(k)
		require.NoError(t, err)
		assert.Equal(t, a, b, k.String())
	}
}

func TestMergeMissingDependency(t *testing.T) {
	t.Run("ForwardString", func(t *testing.T) {
		u, err := definitions.New(definitions.Unified)
		require.NoError(t, err)
		defer func() { _ = u.Free() }()

		b := &Batch{
			Rank:    4,
			Strings: []string{"main"},
			Regions: []Region{{Name: refOf(0), CanonicalName: refOf(3)}},
		}
		_, err = Merge(u, b)
		var mde *MissingDependencyError
		require.ErrorAs(t, err, &mde)
		assert.Equal(t, 4, mde.Rank)
		assert.Equal(t, definitions.KindRegion, mde.Kind)
		assert.Equal(t, definitions.KindString, mde.RefKind)
		assert.Equal(t, uint32(3), mde.Ref)
	})

	t.Run("ForwardParent", func(t *testing.T) {
		u, err := definitions.New(definitions.Unified)
		require.NoError(t, err)
		defer func() { _ = u.Free() }()

		b := &Batch{
			Strings:   []string{"f"},
			Regions:   []Region{{Name: refOf(0), CanonicalName: refOf(0)}},
			Callpaths: []Callpath{{Parent: refOf(1), Region: refOf(0)}, {Region: refOf(0)}},
		}
		_, err = Merge(u, b)
		var mde *MissingDependencyError
		require.ErrorAs(t, err, &mde)
		assert.Equal(t, definitions.KindCallpath, mde.RefKind)
		assert.Equal(t, uint32(0), mde.Sequence)
	})
}

func TestWire(t *testing.T) {
	batches := buildBatches(t)

	for _, name := range codec.Names() {
		for _, ct := range []compress.Type{compress.None, compress.LZ4, compress.ZSTD} {
			t.Run(name+"/"+ct.String(), func(t *testing.T) {
				c, _ := codec.ByName(name)
				w := Wire{Codec: c, Compression: ct}

				data, err := w.Encode(batches[2])
				require.NoError(t, err)

				var got Batch
				require.NoError(t, w.Decode(data, &got))
				assert.Equal(t, batches[2], &got)
			})
		}
	}

	t.Run("Corrupt", func(t *testing.T) {
		w := Wire{}
		data, err := w.Encode(batches[0])
		require.NoError(t, err)

		flipped := append([]byte(nil), data...)
		flipped[len(flipped)-1] ^= 0xFF
		assert.ErrorIs(t, w.Decode(flipped, &Batch{}), ErrCorruptBatch)

		assert.ErrorIs(t, w.Decode(data[:4], &Batch{}), ErrCorruptBatch)

		badMagic := append([]byte(nil), data...)
		badMagic[0] ^= 0xFF
		assert.ErrorIs(t, w.Decode(badMagic, &Batch{}), ErrCorruptBatch)
	})
}

type countingLimiter struct {
	mu    sync.Mutex
	bytes int
}

func (l *countingLimiter) AcquireTransfer(_ context.Context, n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bytes += n
	return nil
}

func TestRunOptions(t *testing.T) {
	const n = 4
	locals := make([]*definitions.Manager, n)
	for r := range locals {
		locals[r] = newLocal(t)
		defineRegion(t, locals[r], "main", "main.c", 1, 2)
		defineRegion(t, locals[r], fmt.Sprintf("worker_%d", r), "worker.c", 5, 9)
	}

	limiter := &countingLimiter{}
	var unified *definitions.Manager
	err := ipc.RunLocal(context.Background(), n, func(ctx context.Context, c ipc.Communicator) error {
		res, err := Run(ctx, c, locals[c.Rank()],
			WithCodec(codec.GoJSON{}),
			WithCompression(compress.ZSTD),
			WithTransferLimiter(limiter),
		)
		if err != nil {
			return err
		}
		if res.Unified != nil {
			unified = res.Unified
		}
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, unified)
	defer func() { _ = unified.Free() }()

	assert.Positive(t, limiter.bytes)
	assert.Equal(t, n+1, unified.Count(definitions.KindRegion))
	assert.Equal(t, 2, unified.Count(definitions.KindSourceFile))
}

func TestRemapTable(t *testing.T) {
	local := newLocal(t)
	defineRegion(t, local, "a", "a.c", 1, 2)
	defineRegion(t, local, "b", "a.c", 3, 4)

	b, err := Export(local, 0)
	require.NoError(t, err)
	u, err := definitions.New(definitions.Unified)
	require.NoError(t, err)
	defer func() { _ = u.Free() }()

	tbl, err := Merge(u, b)
	require.NoError(t, err)
	require.NoError(t, tbl.Verify(local))

	ids := tbl.Referenced(definitions.KindString)
	assert.Equal(t, uint64(3), ids.GetCardinality())
	assert.True(t, ids.Contains(2))

	_, ok := tbl.Lookup(definitions.KindRegion, 2)
	assert.False(t, ok)

	tbl.Entries[definitions.KindRegion] = tbl.Entries[definitions.KindRegion][:1]
	err = tbl.Apply(local)
	assert.ErrorIs(t, err, ErrIncompleteRemap)
	assert.Contains(t, err.Error(), "region")
}

func TestVerifyCoverage(t *testing.T) {
	u, err := definitions.New(definitions.Unified)
	require.NoError(t, err)
	defer func() { _ = u.Free() }()

	var tables []*RemapTable
	for rank, name := range []string{"a", "b"} {
		local := newLocal(t)
		defineRegion(t, local, name, name+".c", 1, 2)
		b, err := Export(local, rank)
		require.NoError(t, err)
		tbl, err := Merge(u, b)
		require.NoError(t, err)
		tables = append(tables, tbl)
	}
	require.NoError(t, VerifyCoverage(u, tables))

	// Rank 1 alone contributed "b" and "b.c".
	err = VerifyCoverage(u, tables[:1])
	assert.ErrorIs(t, err, ErrIncompleteRemap)
	assert.Contains(t, err.Error(), "string")

	// A global ID past the unified count.
	tables[1].Entries[definitions.KindRegion][0].GlobalID = 7
	assert.ErrorIs(t, VerifyCoverage(u, tables), ErrIncompleteRemap)
}

func TestRunTransportFailure(t *testing.T) {
	w, err := ipc.NewWorld(2)
	require.NoError(t, err)
	c1, err := w.Comm(1)
	require.NoError(t, err)
	w.Close()

	_, err = Run(context.Background(), c1, newLocal(t))
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, Coordinator, te.Peer)
	assert.ErrorIs(t, err, ipc.ErrClosed)
}
