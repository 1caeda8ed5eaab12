package arena

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/perfdefs/internal/mem"
	"github.com/hupe1980/perfdefs/internal/mmap"
)

// MemoryAcquirer is charged for every page before it is allocated.
type MemoryAcquirer interface {
	AcquireMemory(amount int64) error
	ReleaseMemory(amount int64)
}

var (
	// ErrOutOfMemory is returned when no further page can be allocated.
	ErrOutOfMemory = errors.New("arena: out of memory")
	// ErrInvalidHandle is returned by Deref for handles that do not address an allocation.
	ErrInvalidHandle = errors.New("arena: invalid handle")
	// ErrClosed is returned after Free.
	ErrClosed = errors.New("arena: closed")
)

const (
	// DefaultPageSize is the default size of a page (8 KiB).
	DefaultPageSize = 8 * 1024
	// DefaultTotalMemory is the default budget for one arena (16000 KiB).
	DefaultTotalMemory = 16000 * 1024
	// Alignment is the alignment of every allocation.
	Alignment = 8

	minPageSize = 512
)

// Handle is a movable reference to an allocation: page index in the high bits,
// byte offset within the page in the low bits.
type Handle uint32

// Invalid is the zero handle; it never addresses an allocation.
const Invalid Handle = 0

// PageSource provides the raw backing memory for pages.
type PageSource interface {
	AllocatePage(size int) ([]byte, error)
	ReleasePage(page []byte) error
}

// HeapPages allocates pages as aligned Go byte slices.
type HeapPages struct{}

// AllocatePage implements PageSource.
func (HeapPages) AllocatePage(size int) ([]byte, error) {
	return mem.AllocPage(size, mem.DefaultAlignment), nil
}

// ReleasePage implements PageSource.
func (HeapPages) ReleasePage([]byte) error { return nil }

// AnonPages allocates pages as anonymous memory mappings.
type AnonPages struct {
	mu       sync.Mutex
	mappings map[*byte]*mmap.Mapping
}

// AllocatePage implements PageSource.
func (s *AnonPages) AllocatePage(size int) ([]byte, error) {
	m, err := mmap.MapAnon(size)
	if err != nil {
		return nil, fmt.Errorf("failed to map anonymous memory for page: %w", err)
	}
	data := m.Bytes()

	s.mu.Lock()
	if s.mappings == nil {
		s.mappings = make(map[*byte]*mmap.Mapping)
	}
	s.mappings[&data[0]] = m
	s.mu.Unlock()

	return data, nil
}

// ReleasePage implements PageSource.
func (s *AnonPages) ReleasePage(page []byte) error {
	if len(page) == 0 {
		return nil
	}
	s.mu.Lock()
	m, ok := s.mappings[&page[0]]
	delete(s.mappings, &page[0])
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return m.Close()
}

// Stats tracks arena memory usage.
//
//   - Pages: pages currently held
//   - BytesReserved: bytes of backing memory held by pages
//   - BytesUsed: aligned bytes handed out and not rolled back
//   - TotalAllocs: cumulative allocation count (rollbacks are not subtracted)
//   - Rollbacks: cumulative rollback count
type Stats struct {
	Pages         uint64
	BytesReserved uint64
	BytesUsed     uint64
	TotalAllocs   uint64
	Rollbacks     uint64
}

type atomicStats struct {
	Pages         atomic.Uint64
	BytesReserved atomic.Uint64
	BytesUsed     atomic.Uint64
	TotalAllocs   atomic.Uint64
	Rollbacks     atomic.Uint64
}

type page struct {
	data  []byte
	index uint32
	// used is only touched by the owning page manager.
	used int
}

// Arena is a page pool with a stable page table.
type Arena struct {
	pageSize   int
	pageBits   uint
	offsetMask uint32
	maxPages   uint32

	pages []atomic.Pointer[page] // index 0 is never populated
	count atomic.Uint32          // next page index

	mu       sync.Mutex
	closed   atomic.Bool
	source   PageSource
	acquirer MemoryAcquirer
	stats    atomicStats
}

// Option is a configuration option for Arena.
type Option func(*config)

type config struct {
	pageSize    int
	totalMemory int64
	source      PageSource
	acquirer    MemoryAcquirer
}

// WithPageSize sets the page size. It is rounded up to a power of two.
func WithPageSize(size int) Option {
	return func(c *config) {
		c.pageSize = size
	}
}

// WithTotalMemory sets the upper bound of memory the arena may reserve.
func WithTotalMemory(bytes int64) Option {
	return func(c *config) {
		c.totalMemory = bytes
	}
}

// WithPageSource sets the backing memory provider.
func WithPageSource(src PageSource) Option {
	return func(c *config) {
		c.source = src
	}
}

// WithMemoryAcquirer sets the memory acquirer for the arena.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(c *config) {
		c.acquirer = acquirer
	}
}

// New creates a new Arena.
func New(opts ...Option) (*Arena, error) {
	cfg := config{
		pageSize:    DefaultPageSize,
		totalMemory: DefaultTotalMemory,
		source:      HeapPages{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.pageSize < minPageSize {
		cfg.pageSize = minPageSize
	}
	pageBits := uint(bits.Len(uint(cfg.pageSize - 1))) //nolint:gosec // pageSize > 0
	pageSize := 1 << pageBits

	if cfg.totalMemory < int64(pageSize) {
		return nil, fmt.Errorf("arena: total memory %d smaller than page size %d", cfg.totalMemory, pageSize)
	}
	maxPages := cfg.totalMemory / int64(pageSize)
	// The page index must fit into the upper bits of a handle; index 0 is reserved.
	if limit := int64(1)<<(32-pageBits) - 1; maxPages > limit {
		return nil, fmt.Errorf("arena: %d pages of %d bytes exceed the handle space (%d pages)", maxPages, pageSize, limit)
	}

	a := &Arena{
		pageSize:   pageSize,
		pageBits:   pageBits,
		offsetMask: uint32(pageSize - 1), //nolint:gosec // pageSize <= 2^31
		maxPages:   uint32(maxPages),     //nolint:gosec // checked against handle space
		pages:      make([]atomic.Pointer[page], maxPages+1),
		source:     cfg.source,
		acquirer:   cfg.acquirer,
	}
	a.count.Store(1)
	return a, nil
}

// PageSize returns the (rounded) page size.
func (a *Arena) PageSize() int {
	return a.pageSize
}

// newPage reserves n consecutive page slots worth of memory as one page.
// Oversized requests get a single page that is a multiple of the page size.
func (a *Arena) newPage(minSize int) (*page, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}

	size := a.pageSize
	if minSize > size {
		size = (minSize + a.pageSize - 1) &^ (a.pageSize - 1)
	}
	slots := uint32(size / a.pageSize) //nolint:gosec // size bounded by totalMemory

	a.mu.Lock()
	defer a.mu.Unlock()

	idx := a.count.Load()
	if idx-1+slots > a.maxPages {
		return nil, fmt.Errorf("%w: %d of %d pages in use", ErrOutOfMemory, idx-1, a.maxPages)
	}

	if a.acquirer != nil {
		if err := a.acquirer.AcquireMemory(int64(size)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOutOfMemory, err)
		}
	}

	data, err := a.source.AllocatePage(size)
	if err != nil {
		if a.acquirer != nil {
			a.acquirer.ReleaseMemory(int64(size))
		}
		return nil, fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	}

	p := &page{data: data, index: idx}
	// Oversized pages occupy several slots so that the page budget stays exact;
	// only the first slot is addressable.
	a.pages[idx].Store(p)
	a.count.Store(idx + slots)

	a.stats.Pages.Add(1)
	a.stats.BytesReserved.Add(uint64(size)) //nolint:gosec // size > 0

	return p, nil
}

func (a *Arena) handle(p *page, offset int) Handle {
	return Handle(p.index<<a.pageBits | uint32(offset)) //nolint:gosec // offset < pageSize
}

// Deref resolves h to the bytes from its offset to the end of its page.
//
// The slice stays valid until Free. Callers must not keep it across operations
// that may allocate: the contract of movable memory allows pages to be replaced.
func (a *Arena) Deref(h Handle) ([]byte, error) {
	if h == Invalid {
		return nil, ErrInvalidHandle
	}
	if a.closed.Load() {
		return nil, ErrClosed
	}

	idx := uint32(h) >> a.pageBits
	offset := int(uint32(h) & a.offsetMask)

	if idx == 0 || idx >= a.count.Load() {
		return nil, fmt.Errorf("%w: page %d", ErrInvalidHandle, idx)
	}
	p := a.pages[idx].Load()
	if p == nil || offset >= len(p.data) {
		return nil, fmt.Errorf("%w: %#x", ErrInvalidHandle, uint32(h))
	}
	return p.data[offset:], nil
}

// MustDeref is Deref for handles the caller obtained from this arena.
// It panics on an invalid handle.
func (a *Arena) MustDeref(h Handle) []byte {
	b, err := a.Deref(h)
	if err != nil {
		panic(err)
	}
	return b
}

// Stats returns the current arena statistics.
func (a *Arena) Stats() Stats {
	return Stats{
		Pages:         a.stats.Pages.Load(),
		BytesReserved: a.stats.BytesReserved.Load(),
		BytesUsed:     a.stats.BytesUsed.Load(),
		TotalAllocs:   a.stats.TotalAllocs.Load(),
		Rollbacks:     a.stats.Rollbacks.Load(),
	}
}

// Free releases all pages. Handles become invalid.
// Do NOT call Free concurrently with allocations or Deref.
func (a *Arena) Free() error {
	if a.closed.Swap(true) {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	count := a.count.Load()
	for i := uint32(1); i < count; i++ {
		p := a.pages[i].Load()
		if p == nil {
			continue
		}
		if err := a.source.ReleasePage(p.data); err != nil {
			errs = append(errs, err)
		}
		a.pages[i].Store(nil)
	}

	if a.acquirer != nil {
		a.acquirer.ReleaseMemory(int64(a.stats.BytesReserved.Load())) //nolint:gosec // bounded by totalMemory
	}
	a.stats.Pages.Store(0)
	a.stats.BytesReserved.Store(0)
	a.stats.BytesUsed.Store(0)

	return errors.Join(errs...)
}

func (a *Arena) String() string {
	stats := a.Stats()
	return fmt.Sprintf(
		"Arena{pages: %d, reserved: %.2f KiB, used: %.2f KiB, allocs: %d, rollbacks: %d}",
		stats.Pages,
		float64(stats.BytesReserved)/1024,
		float64(stats.BytesUsed)/1024,
		stats.TotalAllocs,
		stats.Rollbacks,
	)
}
