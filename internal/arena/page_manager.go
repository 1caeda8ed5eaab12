package arena

import (
	"fmt"
)

// PageManager bump-allocates from pages drawn from an Arena.
// It is not safe for concurrent use.
type PageManager struct {
	arena   *Arena
	current *page
	used    int64

	// last records the most recent allocation for Rollback.
	last struct {
		handle Handle
		page   *page
		offset int
		size   int
	}
}

// NewPageManager creates a page manager on a.
func (a *Arena) NewPageManager() *PageManager {
	return &PageManager{arena: a}
}

// Arena returns the arena the page manager allocates from.
func (pm *PageManager) Arena() *Arena {
	return pm.arena
}

// Allocate reserves size bytes and returns the handle and the zeroed memory.
// A new page is taken from the arena when the current one is exhausted.
func (pm *PageManager) Allocate(size int) (Handle, []byte, error) {
	if size <= 0 {
		return Invalid, nil, fmt.Errorf("arena: invalid allocation size %d", size)
	}
	aligned := (size + Alignment - 1) &^ (Alignment - 1)

	// Offsets must stay below the page size to be encodable in a handle, so an
	// oversized page takes no further allocations once its first one is placed.
	if pm.current == nil || pm.current.used+aligned > len(pm.current.data) || pm.current.used >= pm.arena.pageSize {
		p, err := pm.arena.newPage(aligned)
		if err != nil {
			return Invalid, nil, err
		}
		pm.current = p
	}

	p := pm.current
	offset := p.used
	p.used += aligned
	pm.used += int64(aligned)

	h := pm.arena.handle(p, offset)
	pm.last.handle = h
	pm.last.page = p
	pm.last.offset = offset
	pm.last.size = aligned

	pm.arena.stats.BytesUsed.Add(uint64(aligned)) //nolint:gosec // aligned > 0
	pm.arena.stats.TotalAllocs.Add(1)

	return h, p.data[offset : offset+size : offset+aligned], nil
}

// Rollback releases the most recent allocation. It panics if h is not the most
// recent allocation of this page manager, which is a programming error.
//
// The space is zeroed again so that the next allocation hands out clean memory.
func (pm *PageManager) Rollback(h Handle) {
	if h == Invalid || h != pm.last.handle {
		panic(fmt.Sprintf("arena: rollback of %#x which is not the most recent allocation", uint32(h)))
	}

	p := pm.last.page
	clear(p.data[pm.last.offset : pm.last.offset+pm.last.size])
	p.used = pm.last.offset
	pm.used -= int64(pm.last.size)

	// A page opened for the rolled-back allocation stays current; the tail of
	// the page before it is not revisited.
	pm.arena.stats.BytesUsed.Add(^uint64(pm.last.size - 1))
	pm.arena.stats.Rollbacks.Add(1)
	pm.last.handle = Invalid
}

// HighWaterMark returns the bytes currently allocated through this page manager.
func (pm *PageManager) HighWaterMark() int64 {
	return pm.used
}
