package mem

import (
	"unsafe"
)

// DefaultAlignment is the page alignment used when none is requested (one cache line).
const DefaultAlignment = 64

// AllocPage allocates a zeroed page of size bytes whose start address is a multiple
// of align. align must be a power of two; values <= 0 select DefaultAlignment.
//
// The page is over-allocated by align bytes; the underlying array is kept alive by
// the returned slice.
func AllocPage(size, align int) []byte {
	if size <= 0 {
		return nil
	}
	if align <= 0 {
		align = DefaultAlignment
	}

	buf := make([]byte, size+align)

	addr := uintptr(unsafe.Pointer(&buf[0])) //nolint:gosec // unsafe is required for memory alignment
	mask := uintptr(align - 1)
	offset := (uintptr(align) - (addr & mask)) & mask

	return buf[offset : offset+uintptr(size) : offset+uintptr(size)]
}
