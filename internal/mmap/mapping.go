package mmap

import (
	"os"
	"sync/atomic"
)

// Mapping is a region of mapped memory. It owns the region until Close.
type Mapping struct {
	data    []byte
	release func([]byte) error
	closed  atomic.Bool
}

func newMapping(data []byte, release func([]byte) error) *Mapping {
	return &Mapping{data: data, release: release}
}

// Open maps the file at path read-only. An empty file yields an empty mapping.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	switch size := fi.Size(); {
	case size < 0:
		return nil, ErrInvalidSize
	case size == 0:
		return newMapping(nil, nil), nil
	default:
		data, release, err := osMap(f, int(size))
		if err != nil {
			return nil, err
		}
		return newMapping(data, release), nil
	}
}

// MapAnon maps size bytes of zeroed, writable memory outside the Go heap.
func MapAnon(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	data, release, err := osMapAnon(size)
	if err != nil {
		return nil, err
	}
	return newMapping(data, release), nil
}

// Bytes returns the mapped region, or nil after Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the length of the mapped region.
func (m *Mapping) Size() int {
	return len(m.data)
}

// Close releases the region. Further calls return nil.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) || m.release == nil || len(m.data) == 0 {
		return nil
	}
	return m.release(m.data)
}
