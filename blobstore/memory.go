package blobstore

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps blobs in a map. It backs tests and single-process runs
// that hand the archive to an in-process writer.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[string][]byte{}}
}

// Open returns a view of the stored bytes. Put replaces slices and never
// writes into them, so the view stays valid.
func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.RLock()
	data, ok := m.blobs[name]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return memoryBlob(data), nil
}

// Put stores a copy of data under name.
func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	data = slices.Clone(data)
	m.mu.Lock()
	m.blobs[name] = data
	m.mu.Unlock()
	return nil
}

// Delete removes a blob. Missing blobs are ignored.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.blobs, name)
	m.mu.Unlock()
	return nil
}

// List returns the sorted names starting with prefix.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	names := make([]string, 0, len(m.blobs))
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	m.mu.RUnlock()
	slices.Sort(names)
	return names, nil
}

type memoryBlob []byte

func (b memoryBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	return readAt(b, p, off)
}

func (b memoryBlob) Close() error           { return nil }
func (b memoryBlob) Size() int64            { return int64(len(b)) }
func (b memoryBlob) Bytes() ([]byte, error) { return b, nil }
