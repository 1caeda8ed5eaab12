package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Hasher accumulates a deterministic 64-bit hash over definition attributes.
type Hasher struct {
	d   *xxhash.Digest
	buf [8]byte
}

// New returns an empty Hasher.
func New() *Hasher {
	return &Hasher{d: xxhash.New()}
}

// Uint32 feeds v.
func (h *Hasher) Uint32(v uint32) *Hasher {
	binary.LittleEndian.PutUint32(h.buf[:4], v)
	_, _ = h.d.Write(h.buf[:4])
	return h
}

// Uint64 feeds v.
func (h *Hasher) Uint64(v uint64) *Hasher {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	_, _ = h.d.Write(h.buf[:])
	return h
}

// Bool feeds v as a single byte.
func (h *Hasher) Bool(v bool) *Hasher {
	h.buf[0] = 0
	if v {
		h.buf[0] = 1
	}
	_, _ = h.d.Write(h.buf[:1])
	return h
}

// String feeds the length of s followed by its bytes, so that ("ab","c") and
// ("a","bc") hash differently.
func (h *Hasher) String(s string) *Hasher {
	h.Uint32(uint32(len(s))) //nolint:gosec // length prefix only disambiguates
	_, _ = h.d.WriteString(s)
	return h
}

// Sum64 returns the accumulated hash.
func (h *Hasher) Sum64() uint64 {
	return h.d.Sum64()
}

// String64 hashes a single string; it equals New().String(s).Sum64().
func String64(s string) uint64 {
	return New().String(s).Sum64()
}
