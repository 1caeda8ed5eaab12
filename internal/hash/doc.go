// Package hash provides the hash functions used by definition interning and the
// unification wire format.
//
// # Definition Hashes
//
// Hash values decide which bucket a definition lands in and are compared before
// the kind-specific equality runs. They must be identical on every process of a
// run, so a seeded hash (hash/maphash) cannot be used. Hasher is a thin wrapper
// around xxhash that feeds fixed-width little-endian fields:
//
//	h := hash.New().Uint32(uint32(kind)).String("main").Uint32(10)
//	value := h.Sum64()
//
// # CRC32-Castagnoli (CRC32C)
//
// Unification batches carry a CRC32C checksum so that a corrupted transfer is
// detected before any definition reaches the unified manager.
//
//	checksum := hash.CRC32C(data)
package hash
