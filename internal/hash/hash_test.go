package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasher_Deterministic(t *testing.T) {
	a := New().Uint32(3).String("main").Uint64(10).Bool(true).Sum64()
	b := New().Uint32(3).String("main").Uint64(10).Bool(true).Sum64()
	assert.Equal(t, a, b)

	c := New().Uint32(3).String("main").Uint64(10).Bool(false).Sum64()
	assert.NotEqual(t, a, c)
}

func TestHasher_StringBoundaries(t *testing.T) {
	ab := New().String("ab").String("c").Sum64()
	bc := New().String("a").String("bc").Sum64()
	assert.NotEqual(t, ab, bc)
	assert.Equal(t, New().String("x").Sum64(), String64("x"))
}

func TestCRC32C(t *testing.T) {
	// Check value from RFC 3720, B.4: 32 bytes of zeros.
	assert.Equal(t, uint32(0x8a9136aa), CRC32C(make([]byte, 32)))
	assert.Equal(t, []byte{0x8a, 0x91, 0x36, 0xaa}, CRC32CBigEndian(make([]byte, 32)))
}
