package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	compressible := bytes.Repeat([]byte("region main main.c 10 20;"), 200)
	random := []byte{0x13, 0x37, 0x42}

	for _, typ := range []Type{None, LZ4, ZSTD} {
		t.Run(typ.String(), func(t *testing.T) {
			for _, data := range [][]byte{compressible, random, {}} {
				frame, err := Encode(data, typ)
				require.NoError(t, err)

				out, err := Decode(frame)
				require.NoError(t, err)
				assert.Equal(t, len(data), len(out))
				assert.True(t, bytes.Equal(data, out))
			}
		})
	}
}

func TestEncode_FallsBackWhenIncompressible(t *testing.T) {
	frame, err := Encode([]byte{1, 2, 3}, ZSTD)
	require.NoError(t, err)
	assert.Equal(t, byte(None), frame[0])
}

func TestEncode_Compresses(t *testing.T) {
	data := bytes.Repeat([]byte{'a'}, 4096)
	for _, typ := range []Type{LZ4, ZSTD} {
		frame, err := Encode(data, typ)
		require.NoError(t, err)
		assert.Equal(t, byte(typ), frame[0])
		assert.Less(t, len(frame), len(data))
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte{0, 1})
	assert.ErrorIs(t, err, ErrShortFrame)

	frame, err := Encode([]byte("abc"), None)
	require.NoError(t, err)
	_, err = Decode(frame[:len(frame)-1])
	assert.ErrorIs(t, err, ErrShortFrame)

	frame[0] = 9
	_, err = Decode(frame)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestParseType(t *testing.T) {
	for name, want := range map[string]Type{"": None, "none": None, "LZ4": LZ4, " zstd ": ZSTD} {
		got, err := ParseType(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseType("snappy")
	assert.ErrorIs(t, err, ErrUnknownType)
}
