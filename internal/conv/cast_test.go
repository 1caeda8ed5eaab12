package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToUint32(t *testing.T) {
	got, err := ToUint32(123)
	require.NoError(t, err)
	assert.Equal(t, uint32(123), got)

	_, err = ToUint32(-1)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = ToUint32(uint64(math.MaxUint32) + 1)
	assert.ErrorIs(t, err, ErrOverflow)

	got, err = ToUint32(uint64(math.MaxUint32))
	require.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32), got)
}

func TestToInt(t *testing.T) {
	got, err := ToInt(uint64(42))
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	got, err = ToInt(int32(-7))
	require.NoError(t, err)
	assert.Equal(t, -7, got)

	_, err = ToInt(uint64(math.MaxUint64))
	assert.ErrorIs(t, err, ErrOverflow)
}
