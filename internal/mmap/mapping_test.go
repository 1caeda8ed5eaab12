//go:build unix

package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapping_OpenReadClose(t *testing.T) {
	content := []byte("unified definitions")
	path := filepath.Join(t.TempDir(), "defs.bin")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, len(content), m.Size())
	assert.Equal(t, content, m.Bytes())

	assert.Equal(t, "definitions", string(m.Bytes()[8:]))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())
}

func TestMapping_OpenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	m, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Size())
	assert.Empty(t, m.Bytes())
	require.NoError(t, m.Close())
}

func TestMapAnon(t *testing.T) {
	m, err := MapAnon(8192)
	require.NoError(t, err)
	defer m.Close()

	data := m.Bytes()
	require.Len(t, data, 8192)
	for _, b := range data {
		require.Zero(t, b)
	}

	data[0] = 0xAB
	data[8191] = 0xCD
	assert.Equal(t, byte(0xAB), m.Bytes()[0])
	assert.Equal(t, byte(0xCD), m.Bytes()[8191])

	_, err = MapAnon(0)
	assert.ErrorIs(t, err, ErrInvalidSize)
}
