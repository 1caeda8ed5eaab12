//go:build !unix

package mmap

import (
	"io"
	"os"
)

// Without mmap(2) files are read into the heap.
func osMap(f *os.File, size int) ([]byte, func([]byte) error, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, nil, err
	}
	return data, nil, nil
}

func osMapAnon(int) ([]byte, func([]byte) error, error) {
	return nil, nil, ErrUnsupported
}
