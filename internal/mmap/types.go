package mmap

import "errors"

var (
	// ErrInvalidSize is returned for non-positive anonymous sizes and negative file sizes.
	ErrInvalidSize = errors.New("mmap: invalid size")
	// ErrUnsupported is returned where anonymous mappings are unavailable.
	ErrUnsupported = errors.New("mmap: not supported on this platform")
)
