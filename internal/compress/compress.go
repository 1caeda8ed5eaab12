// Package compress frames unification and archive payloads with optional LZ4 or
// ZSTD block compression.
//
// Frame layout:
//
//	[Type uint8][UncompressedSize uint32][StoredSize uint32][Data...]
//
// When compression does not pay off the frame stores the data as-is with
// Type == None, so Decode never needs out-of-band knowledge of the algorithm.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type defines the compression algorithm used.
type Type uint8

const (
	// None stores frames uncompressed.
	None Type = 0
	// LZ4 uses LZ4 block compression (fast).
	LZ4 Type = 1
	// ZSTD uses ZSTD compression (better ratio).
	ZSTD Type = 2
)

const headerSize = 9

var (
	// ErrShortFrame is returned when a frame is smaller than its header claims.
	ErrShortFrame = errors.New("compress: short frame")
	// ErrUnknownType is returned for an unrecognized frame type byte.
	ErrUnknownType = errors.New("compress: unknown frame type")
	// ErrSizeMismatch is returned when the decoded size disagrees with the header.
	ErrSizeMismatch = errors.New("compress: decompressed size mismatch")
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// ParseType maps a configuration name ("none", "lz4", "zstd") to a Type.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
}

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Encode frames data, compressing it with t when that makes the frame smaller.
func Encode(data []byte, t Type) ([]byte, error) {
	var (
		compressed []byte
		err        error
	)

	switch t {
	case None:
	case LZ4:
		compressed, err = compressLZ4(data)
	case ZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	if err != nil {
		return nil, err
	}

	// If compression doesn't help (ratio > 0.9), store uncompressed
	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		t = None
		compressed = data
	}

	frame := make([]byte, headerSize+len(compressed))
	frame[0] = byte(t)
	binary.LittleEndian.PutUint32(frame[1:], uint32(len(data)))       //nolint:gosec // payloads are < 4 GiB
	binary.LittleEndian.PutUint32(frame[5:], uint32(len(compressed))) //nolint:gosec // payloads are < 4 GiB
	copy(frame[headerSize:], compressed)
	return frame, nil
}

// Decode reverses Encode.
func Decode(frame []byte) ([]byte, error) {
	if len(frame) < headerSize {
		return nil, ErrShortFrame
	}

	t := Type(frame[0])
	rawSize := binary.LittleEndian.Uint32(frame[1:])
	storedSize := binary.LittleEndian.Uint32(frame[5:])
	if uint64(len(frame)) < uint64(headerSize)+uint64(storedSize) {
		return nil, ErrShortFrame
	}
	stored := frame[headerSize : headerSize+int(storedSize)]

	switch t {
	case None:
		if storedSize != rawSize {
			return nil, ErrSizeMismatch
		}
		return stored, nil
	case LZ4:
		out := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(stored, out)
		if err != nil {
			return nil, err
		}
		if uint32(n) != rawSize { //nolint:gosec // n <= len(out)
			return nil, ErrSizeMismatch
		}
		return out, nil
	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)

		out, err := dec.DecodeAll(stored, make([]byte, 0, rawSize))
		if err != nil {
			return nil, err
		}
		if uint32(len(out)) != rawSize { //nolint:gosec // bounded by rawSize
			return nil, ErrSizeMismatch
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))

	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // Incompressible
	}
	return compressed[:n], nil
}
