package unify

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/perfdefs/codec"
	"github.com/hupe1980/perfdefs/internal/compress"
	"github.com/hupe1980/perfdefs/internal/hash"
)

// Envelope layout: [magic u32][crc32c u32][compression frame]. The checksum
// covers the frame.
const (
	envelopeMagic      uint32 = 0x55444650 // "PFDU"
	envelopeHeaderSize        = 8
)

// Wire encodes and decodes protocol messages.
type Wire struct {
	Codec       codec.Codec
	Compression compress.Type
}

func (w Wire) codec() codec.Codec {
	if w.Codec == nil {
		return codec.Default
	}
	return w.Codec
}

// Encode marshals v, compresses it and wraps it in a checksummed envelope.
func (w Wire) Encode(v any) ([]byte, error) {
	raw, err := w.codec().Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("unify: marshal: %w", err)
	}
	frame, err := compress.Encode(raw, w.Compression)
	if err != nil {
		return nil, fmt.Errorf("unify: compress: %w", err)
	}
	out := make([]byte, envelopeHeaderSize, envelopeHeaderSize+len(frame))
	binary.LittleEndian.PutUint32(out[0:4], envelopeMagic)
	binary.LittleEndian.PutUint32(out[4:8], hash.CRC32C(frame))
	return append(out, frame...), nil
}

// Decode verifies and unwraps an envelope produced by Encode into v.
// The compression type is read from the frame.
func (w Wire) Decode(data []byte, v any) error {
	if len(data) < envelopeHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrCorruptBatch, len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != envelopeMagic {
		return fmt.Errorf("%w: bad magic %#x", ErrCorruptBatch, magic)
	}
	frame := data[envelopeHeaderSize:]
	if want, got := binary.LittleEndian.Uint32(data[4:8]), hash.CRC32C(frame); want != got {
		return fmt.Errorf("%w: checksum %#x, want %#x", ErrCorruptBatch, got, want)
	}
	raw, err := compress.Decode(frame)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptBatch, err)
	}
	if err := w.codec().Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptBatch, err)
	}
	return nil
}
