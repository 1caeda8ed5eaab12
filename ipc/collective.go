package ipc

import (
	"context"
	"encoding/binary"
	"fmt"
)

// Op combines two values in a reduction.
type Op uint8

const (
	OpMin Op = iota
	OpMax
	OpSum
)

func (op Op) apply(a, b uint64) uint64 {
	switch op {
	case OpMin:
		return min(a, b)
	case OpMax:
		return max(a, b)
	default:
		return a + b
	}
}

// Broadcast sends data from root to every other rank and returns it on all ranks.
func Broadcast(ctx context.Context, c Communicator, root int, data []byte) ([]byte, error) {
	if c.Size() == 1 {
		return data, nil
	}
	if c.Rank() != root {
		return c.Recv(ctx, root, TagBroadcast)
	}
	for dst := 0; dst < c.Size(); dst++ {
		if dst == root {
			continue
		}
		if err := c.Send(ctx, dst, TagBroadcast, data); err != nil {
			return nil, fmt.Errorf("ipc: broadcast to %d: %w", dst, err)
		}
	}
	return data, nil
}

// Gather collects one buffer per rank at root, indexed by rank. Other ranks get nil.
func Gather(ctx context.Context, c Communicator, root int, data []byte) ([][]byte, error) {
	if c.Rank() != root {
		if err := c.Send(ctx, root, TagGather, data); err != nil {
			return nil, fmt.Errorf("ipc: gather to %d: %w", root, err)
		}
		return nil, nil
	}
	out := make([][]byte, c.Size())
	out[root] = data
	for src := 0; src < c.Size(); src++ {
		if src == root {
			continue
		}
		msg, err := c.Recv(ctx, src, TagGather)
		if err != nil {
			return nil, fmt.Errorf("ipc: gather from %d: %w", src, err)
		}
		out[src] = msg
	}
	return out, nil
}

// Reduce combines v of every rank with op. The result is valid on root only;
// other ranks get their own v back.
func Reduce(ctx context.Context, c Communicator, root int, v uint64, op Op) (uint64, error) {
	if c.Rank() != root {
		if err := c.Send(ctx, root, TagReduce, EncodeUint64(v)); err != nil {
			return 0, fmt.Errorf("ipc: reduce to %d: %w", root, err)
		}
		return v, nil
	}
	acc := v
	for src := 0; src < c.Size(); src++ {
		if src == root {
			continue
		}
		msg, err := c.Recv(ctx, src, TagReduce)
		if err != nil {
			return 0, fmt.Errorf("ipc: reduce from %d: %w", src, err)
		}
		x, err := DecodeUint64(msg)
		if err != nil {
			return 0, err
		}
		acc = op.apply(acc, x)
	}
	return acc, nil
}

// AllReduce is Reduce at rank 0 followed by Broadcast of the result.
func AllReduce(ctx context.Context, c Communicator, v uint64, op Op) (uint64, error) {
	r, err := Reduce(ctx, c, 0, v, op)
	if err != nil {
		return 0, err
	}
	msg, err := Broadcast(ctx, c, 0, EncodeUint64(r))
	if err != nil {
		return 0, err
	}
	return DecodeUint64(msg)
}

// EncodeUint64 encodes v as 8 little-endian bytes.
func EncodeUint64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

// DecodeUint64 decodes a value written by EncodeUint64.
func DecodeUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("ipc: integer message of %d bytes", len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}
