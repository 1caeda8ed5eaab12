package ipc

import (
	"context"
	"errors"
	"fmt"
)

// Tag separates message streams between the same pair of ranks.
type Tag uint16

const (
	TagClockSync Tag = iota + 1
	TagUnify
	TagRemap
	TagReduce
	TagBroadcast
	TagGather
)

func (t Tag) String() string {
	switch t {
	case TagClockSync:
		return "clocksync"
	case TagUnify:
		return "unify"
	case TagRemap:
		return "remap"
	case TagReduce:
		return "reduce"
	case TagBroadcast:
		return "broadcast"
	case TagGather:
		return "gather"
	default:
		return fmt.Sprintf("Tag(%d)", uint16(t))
	}
}

var (
	// ErrInvalidRank is returned for peers outside [0, Size) or for messages to self.
	ErrInvalidRank = errors.New("ipc: invalid rank")
	// ErrClosed is returned once the world has been closed.
	ErrClosed = errors.New("ipc: closed")
)

// Communicator is one rank's endpoint.
type Communicator interface {
	// Rank is this process's index.
	Rank() int
	// Size is the number of ranks.
	Size() int
	// Send delivers data to dst. It may block until dst receives.
	Send(ctx context.Context, dst int, tag Tag, data []byte) error
	// Recv blocks until a message with tag from src arrives.
	Recv(ctx context.Context, src int, tag Tag) ([]byte, error)
}

type single struct{}

// Single returns the communicator of a one-process run.
func Single() Communicator {
	return single{}
}

func (single) Rank() int { return 0 }
func (single) Size() int { return 1 }

func (single) Send(_ context.Context, dst int, _ Tag, _ []byte) error {
	return fmt.Errorf("%w: %d in a single-process run", ErrInvalidRank, dst)
}

func (single) Recv(_ context.Context, src int, _ Tag) ([]byte, error) {
	return nil, fmt.Errorf("%w: %d in a single-process run", ErrInvalidRank, src)
}

// checkPeer validates a peer rank.
func checkPeer(c Communicator, peer int) error {
	if peer < 0 || peer >= c.Size() || peer == c.Rank() {
		return fmt.Errorf("%w: %d (rank %d of %d)", ErrInvalidRank, peer, c.Rank(), c.Size())
	}
	return nil
}
