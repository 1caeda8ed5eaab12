package ipc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultQueueDepth is the number of messages buffered per (src, dst, tag).
const DefaultQueueDepth = 64

type route struct {
	src, dst int
	tag      Tag
}

// World connects ranks that run as goroutines of one process.
type World struct {
	size  int
	depth int

	mu     sync.Mutex
	queues map[route]chan []byte

	done      chan struct{}
	closeOnce sync.Once

	messages atomic.Uint64
	bytes    atomic.Uint64
}

// WorldOption configures a World.
type WorldOption func(*World)

// WithQueueDepth sets the per-route buffer. Zero makes every Send rendezvous with its Recv.
func WithQueueDepth(n int) WorldOption {
	return func(w *World) {
		if n >= 0 {
			w.depth = n
		}
	}
}

// NewWorld creates a world of size ranks.
func NewWorld(size int, opts ...WorldOption) (*World, error) {
	if size < 1 {
		return nil, fmt.Errorf("ipc: world size %d < 1", size)
	}
	w := &World{
		size:   size,
		depth:  DefaultQueueDepth,
		queues: make(map[route]chan []byte),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Size returns the number of ranks.
func (w *World) Size() int {
	return w.size
}

// Comm returns the endpoint of rank.
func (w *World) Comm(rank int) (Communicator, error) {
	if rank < 0 || rank >= w.size {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidRank, rank, w.size)
	}
	return &endpoint{world: w, rank: rank}, nil
}

// Close unblocks every pending Send and Recv with ErrClosed.
func (w *World) Close() {
	w.closeOnce.Do(func() { close(w.done) })
}

// Traffic returns the number of messages and payload bytes sent so far.
func (w *World) Traffic() (messages, bytes uint64) {
	return w.messages.Load(), w.bytes.Load()
}

func (w *World) queue(r route) chan []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	q, ok := w.queues[r]
	if !ok {
		q = make(chan []byte, w.depth)
		w.queues[r] = q
	}
	return q
}

type endpoint struct {
	world *World
	rank  int
}

func (e *endpoint) Rank() int { return e.rank }
func (e *endpoint) Size() int { return e.world.size }

func (e *endpoint) Send(ctx context.Context, dst int, tag Tag, data []byte) error {
	if err := checkPeer(e, dst); err != nil {
		return err
	}
	msg := make([]byte, len(data))
	copy(msg, data)

	select {
	case e.world.queue(route{src: e.rank, dst: dst, tag: tag}) <- msg:
		e.world.messages.Add(1)
		e.world.bytes.Add(uint64(len(msg)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.world.done:
		return ErrClosed
	}
}

func (e *endpoint) Recv(ctx context.Context, src int, tag Tag) ([]byte, error) {
	if err := checkPeer(e, src); err != nil {
		return nil, err
	}
	select {
	case msg := <-e.world.queue(route{src: src, dst: e.rank, tag: tag}):
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.world.done:
		return nil, ErrClosed
	}
}

// RunLocal runs fn once per rank of a fresh world of size n, each in its own
// goroutine, and waits for all of them. The first error cancels the context
// passed to the others.
func RunLocal(ctx context.Context, n int, fn func(ctx context.Context, c Communicator) error, opts ...WorldOption) error {
	w, err := NewWorld(n, opts...)
	if err != nil {
		return err
	}
	defer w.Close()

	g, gctx := errgroup.WithContext(ctx)
	for rank := 0; rank < n; rank++ {
		c, err := w.Comm(rank)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := fn(gctx, c); err != nil {
				return fmt.Errorf("rank %d: %w", c.Rank(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
