package clocksync

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"github.com/hupe1980/perfdefs/ipc"
)

// DefaultPingPongs is the number of round trips per worker.
const DefaultPingPongs = 10

// Root is the rank whose clock defines the global epoch.
const Root = 0

// Mode is the synchronization mode.
type Mode uint8

const (
	// ModeGlobal records (now, 0, 0): all ranks already share a clock.
	ModeGlobal Mode = iota
	// ModeDistributed estimates offsets with ping-pong round trips.
	ModeDistributed
)

func (m Mode) String() string {
	if m == ModeDistributed {
		return "distributed"
	}
	return "global"
}

// TransportError wraps a failed send or receive.
type TransportError struct {
	Op   string
	Peer int
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("clocksync: %s rank %d: %v", e.Op, e.Peer, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type options struct {
	pingPongs int
	logger    *slog.Logger
}

// Option configures Synchronize.
type Option func(*options)

// WithPingPongs sets the number of round trips per worker.
func WithPingPongs(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pingPongs = n
		}
	}
}

// WithLogger sets the logger. Nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// ModeFor returns the mode Synchronize uses for timer on c.
func ModeFor(timer Timer, c ipc.Communicator) Mode {
	if timer.IsGlobal() || c.Size() == 1 {
		return ModeGlobal
	}
	return ModeDistributed
}

// Synchronize adds one sample to offsets. It must be called by every rank.
func Synchronize(ctx context.Context, c ipc.Communicator, timer Timer, offsets *Offsets, optFns ...Option) (Mode, error) {
	o := options{pingPongs: DefaultPingPongs}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	mode := ModeFor(timer, c)
	if mode == ModeGlobal {
		return mode, offsets.Add(timer.Ticks(), 0, 0)
	}

	var err error
	if c.Rank() == Root {
		err = syncRoot(ctx, c, timer, offsets, &o)
	} else {
		err = syncWorker(ctx, c, timer, offsets, &o)
	}
	return mode, err
}

// syncRoot measures every worker in rank order.
func syncRoot(ctx context.Context, c ipc.Communicator, timer Timer, offsets *Offsets, o *options) error {
	send := make([]uint64, o.pingPongs)
	recv := make([]uint64, o.pingPongs)

	for worker := 0; worker < c.Size(); worker++ {
		if worker == Root {
			continue
		}
		for i := 0; i < o.pingPongs; i++ {
			send[i] = timer.Ticks()
			if err := c.Send(ctx, worker, ipc.TagClockSync, nil); err != nil {
				return &TransportError{Op: "ping", Peer: worker, Err: err}
			}
			if _, err := c.Recv(ctx, worker, ipc.TagClockSync); err != nil {
				return &TransportError{Op: "pong from", Peer: worker, Err: err}
			}
			recv[i] = timer.Ticks()
		}

		best := MinRoundTrip(send, recv)
		syncTime := send[best] + (recv[best]-send[best])/2

		msg := binary.LittleEndian.AppendUint64(nil, syncTime)
		msg = binary.LittleEndian.AppendUint64(msg, uint64(best)) //nolint:gosec // index >= 0
		if err := c.Send(ctx, worker, ipc.TagClockSync, msg); err != nil {
			return &TransportError{Op: "send sync time to", Peer: worker, Err: err}
		}
		o.logger.Debug("clock synchronized",
			"worker", worker,
			"round", best,
			"rtt", recv[best]-send[best],
		)
	}

	return offsets.Add(timer.Ticks(), 0, 0)
}

func syncWorker(ctx context.Context, c ipc.Communicator, timer Timer, offsets *Offsets, o *options) error {
	times := make([]uint64, o.pingPongs)
	for i := 0; i < o.pingPongs; i++ {
		if _, err := c.Recv(ctx, Root, ipc.TagClockSync); err != nil {
			return &TransportError{Op: "ping from", Peer: Root, Err: err}
		}
		times[i] = timer.Ticks()
		if err := c.Send(ctx, Root, ipc.TagClockSync, nil); err != nil {
			return &TransportError{Op: "pong", Peer: Root, Err: err}
		}
	}

	msg, err := c.Recv(ctx, Root, ipc.TagClockSync)
	if err != nil {
		return &TransportError{Op: "receive sync time from", Peer: Root, Err: err}
	}
	if len(msg) != 16 {
		return fmt.Errorf("clocksync: sync message of %d bytes", len(msg))
	}
	syncTime := binary.LittleEndian.Uint64(msg[0:8])
	best := binary.LittleEndian.Uint64(msg[8:16])
	if best >= uint64(len(times)) {
		return fmt.Errorf("clocksync: round %d out of range", best)
	}

	local := times[best]
	offset := int64(syncTime - local) //nolint:gosec // two's complement difference
	o.logger.Debug("clock offset measured", "round", best, "offset", offset)
	return offsets.Add(local, offset, 0)
}

// MinRoundTrip returns the first round with the smallest recv-send.
func MinRoundTrip(send, recv []uint64) int {
	best := 0
	for i := 1; i < len(send); i++ {
		if recv[i]-send[i] < recv[best]-send[best] {
			best = i
		}
	}
	return best
}
