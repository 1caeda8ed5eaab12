package clocksync

import (
	"context"
	"fmt"

	"github.com/hupe1980/perfdefs/ipc"
)

// Epoch is a time interval.
type Epoch struct {
	Begin uint64 `json:"begin" cbor:"1,keyasint"`
	End   uint64 `json:"end" cbor:"2,keyasint"`
}

// Global translates a local epoch: Begin through the first sync pair and End
// through the last one. A single sample applies as a constant offset.
func (e Epoch) Global(offsets *Offsets) (Epoch, error) {
	if offsets.Len() == 1 {
		b, err := offsets.Translate(e.Begin)
		if err != nil {
			return Epoch{}, err
		}
		end, err := offsets.Translate(e.End)
		return Epoch{Begin: b, End: end}, err
	}
	f0, f1, err := offsets.FirstPair()
	if err != nil {
		return Epoch{}, err
	}
	l0, l1, err := offsets.LastPair()
	if err != nil {
		return Epoch{}, err
	}
	return Epoch{
		Begin: shift(e.Begin, Interpolate(e.Begin, f0, f1)),
		End:   shift(e.End, Interpolate(e.End, l0, l1)),
	}, nil
}

// GlobalEpoch translates the local epoch of every rank and returns the
// earliest begin and the latest end of the run on all ranks.
func GlobalEpoch(ctx context.Context, c ipc.Communicator, local Epoch, offsets *Offsets) (Epoch, error) {
	g, err := local.Global(offsets)
	if err != nil {
		return Epoch{}, err
	}
	begin, err := ipc.AllReduce(ctx, c, g.Begin, ipc.OpMin)
	if err != nil {
		return Epoch{}, &TransportError{Op: "reduce epoch begin with", Peer: Root, Err: err}
	}
	end, err := ipc.AllReduce(ctx, c, g.End, ipc.OpMax)
	if err != nil {
		return Epoch{}, &TransportError{Op: "reduce epoch end with", Peer: Root, Err: err}
	}
	if end < begin {
		return Epoch{}, fmt.Errorf("clocksync: global epoch ends at %d before it begins at %d", end, begin)
	}
	return Epoch{Begin: begin, End: end}, nil
}
