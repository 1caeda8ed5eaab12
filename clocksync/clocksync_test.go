package clocksync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/perfdefs/ipc"
)

// scriptTimer returns prepared tick values in order.
type scriptTimer struct {
	mu     sync.Mutex
	ticks  []uint64
	next   int
	global bool
}

func (s *scriptTimer) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.ticks[s.next]
	s.next++
	return v
}

func (s *scriptTimer) Resolution() uint64 { return 1000 }
func (s *scriptTimer) IsGlobal() bool     { return s.global }

func TestInterpolate(t *testing.T) {
	t.Run("ExactBoundaries", func(t *testing.T) {
		a := Offset{Time: 1<<60 + 7, Offset: 123456789}
		b := Offset{Time: 1<<60 + 10, Offset: -987654321}

		assert.Equal(t, a.Offset, Interpolate(a.Time, a, b))
		assert.Equal(t, b.Offset, Interpolate(b.Time, a, b))
	})

	t.Run("Linear", func(t *testing.T) {
		a := Offset{Time: 1000, Offset: 0}
		b := Offset{Time: 2000, Offset: 100}

		assert.Equal(t, int64(50), Interpolate(1500, a, b))
		assert.Equal(t, int64(-10), Interpolate(900, a, b))
		assert.Equal(t, int64(110), Interpolate(2100, a, b))
	})

	t.Run("SameTime", func(t *testing.T) {
		a := Offset{Time: 5, Offset: 3}
		assert.Equal(t, int64(3), Interpolate(9, a, Offset{Time: 5, Offset: 8}))
	})
}

func TestOffsets(t *testing.T) {
	var o Offsets

	_, _, err := o.FirstPair()
	assert.ErrorIs(t, err, ErrNotEnoughSamples)
	_, err = o.Translate(10)
	assert.ErrorIs(t, err, ErrNotEnoughSamples)

	require.NoError(t, o.Add(100, 10, 0))
	_, _, err = o.LastPair()
	assert.ErrorIs(t, err, ErrNotEnoughSamples)

	g, err := o.Translate(50)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), g)

	require.NoError(t, o.Add(200, 20, 0))
	require.NoError(t, o.Add(300, 60, 0.5))
	assert.ErrorIs(t, o.Add(250, 0, 0), ErrOutOfOrder)
	assert.Equal(t, 3, o.Len())

	f0, f1, err := o.FirstPair()
	require.NoError(t, err)
	assert.Equal(t, uint64(100), f0.Time)
	assert.Equal(t, uint64(200), f1.Time)

	l0, l1, err := o.LastPair()
	require.NoError(t, err)
	assert.Equal(t, uint64(200), l0.Time)
	assert.Equal(t, 0.5, l1.Stddev)

	cases := []struct {
		t    uint64
		want int64
	}{
		{0, 0},     // first pair extrapolated
		{100, 10},  // sample
		{150, 15},  // first interval
		{200, 20},  // sample
		{250, 40},  // second interval
		{300, 60},  // sample
		{400, 100}, // last pair extrapolated
	}
	for _, c := range cases {
		off, err := o.OffsetAt(c.t)
		require.NoError(t, err)
		assert.Equal(t, c.want, off, "t=%d", c.t)
	}

	all := o.All()
	all[0].Offset = 999
	f0, _, _ = o.FirstPair()
	assert.Equal(t, int64(10), f0.Offset)
}

func TestTranslateClampsAtZero(t *testing.T) {
	var o Offsets
	require.NoError(t, o.Add(0, -100, 0))

	g, err := o.Translate(50)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), g)
}

func TestSynchronizePingPong(t *testing.T) {
	rtts := []uint64{5, 3, 9, 4, 6, 7, 8, 10, 11, 12}

	var rootTicks, sends []uint64
	for i, rtt := range rtts {
		send := uint64(1000 + 100*i)
		sends = append(sends, send)
		rootTicks = append(rootTicks, send, send+rtt)
	}
	rootTicks = append(rootTicks, 5000)

	var workerTicks []uint64
	for i := range rtts {
		workerTicks = append(workerTicks, uint64(7000+100*i))
	}

	timers := []*scriptTimer{{ticks: rootTicks}, {ticks: workerTicks}}
	offsets := []*Offsets{{}, {}}

	err := ipc.RunLocal(context.Background(), 2, func(ctx context.Context, c ipc.Communicator) error {
		mode, err := Synchronize(ctx, c, timers[c.Rank()], offsets[c.Rank()])
		if err != nil {
			return err
		}
		if mode != ModeDistributed {
			t.Errorf("mode %s", mode)
		}
		return nil
	})
	require.NoError(t, err)

	const best = 1
	minRTT := rtts[best]
	want := int64(sends[best]+minRTT/2) - int64(workerTicks[best])

	worker := offsets[1].All()
	require.Len(t, worker, 1)
	assert.Equal(t, workerTicks[best], worker[0].Time)
	assert.Equal(t, want, worker[0].Offset)
	assert.Equal(t, int64(-5999), worker[0].Offset)

	assert.Equal(t, []Offset{{Time: 5000}}, offsets[0].All())
}

func TestMinRoundTrip(t *testing.T) {
	send := []uint64{0, 10, 20, 30}
	recv := []uint64{5, 13, 23, 39}
	assert.Equal(t, 1, MinRoundTrip(send, recv))
}

func TestSynchronizeModes(t *testing.T) {
	t.Run("SingleProcess", func(t *testing.T) {
		var o Offsets
		mode, err := Synchronize(context.Background(), ipc.Single(), NewMonotonicTimer(), &o)
		require.NoError(t, err)
		assert.Equal(t, ModeGlobal, mode)
		require.Equal(t, 1, o.Len())
		assert.Equal(t, int64(0), o.All()[0].Offset)
	})

	t.Run("GlobalClock", func(t *testing.T) {
		offsets := make([]Offsets, 3)
		err := ipc.RunLocal(context.Background(), 3, func(ctx context.Context, c ipc.Communicator) error {
			_, err := Synchronize(ctx, c, Global(WallClockTimer{}), &offsets[c.Rank()])
			return err
		})
		require.NoError(t, err)
		for r := range offsets {
			all := offsets[r].All()
			require.Len(t, all, 1)
			assert.Equal(t, int64(0), all[0].Offset)
			assert.Zero(t, all[0].Stddev)
		}
	})

	t.Run("Distributed", func(t *testing.T) {
		const n = 4
		offsets := make([]Offsets, n)
		timer := NewMonotonicTimer()
		err := ipc.RunLocal(context.Background(), n, func(ctx context.Context, c ipc.Communicator) error {
			for i := 0; i < 2; i++ {
				if _, err := Synchronize(ctx, c, timer, &offsets[c.Rank()], WithPingPongs(3)); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)
		for r := range offsets {
			assert.Equal(t, 2, offsets[r].Len())
		}
		// All ranks share one clock here, so the estimate is bounded by the round trip.
		for r := 1; r < n; r++ {
			for _, s := range offsets[r].All() {
				assert.Less(t, abs(s.Offset), int64(time.Second))
			}
		}
	})
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestGlobalEpoch(t *testing.T) {
	const n = 3
	offsets := make([]Offsets, n)
	for r := range offsets {
		require.NoError(t, offsets[r].Add(0, int64(r*10), 0))
		require.NoError(t, offsets[r].Add(1000, int64(r*10), 0))
	}

	results := make([]Epoch, n)
	err := ipc.RunLocal(context.Background(), n, func(ctx context.Context, c ipc.Communicator) error {
		r := c.Rank()
		local := Epoch{Begin: uint64(100 + r), End: uint64(900 - r)}
		e, err := GlobalEpoch(ctx, c, local, &offsets[r])
		results[r] = e
		return err
	})
	require.NoError(t, err)

	for r := range results {
		assert.Equal(t, Epoch{Begin: 100, End: 918}, results[r])
	}
}

func TestEpochGlobalUsesFirstAndLastPair(t *testing.T) {
	var o Offsets
	require.NoError(t, o.Add(100, 0, 0))
	require.NoError(t, o.Add(200, 100, 0))
	require.NoError(t, o.Add(300, 100, 0))

	g, err := Epoch{Begin: 150, End: 400}.Global(&o)
	require.NoError(t, err)
	assert.Equal(t, Epoch{Begin: 200, End: 500}, g)

	_, err = Epoch{}.Global(&Offsets{})
	assert.ErrorIs(t, err, ErrNotEnoughSamples)
}

func TestSeconds(t *testing.T) {
	timer := &scriptTimer{}
	assert.Equal(t, 1500*time.Millisecond, Seconds(timer, 1500))
	assert.Equal(t, uint64(time.Second), NewMonotonicTimer().Resolution())
}
