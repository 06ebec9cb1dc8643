package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ionio/corenet/loop"
)

type writabilityRecorder struct {
	transitions []bool
}

func (w *writabilityRecorder) ChannelWritabilityChanged(ctx *HandlerContext) {
	w.transitions = append(w.transitions, ctx.Channel().Outbound().Writable())
}

// high=100, low=50: crossing each watermark fires exactly one event.
func TestOutboundBuffer_WritabilityTransitions(t *testing.T) {
	ch, l := newTestChannel(t)
	rec := &writabilityRecorder{}

	runOnLoop(l, func() {
		ch.Config().SetWriteBufferWaterMarks(50, 100)
		_, err := ch.Pipeline().AddLast("watch", rec)
		require.NoError(t, err)

		ob := ch.Outbound()

		ob.addPending(100)
		ob.CheckWritability() // crosses high: one event, now unwritable

		ob.subPending(50)
		ob.CheckWritability() // pendingBytes=50 <= low: one event, now writable

		ob.addPending(20) // 70
		ob.CheckWritability()
		ob.addPending(10) // 80
		ob.CheckWritability()
		ob.subPending(20) // 60
		ob.CheckWritability() // oscillating 60..80 inside the band: no events
	})

	require.Len(t, rec.transitions, 2)
	assert.False(t, rec.transitions[0], "crossing high watermark makes the channel unwritable")
	assert.True(t, rec.transitions[1], "dropping to the low watermark makes it writable again")
}

func TestOutboundBuffer_NoFireWithinHysteresisBand(t *testing.T) {
	ch, l := newTestChannel(t)
	rec := &writabilityRecorder{}

	runOnLoop(l, func() {
		ch.Config().SetWriteBufferWaterMarks(50, 100)
		_, err := ch.Pipeline().AddLast("watch", rec)
		require.NoError(t, err)

		ob := ch.Outbound()
		ob.addPending(60)
		ob.CheckWritability()
		ob.addPending(20) // 80: still within [50,100]
		ob.CheckWritability()
	})

	assert.Empty(t, rec.transitions)
}

func TestOutboundBuffer_FailAllCompletesWithClosedChannel(t *testing.T) {
	ch, l := newTestChannel(t)

	var err1, err2 error
	runOnLoop(l, func() {
		ob := ch.Outbound()
		f1 := loop.NewFuture()
		f2 := loop.NewFuture()
		ob.Enqueue([]byte("a"), 10, f1)
		ob.Enqueue([]byte("b"), 10, f2)
		ob.FailAll()
		err1 = f1.Err()
		err2 = f2.Err()
	})

	assert.ErrorIs(t, err1, ErrClosedChannel)
	assert.ErrorIs(t, err2, ErrClosedChannel)
}

func TestOutboundBuffer_EnqueueAfterCloseReleasesAndFails(t *testing.T) {
	ch, l := newTestChannel(t)

	var err error
	runOnLoop(l, func() {
		ob := ch.Outbound()
		ob.FailAll()
		f := loop.NewFuture()
		ob.Enqueue([]byte("late"), 4, f)
		err = f.Err()
	})

	assert.ErrorIs(t, err, ErrClosedChannel)
}
