package channel

import (
	"sync"
	"sync/atomic"

	"github.com/ionio/corenet/loop"
)

type pendingWrite struct {
	msg     any
	size    int
	promise *loop.Future
}

// WriteEntry is one flushed-out pending write, exported so a transport's
// Flush implementation (outside this package) can deliver the message
// and then resolve its promise.
type WriteEntry struct {
	Msg     any
	Size    int
	Promise *loop.Future
}

// OutboundBuffer accounts pending writes and derives the writable
// back-pressure flag from pendingBytes against the channel's configured
// water-marks.
type OutboundBuffer struct {
	channel *Channel

	pendingBytes atomic.Int64
	writable     atomic.Bool

	mu      sync.Mutex
	entries []pendingWrite

	closed atomic.Bool
}

func newOutboundBuffer(ch *Channel) *OutboundBuffer {
	ob := &OutboundBuffer{channel: ch}
	ob.writable.Store(true)
	return ob
}

// PendingBytes returns the current pending-write byte count.
func (ob *OutboundBuffer) PendingBytes() int64 { return ob.pendingBytes.Load() }

// Writable returns the current back-pressure flag.
func (ob *OutboundBuffer) Writable() bool { return ob.writable.Load() }

// addPending bumps pendingBytes without re-checking the writability edge;
// used for the add-before-enqueue half of the cross-thread write
// accounting. The edge is (re)checked on the loop by CheckWritability.
func (ob *OutboundBuffer) addPending(size int) {
	ob.pendingBytes.Add(int64(size))
}

func (ob *OutboundBuffer) subPending(size int) {
	ob.pendingBytes.Add(-int64(size))
}

// Enqueue records a pending write entry and re-evaluates writability.
// Must run on the channel's loop.
func (ob *OutboundBuffer) Enqueue(msg any, size int, promise *loop.Future) {
	if ob.closed.Load() {
		releaseMessage(msg)
		promise.Complete(ErrClosedChannel)
		return
	}
	ob.mu.Lock()
	ob.entries = append(ob.entries, pendingWrite{msg: msg, size: size, promise: promise})
	ob.mu.Unlock()
	ob.pendingBytes.Add(int64(size))
	ob.CheckWritability()
}

// DrainAll removes every currently pending entry, decrementing
// pendingBytes and re-checking writability, and returns them for the
// transport's Flush to deliver. The caller is responsible for completing
// each entry's Promise once delivery is attempted.
func (ob *OutboundBuffer) DrainAll() []WriteEntry {
	ob.mu.Lock()
	pending := ob.entries
	ob.entries = nil
	ob.mu.Unlock()

	out := make([]WriteEntry, len(pending))
	for i, e := range pending {
		ob.pendingBytes.Add(-int64(e.size))
		out[i] = WriteEntry{Msg: e.msg, Size: e.size, Promise: e.promise}
	}
	ob.CheckWritability()
	return out
}

// CheckWritability re-evaluates the writable flag against the channel's
// configured water-marks and fires channelWritabilityChanged on a
// crossing. No-op within the hysteresis band.
func (ob *OutboundBuffer) CheckWritability() {
	high := int64(ob.channel.config.WriteBufferHighWaterMark())
	low := int64(ob.channel.config.WriteBufferLowWaterMark())
	pending := ob.pendingBytes.Load()

	if ob.writable.Load() && pending >= high {
		ob.writable.Store(false)
		ob.channel.pipeline.Head().FireChannelWritabilityChanged()
	} else if !ob.writable.Load() && pending <= low {
		ob.writable.Store(true)
		ob.channel.pipeline.Head().FireChannelWritabilityChanged()
	}
}

// FailAll completes every unflushed entry with ClosedChannel, the
// outbound buffer's destruction behaviour on channel close.
func (ob *OutboundBuffer) FailAll() {
	ob.closed.Store(true)
	ob.mu.Lock()
	removed := ob.entries
	ob.entries = nil
	ob.mu.Unlock()

	for _, e := range removed {
		ob.pendingBytes.Add(-int64(e.size))
		releaseMessage(e.msg)
		e.promise.Complete(ErrClosedChannel)
	}
}
