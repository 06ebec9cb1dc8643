// Package loopback is a minimal in-memory transport used by tests and
// the example program to drive a Channel end to end without a real
// socket. It is not a production transport, only test plumbing for
// exercising a handler chain with both ends visible.
package loopback

import (
	"sync/atomic"

	"github.com/ionio/corenet/channel"
	"github.com/ionio/corenet/loop"
)

// Transport is one end of an in-memory, directly-wired channel pair.
type Transport struct {
	ch   *channel.Channel
	peer *Transport

	closed atomic.Bool
}

// NewPair wires a and b to each other: writes flushed on one arrive as
// channelRead on the other's loop. Both channels must already have their
// EventLoop set (channel.New) and not yet be registered.
func NewPair(a, b *channel.Channel) (*Transport, *Transport) {
	ta := &Transport{ch: a}
	tb := &Transport{ch: b}
	ta.peer = tb
	tb.peer = ta
	a.BindUnsafe(ta)
	b.BindUnsafe(tb)
	return ta, tb
}

func (t *Transport) OutboundBuffer() *channel.OutboundBuffer { return t.ch.Outbound() }

func (t *Transport) RegisterAsync(l *loop.EventLoop, promise *loop.Future) {
	promise.Complete(nil)
}

func (t *Transport) BindAsync(addr string, promise *loop.Future) {
	promise.Complete(nil)
}

// ConnectAsync "connects" both ends of the pair immediately: loopback has
// no handshake, so both channels become active as soon as either side
// asks.
func (t *Transport) ConnectAsync(remote, local string, promise *loop.Future) {
	promise.Complete(nil)
	t.markActive()
	if t.peer != nil {
		t.peer.markActive()
	}
}

func (t *Transport) markActive() {
	l := t.ch.Loop()
	run := func() { t.ch.MarkActive() }
	if l.InEventLoop() {
		run()
	} else {
		l.Submit(run)
	}
}

func (t *Transport) DisconnectAsync(promise *loop.Future) {
	t.CloseAsync(promise)
}

func (t *Transport) CloseAsync(promise *loop.Future) {
	if t.closed.CompareAndSwap(false, true) {
		l := t.ch.Loop()
		run := func() { t.ch.MarkInactive() }
		if l.InEventLoop() {
			run()
		} else {
			l.Submit(run)
		}
		if t.peer != nil {
			t.peer.peer = nil
		}
		t.peer = nil
	}
	promise.Complete(nil)
}

func (t *Transport) DeregisterAsync(promise *loop.Future) {
	promise.Complete(nil)
}

// BeginRead is a no-op: loopback delivers eagerly on Flush, there is no
// readiness to poll for.
func (t *Transport) BeginRead() {}

// Write pushes msg into this end's OutboundBuffer; delivery happens on
// Flush.
func (t *Transport) Write(msg any, promise *loop.Future) {
	if t.closed.Load() {
		promise.Complete(channel.ErrClosedChannel)
		return
	}
	size := t.ch.EstimateSize(msg)
	t.ch.Outbound().Enqueue(msg, size, promise)
}

// Flush delivers every pending write to the peer's pipeline as an
// inbound channelRead, then completes each write's promise.
func (t *Transport) Flush() {
	entries := t.ch.Outbound().DrainAll()
	if len(entries) == 0 {
		return
	}

	peer := t.peer
	for _, e := range entries {
		e := e
		if peer == nil || peer.closed.Load() {
			e.Promise.Complete(channel.ErrClosedChannel)
			continue
		}
		deliver := func() {
			peer.ch.Pipeline().Head().FireChannelRead(e.Msg)
			peer.ch.Pipeline().Head().FireChannelReadComplete()
		}
		l := peer.ch.Loop()
		if l.InEventLoop() {
			deliver()
		} else {
			l.Submit(deliver)
		}
		e.Promise.Complete(nil)
	}
}
