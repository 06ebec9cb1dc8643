package channel

import (
	"sync/atomic"

	"github.com/ionio/corenet/buffer"
	"github.com/ionio/corenet/loop"
	"github.com/rs/zerolog"
)

// Channel is one network endpoint: one Pipeline, one Config, one
// OutboundBuffer, bound to one EventLoop for its lifetime.
//
// The loop is assigned at construction rather than at a later
// RegisterAsync step: in practice a caller always picks the loop (via
// EventLoopGroup.Next()) before building the pipeline that will run on
// it, so this collapses the two-phase "construct, then register"
// sequence some designs use. Registration does not gate the pipeline:
// handlerAdded fires when a handler is inserted, even before
// RegisterAsync, and other events can reach handlers before
// channelRegistered fires.
type Channel struct {
	*zerolog.Logger

	name string
	loop *loop.EventLoop

	config   *Config
	pipeline *Pipeline
	outbound *OutboundBuffer
	metadata Metadata

	unsafe Unsafe

	registered atomic.Bool
	active     atomic.Bool
}

// New constructs a channel bound to l, with metadata describing the
// transport kind. unsafe is installed as the pipeline head's delegate;
// it is typically supplied by the concrete transport (see loopback).
func New(name string, l *loop.EventLoop, metadata Metadata, log *zerolog.Logger) *Channel {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	ch := &Channel{
		name:     name,
		loop:     l,
		config:   newConfig(),
		metadata: metadata,
		Logger:   log,
	}
	ch.pipeline = newPipeline(ch, log)
	ch.outbound = newOutboundBuffer(ch)
	return ch
}

// BindUnsafe installs the transport's Unsafe implementation. Must be
// called before RegisterAsync.
func (ch *Channel) BindUnsafe(u Unsafe) { ch.unsafe = u }

func (ch *Channel) Name() string             { return ch.name }
func (ch *Channel) Loop() *loop.EventLoop    { return ch.loop }
func (ch *Channel) Config() *Config          { return ch.config }
func (ch *Channel) Pipeline() *Pipeline      { return ch.pipeline }
func (ch *Channel) Outbound() *OutboundBuffer { return ch.outbound }
func (ch *Channel) Metadata() Metadata       { return ch.metadata }
func (ch *Channel) Allocator() buffer.Allocator { return ch.config.Allocator() }
func (ch *Channel) EstimateSize(msg any) int    { return ch.config.estimateSize(msg) }
func (ch *Channel) IsRegistered() bool       { return ch.registered.Load() }
func (ch *Channel) IsActive() bool           { return ch.active.Load() }

// RegisterAsync attaches the channel to its loop, inserting the pipeline
// sentinels (already done at New) and firing channelRegistered inbound
// once the transport confirms registration. A failed registration never
// fires channelRegistered or flips the registered flag.
func (ch *Channel) RegisterAsync() *loop.Future {
	promise := loop.NewFuture()
	ch.unsafe.RegisterAsync(ch.loop, promise)
	promise.OnComplete(func(err error) {
		if err != nil {
			return
		}
		run := func() {
			ch.registered.Store(true)
			ch.pipeline.Head().FireChannelRegistered()
		}
		if ch.loop.InEventLoop() {
			run()
		} else {
			ch.loop.Submit(run)
		}
	})
	return promise
}

// ConnectAsync propagates connect outbound and arms the configured
// connect timeout: if the transport hasn't resolved the promise by then,
// it completes with ConnectTimeout and the channel is marked inactive
// with exceptionCaught firing once.
func (ch *Channel) ConnectAsync(remote, local string) *loop.Future {
	promise := ch.pipeline.Tail().ConnectAsync(remote, local)
	timeout := ch.config.ConnectTimeout()
	if timeout > 0 {
		ch.loop.Schedule(timeout, func() {
			promise.Complete(ErrConnectTimeout)
			if promise.Err() != ErrConnectTimeout {
				return // a real outcome already won the race
			}
			ch.NotifyError(ErrConnectTimeout)
		})
	}
	return promise
}

// MarkActive fires channelActive; called by the transport once a
// connection is established or a listening socket is bound.
func (ch *Channel) MarkActive() {
	if ch.active.CompareAndSwap(false, true) {
		ch.pipeline.Head().FireChannelActive()
		if ch.config.AutoRead() {
			ch.pipeline.Tail().Read()
		}
	}
}

// MarkInactive fires channelInactive and fails pending outbound writes;
// called by the transport on disconnect or I/O failure, before
// NotifyError surfaces the cause.
func (ch *Channel) MarkInactive() {
	if ch.active.CompareAndSwap(true, false) {
		ch.outbound.FailAll()
		ch.pipeline.Head().FireChannelInactive()
	}
}

// NotifyError marks the channel inactive (if not already) and fires
// exceptionCaught on the transport-level I/O failure path.
func (ch *Channel) NotifyError(err error) {
	ch.MarkInactive()
	ch.pipeline.Head().FireExceptionCaught(err)
}

// DeregisterAsync detaches the channel from its loop, firing
// channelUnregistered once the transport confirms deregistration.
func (ch *Channel) DeregisterAsync() *loop.Future {
	f := ch.pipeline.Tail().DeregisterAsync()
	f.OnComplete(func(err error) {
		if err != nil {
			return
		}
		run := func() {
			ch.registered.Store(false)
			ch.pipeline.Head().FireChannelUnregistered()
		}
		if ch.loop.InEventLoop() {
			run()
		} else {
			ch.loop.Submit(run)
		}
	})
	return f
}
