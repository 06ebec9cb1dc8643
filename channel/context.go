package channel

import (
	"github.com/ionio/corenet/buffer"
	"github.com/ionio/corenet/loop"
)

// Executor is the thread-affine dispatch target of a HandlerContext.
// *loop.EventLoop satisfies it; tests may supply a stub.
type Executor interface {
	Submit(fn func()) (*loop.Future, loop.CancelToken)
	InEventLoop() bool
}

// HandlerContext is one entry of a Pipeline's doubly-linked chain. Its
// prev/next pointers and skipMask are fixed at insertion time
// except for the structural edits themselves, which run under the
// pipeline's monitor.
type HandlerContext struct {
	pipeline *Pipeline
	prev     *HandlerContext
	next     *HandlerContext

	name     string
	handler  Handler
	executor Executor
	skipMask Mask
}

// Name returns the context's pipeline-unique name.
func (ctx *HandlerContext) Name() string { return ctx.name }

// Handler returns the handler this context wraps.
func (ctx *HandlerContext) Handler() Handler { return ctx.handler }

// Channel returns the channel that owns this context's pipeline.
func (ctx *HandlerContext) Channel() *Channel { return ctx.pipeline.channel }

// Pipeline returns the owning pipeline.
func (ctx *HandlerContext) Pipeline() *Pipeline { return ctx.pipeline }

// Executor returns the context's dispatch executor.
func (ctx *HandlerContext) Executor() Executor { return ctx.executor }

// Allocator returns the channel's configured buffer allocator.
func (ctx *HandlerContext) Allocator() buffer.Allocator {
	return ctx.Channel().Allocator()
}

func (ctx *HandlerContext) findNext(dir Direction, ev Event) *HandlerContext {
	n := ctx
	for {
		if dir == Inbound {
			n = n.next
		} else {
			n = n.prev
		}
		if n == nil {
			return nil
		}
		if !n.skipMask.has(ev) {
			return n
		}
	}
}

// --- inbound fire methods: propagate head -> tail ---

func (ctx *HandlerContext) FireChannelRegistered() *HandlerContext {
	target := ctx.findNext(Inbound, EventChannelRegistered)
	ctx.pipeline.invokeInbound(target, EventChannelRegistered, func() {
		target.handler.(ChannelRegisteredHandler).ChannelRegistered(target)
	})
	return ctx
}

func (ctx *HandlerContext) FireChannelUnregistered() *HandlerContext {
	target := ctx.findNext(Inbound, EventChannelUnregistered)
	ctx.pipeline.invokeInbound(target, EventChannelUnregistered, func() {
		target.handler.(ChannelUnregisteredHandler).ChannelUnregistered(target)
	})
	return ctx
}

func (ctx *HandlerContext) FireChannelActive() *HandlerContext {
	target := ctx.findNext(Inbound, EventChannelActive)
	ctx.pipeline.invokeInbound(target, EventChannelActive, func() {
		target.handler.(ChannelActiveHandler).ChannelActive(target)
	})
	return ctx
}

func (ctx *HandlerContext) FireChannelInactive() *HandlerContext {
	target := ctx.findNext(Inbound, EventChannelInactive)
	ctx.pipeline.invokeInbound(target, EventChannelInactive, func() {
		target.handler.(ChannelInactiveHandler).ChannelInactive(target)
	})
	return ctx
}

// FireChannelRead propagates a reference-counted (or plain) inbound
// message. If dispatch must enqueue cross-executor and the enqueue is
// rejected, msg is released exactly once here; otherwise
// release responsibility passes to whichever handler last touches it.
func (ctx *HandlerContext) FireChannelRead(msg any) *HandlerContext {
	target := ctx.findNext(Inbound, EventChannelRead)
	ctx.pipeline.invokeInboundMessage(target, EventChannelRead, msg, func() {
		target.handler.(ChannelReadHandler).ChannelRead(target, msg)
	})
	return ctx
}

func (ctx *HandlerContext) FireChannelReadComplete() *HandlerContext {
	target := ctx.findNext(Inbound, EventChannelReadComplete)
	ctx.pipeline.invokeInbound(target, EventChannelReadComplete, func() {
		target.handler.(ChannelReadCompleteHandler).ChannelReadComplete(target)
	})
	return ctx
}

func (ctx *HandlerContext) FireChannelWritabilityChanged() *HandlerContext {
	target := ctx.findNext(Inbound, EventChannelWritabilityChanged)
	ctx.pipeline.invokeInbound(target, EventChannelWritabilityChanged, func() {
		target.handler.(ChannelWritabilityChangedHandler).ChannelWritabilityChanged(target)
	})
	return ctx
}

func (ctx *HandlerContext) FireUserEventTriggered(evt any) *HandlerContext {
	target := ctx.findNext(Inbound, EventUserEventTriggered)
	ctx.pipeline.invokeInboundMessage(target, EventUserEventTriggered, evt, func() {
		target.handler.(UserEventTriggeredHandler).UserEventTriggered(target, evt)
	})
	return ctx
}

func (ctx *HandlerContext) FireExceptionCaught(cause error) *HandlerContext {
	target := ctx.findNext(Inbound, EventExceptionCaught)
	ctx.pipeline.invokeInbound(target, EventExceptionCaught, func() {
		target.handler.(ExceptionCaughtHandler).ExceptionCaught(target, cause)
	})
	return ctx
}

// --- outbound initiator methods: propagate tail -> head ---

func (ctx *HandlerContext) BindAsync(addr string) *loop.Future {
	target := ctx.findNext(Outbound, EventBind)
	promise := loop.NewFuture()
	ctx.pipeline.invokeOutbound(target, promise, func() {
		target.handler.(BindHandler).Bind(target, addr, promise)
	})
	return promise
}

func (ctx *HandlerContext) ConnectAsync(remote, local string) *loop.Future {
	target := ctx.findNext(Outbound, EventConnect)
	promise := loop.NewFuture()
	ctx.pipeline.invokeOutbound(target, promise, func() {
		target.handler.(ConnectHandler).Connect(target, remote, local, promise)
	})
	return promise
}

func (ctx *HandlerContext) DisconnectAsync() *loop.Future {
	target := ctx.findNext(Outbound, EventDisconnect)
	promise := loop.NewFuture()
	ctx.pipeline.invokeOutbound(target, promise, func() {
		target.handler.(DisconnectHandler).Disconnect(target, promise)
	})
	return promise
}

func (ctx *HandlerContext) CloseAsync() *loop.Future {
	target := ctx.findNext(Outbound, EventClose)
	promise := loop.NewFuture()
	ctx.pipeline.invokeOutbound(target, promise, func() {
		target.handler.(CloseHandler).Close(target, promise)
	})
	return promise
}

func (ctx *HandlerContext) DeregisterAsync() *loop.Future {
	target := ctx.findNext(Outbound, EventDeregister)
	promise := loop.NewFuture()
	ctx.pipeline.invokeOutbound(target, promise, func() {
		target.handler.(DeregisterHandler).Deregister(target, promise)
	})
	return promise
}

// Read requests one more inbound read cycle.
func (ctx *HandlerContext) Read() *HandlerContext {
	target := ctx.findNext(Outbound, EventRead)
	ctx.pipeline.invokeOutbound(target, nil, func() {
		target.handler.(ReadRequestHandler).Read(target)
	})
	return ctx
}

// WriteAsync propagates msg toward the head. Cross-executor dispatch
// debits/credits OutboundBuffer.pendingBytes around the enqueue.
func (ctx *HandlerContext) WriteAsync(msg any) *loop.Future {
	target := ctx.findNext(Outbound, EventWrite)
	return ctx.pipeline.invokeWrite(target, msg)
}

// WriteAndFlushAsync is WriteAsync composed with a Flush.
func (ctx *HandlerContext) WriteAndFlushAsync(msg any) *loop.Future {
	f := ctx.WriteAsync(msg)
	ctx.Flush()
	return f
}

func (ctx *HandlerContext) Flush() *HandlerContext {
	target := ctx.findNext(Outbound, EventFlush)
	ctx.pipeline.invokeOutbound(target, nil, func() {
		target.handler.(FlushHandler).Flush(target)
	})
	return ctx
}
