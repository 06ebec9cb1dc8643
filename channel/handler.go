package channel

import (
	"reflect"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ionio/corenet/loop"
)

// Handler is any type intercepting pipeline events. In practice a Handler
// implements one or more of the per-event interfaces below; a Handler
// that implements none of them is a pure pass-through and is skipped for
// every event.
//
// Concrete handlers are expected to be pointer types, since handler
// identity (used for the sharable/added bookkeeping and for
// Pipeline.Context(handler) lookups) is pointer identity.
type Handler interface{}

// The inbound event interfaces. A Handler implements whichever subset it
// wants to observe; one not implemented means that event's default
// behaviour (silent forward) applies without invoking the handler at all.
type (
	ChannelRegisteredHandler interface {
		ChannelRegistered(ctx *HandlerContext)
	}
	ChannelUnregisteredHandler interface {
		ChannelUnregistered(ctx *HandlerContext)
	}
	ChannelActiveHandler interface {
		ChannelActive(ctx *HandlerContext)
	}
	ChannelInactiveHandler interface {
		ChannelInactive(ctx *HandlerContext)
	}
	ChannelReadHandler interface {
		ChannelRead(ctx *HandlerContext, msg any)
	}
	ChannelReadCompleteHandler interface {
		ChannelReadComplete(ctx *HandlerContext)
	}
	ChannelWritabilityChangedHandler interface {
		ChannelWritabilityChanged(ctx *HandlerContext)
	}
	UserEventTriggeredHandler interface {
		UserEventTriggered(ctx *HandlerContext, evt any)
	}
	ExceptionCaughtHandler interface {
		ExceptionCaught(ctx *HandlerContext, cause error)
	}
)

// The outbound event interfaces.
type (
	BindHandler interface {
		Bind(ctx *HandlerContext, addr string, promise *loop.Future)
	}
	ConnectHandler interface {
		Connect(ctx *HandlerContext, remote, local string, promise *loop.Future)
	}
	DisconnectHandler interface {
		Disconnect(ctx *HandlerContext, promise *loop.Future)
	}
	CloseHandler interface {
		Close(ctx *HandlerContext, promise *loop.Future)
	}
	DeregisterHandler interface {
		Deregister(ctx *HandlerContext, promise *loop.Future)
	}
	ReadRequestHandler interface {
		Read(ctx *HandlerContext)
	}
	WriteHandler interface {
		Write(ctx *HandlerContext, msg any, promise *loop.Future)
	}
	FlushHandler interface {
		Flush(ctx *HandlerContext)
	}
)

// Lifecycle notifications. These are not propagated through the pipeline
// and so aren't part of the skip-mask.
type (
	HandlerAddedHandler interface {
		HandlerAdded(ctx *HandlerContext)
	}
	HandlerRemovedHandler interface {
		HandlerRemoved(ctx *HandlerContext)
	}
)

// Sharable opts a Handler into being installed on more than one pipeline
// at once. A Handler not implementing this interface is treated as
// non-sharable.
type Sharable interface {
	IsSharable() bool
}

func isSharable(h Handler) bool {
	s, ok := h.(Sharable)
	return ok && s.IsSharable()
}

// addedRegistry tracks, per non-sharable handler instance, whether it has
// already been added to a pipeline. A process-wide concurrent map, safe to
// share across every pipeline; markRemoved deletes a handler's entry when
// it leaves its pipeline.
var addedRegistry = xsync.NewMapOf[Handler, bool]()

func markAdded(h Handler) (alreadyAdded bool) {
	_, alreadyAdded = addedRegistry.LoadOrStore(h, true)
	return alreadyAdded
}

func markRemoved(h Handler) {
	addedRegistry.Delete(h)
}

// maskCache caches each concrete handler type's skip-mask, computed once
// via type assertions against the per-event interfaces above. Go's
// interface satisfaction is exactly that declaration, so no reflection
// over method bodies is needed.
var maskCache = xsync.NewMapOf[reflect.Type, Mask]()

func skipMaskFor(h Handler) Mask {
	t := reflect.TypeOf(h)
	if m, ok := maskCache.Load(t); ok {
		return m
	}

	var m Mask
	if _, ok := h.(ChannelRegisteredHandler); !ok {
		m |= bit(EventChannelRegistered)
	}
	if _, ok := h.(ChannelUnregisteredHandler); !ok {
		m |= bit(EventChannelUnregistered)
	}
	if _, ok := h.(ChannelActiveHandler); !ok {
		m |= bit(EventChannelActive)
	}
	if _, ok := h.(ChannelInactiveHandler); !ok {
		m |= bit(EventChannelInactive)
	}
	if _, ok := h.(ChannelReadHandler); !ok {
		m |= bit(EventChannelRead)
	}
	if _, ok := h.(ChannelReadCompleteHandler); !ok {
		m |= bit(EventChannelReadComplete)
	}
	if _, ok := h.(ChannelWritabilityChangedHandler); !ok {
		m |= bit(EventChannelWritabilityChanged)
	}
	if _, ok := h.(UserEventTriggeredHandler); !ok {
		m |= bit(EventUserEventTriggered)
	}
	if _, ok := h.(ExceptionCaughtHandler); !ok {
		m |= bit(EventExceptionCaught)
	}
	if _, ok := h.(BindHandler); !ok {
		m |= bit(EventBind)
	}
	if _, ok := h.(ConnectHandler); !ok {
		m |= bit(EventConnect)
	}
	if _, ok := h.(DisconnectHandler); !ok {
		m |= bit(EventDisconnect)
	}
	if _, ok := h.(CloseHandler); !ok {
		m |= bit(EventClose)
	}
	if _, ok := h.(DeregisterHandler); !ok {
		m |= bit(EventDeregister)
	}
	if _, ok := h.(ReadRequestHandler); !ok {
		m |= bit(EventRead)
	}
	if _, ok := h.(WriteHandler); !ok {
		m |= bit(EventWrite)
	}
	if _, ok := h.(FlushHandler); !ok {
		m |= bit(EventFlush)
	}

	maskCache.Store(t, m)
	return m
}
