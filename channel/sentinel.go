package channel

import (
	"sync/atomic"

	"github.com/ionio/corenet/loop"
)

// headHandler is the pipeline's outbound terminus: every outbound
// operation that reaches it (i.e. no user handler intercepted it first)
// is forwarded to the channel's Unsafe transport.
type headHandler struct{}

func (headHandler) Bind(ctx *HandlerContext, addr string, promise *loop.Future) {
	ctx.Channel().unsafe.BindAsync(addr, promise)
}

func (headHandler) Connect(ctx *HandlerContext, remote, local string, promise *loop.Future) {
	ctx.Channel().unsafe.ConnectAsync(remote, local, promise)
}

func (headHandler) Disconnect(ctx *HandlerContext, promise *loop.Future) {
	ctx.Channel().unsafe.DisconnectAsync(promise)
}

func (headHandler) Close(ctx *HandlerContext, promise *loop.Future) {
	ctx.Channel().unsafe.CloseAsync(promise)
}

func (headHandler) Deregister(ctx *HandlerContext, promise *loop.Future) {
	ctx.Channel().unsafe.DeregisterAsync(promise)
}

func (headHandler) Read(ctx *HandlerContext) {
	ctx.Channel().unsafe.BeginRead()
}

func (headHandler) Write(ctx *HandlerContext, msg any, promise *loop.Future) {
	ctx.Channel().unsafe.Write(msg, promise)
}

func (headHandler) Flush(ctx *HandlerContext) {
	ctx.Channel().unsafe.Flush()
}

// tailHandler is the pipeline's inbound terminus. Every other inbound
// event simply isn't implemented here, so its skip-mask bit is set and
// traversal never reaches tail for it, the default silent-discard
// behaviour for an unconsumed event.
type tailHandler struct {
	pipeline    *Pipeline
	warnedOnce  atomic.Bool
}

func (t *tailHandler) ChannelRead(ctx *HandlerContext, msg any) {
	if !t.warnedOnce.Swap(true) {
		t.pipeline.Warn().Str("channel", ctx.Channel().Name()).Msg("discarded inbound message reaching end of pipeline")
	}
	releaseMessage(msg)
}

func (t *tailHandler) ExceptionCaught(ctx *HandlerContext, cause error) {
	t.pipeline.Warn().Err(cause).Str("channel", ctx.Channel().Name()).Msg("unhandled exception reached end of pipeline")
}
