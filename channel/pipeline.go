package channel

import (
	"fmt"
	"sync"

	"github.com/ionio/corenet/buffer"
	"github.com/ionio/corenet/loop"
	"github.com/rs/zerolog"
)

// Pipeline is a channel's ordered, non-empty handler chain, bracketed by
// two synthetic sentinel contexts, head and tail.
type Pipeline struct {
	*zerolog.Logger

	channel *Channel

	mu       sync.Mutex // the "pipeline monitor" guarding structural edits
	byName   map[string]*HandlerContext
	head     *HandlerContext
	tail     *HandlerContext
}

func newPipeline(ch *Channel, log *zerolog.Logger) *Pipeline {
	p := &Pipeline{
		channel: ch,
		byName:  make(map[string]*HandlerContext),
		Logger:  log,
	}

	p.head = &HandlerContext{pipeline: p, name: "head", handler: &headHandler{}, executor: ch.loop}
	p.tail = &HandlerContext{pipeline: p, name: "tail", handler: &tailHandler{pipeline: p}, executor: ch.loop}
	p.head.skipMask = skipMaskFor(p.head.handler)
	p.tail.skipMask = skipMaskFor(p.tail.handler)
	p.head.next = p.tail
	p.tail.prev = p.head

	return p
}

// Head returns the pipeline's inbound entry sentinel.
func (p *Pipeline) Head() *HandlerContext { return p.head }

// Tail returns the pipeline's outbound entry sentinel.
func (p *Pipeline) Tail() *HandlerContext { return p.tail }

// Get returns the context registered under name, or nil.
func (p *Pipeline) Get(name string) *HandlerContext {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byName[name]
}

// Context returns the context wrapping handler, or nil if not present.
func (p *Pipeline) Context(h Handler) *HandlerContext {
	p.mu.Lock()
	defer p.mu.Unlock()
	for c := p.head.next; c != p.tail; c = c.next {
		if c.handler == h {
			return c
		}
	}
	return nil
}

// Names returns the pipeline's handler names in head-to-tail order,
// excluding the sentinels.
func (p *Pipeline) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.byName))
	for c := p.head.next; c != p.tail; c = c.next {
		names = append(names, c.name)
	}
	return names
}

func (p *Pipeline) insert(name string, h Handler, executor Executor, link func(ctx *HandlerContext)) (*HandlerContext, error) {
	if executor == nil {
		executor = p.channel.loop
	}

	p.mu.Lock()
	if _, exists := p.byName[name]; exists {
		p.mu.Unlock()
		return nil, newPipelineError(DuplicateName, name, "duplicate handler name")
	}
	if !isSharable(h) && markAdded(h) {
		p.mu.Unlock()
		return nil, newPipelineError(NonSharableReuse, name, "non-sharable handler already added to a pipeline")
	}

	ctx := &HandlerContext{
		pipeline: p,
		name:     name,
		handler:  h,
		executor: executor,
		skipMask: skipMaskFor(h),
	}
	link(ctx)
	p.byName[name] = ctx
	p.mu.Unlock()

	p.dispatchLifecycle(ctx, true)
	return ctx, nil
}

// AddFirst inserts h immediately after head.
func (p *Pipeline) AddFirst(name string, h Handler, executor ...Executor) (*HandlerContext, error) {
	return p.insert(name, h, firstOf(executor), func(ctx *HandlerContext) {
		after := p.head
		ctx.prev, ctx.next = after, after.next
		after.next.prev = ctx
		after.next = ctx
	})
}

// AddLast inserts h immediately before tail.
func (p *Pipeline) AddLast(name string, h Handler, executor ...Executor) (*HandlerContext, error) {
	return p.insert(name, h, firstOf(executor), func(ctx *HandlerContext) {
		before := p.tail
		ctx.prev, ctx.next = before.prev, before
		before.prev.next = ctx
		before.prev = ctx
	})
}

// AddBefore inserts h immediately before the context named base.
func (p *Pipeline) AddBefore(base, name string, h Handler, executor ...Executor) (*HandlerContext, error) {
	p.mu.Lock()
	baseCtx, ok := p.byName[base]
	p.mu.Unlock()
	if !ok {
		return nil, newPipelineError(HandlerNotFound, base, "addBefore: base handler not found")
	}
	return p.insert(name, h, firstOf(executor), func(ctx *HandlerContext) {
		ctx.prev, ctx.next = baseCtx.prev, baseCtx
		baseCtx.prev.next = ctx
		baseCtx.prev = ctx
	})
}

// AddAfter inserts h immediately after the context named base.
func (p *Pipeline) AddAfter(base, name string, h Handler, executor ...Executor) (*HandlerContext, error) {
	p.mu.Lock()
	baseCtx, ok := p.byName[base]
	p.mu.Unlock()
	if !ok {
		return nil, newPipelineError(HandlerNotFound, base, "addAfter: base handler not found")
	}
	return p.insert(name, h, firstOf(executor), func(ctx *HandlerContext) {
		ctx.prev, ctx.next = baseCtx, baseCtx.next
		baseCtx.next.prev = ctx
		baseCtx.next = ctx
	})
}

// Remove unlinks the named context, firing handlerRemoved.
func (p *Pipeline) Remove(name string) error {
	p.mu.Lock()
	ctx, ok := p.byName[name]
	if !ok {
		p.mu.Unlock()
		return newPipelineError(HandlerNotFound, name, "remove: handler not found")
	}
	ctx.prev.next = ctx.next
	ctx.next.prev = ctx.prev
	delete(p.byName, name)
	p.mu.Unlock()

	markRemoved(ctx.handler)
	p.dispatchLifecycle(ctx, false)
	return nil
}

// Replace swaps the handler at oldName for newHandler under newName,
// preserving position and executor.
func (p *Pipeline) Replace(oldName, newName string, newHandler Handler) (*HandlerContext, error) {
	p.mu.Lock()
	oldCtx, ok := p.byName[oldName]
	if !ok {
		p.mu.Unlock()
		return nil, newPipelineError(HandlerNotFound, oldName, "replace: handler not found")
	}
	if oldName != newName {
		if _, exists := p.byName[newName]; exists {
			p.mu.Unlock()
			return nil, newPipelineError(DuplicateName, newName, "replace: duplicate handler name")
		}
	}
	if !isSharable(newHandler) && markAdded(newHandler) {
		p.mu.Unlock()
		return nil, newPipelineError(NonSharableReuse, newName, "non-sharable handler already added to a pipeline")
	}

	newCtx := &HandlerContext{
		pipeline: p,
		name:     newName,
		handler:  newHandler,
		executor: oldCtx.executor,
		skipMask: skipMaskFor(newHandler),
	}
	newCtx.prev, newCtx.next = oldCtx.prev, oldCtx.next
	oldCtx.prev.next = newCtx
	oldCtx.next.prev = newCtx
	delete(p.byName, oldName)
	p.byName[newName] = newCtx
	p.mu.Unlock()

	markRemoved(oldCtx.handler)
	p.dispatchLifecycle(oldCtx, false)
	p.dispatchLifecycle(newCtx, true)
	return newCtx, nil
}

func firstOf(executors []Executor) Executor {
	if len(executors) > 0 {
		return executors[0]
	}
	return nil
}

// dispatchLifecycle runs handlerAdded/handlerRemoved on ctx's own
// executor. A mutation from outside that executor defers the callback;
// the structural change is already visible by the time it runs.
func (p *Pipeline) dispatchLifecycle(ctx *HandlerContext, added bool) {
	run := func() {
		defer p.recoverLifecycle(ctx)
		if added {
			if h, ok := ctx.handler.(HandlerAddedHandler); ok {
				h.HandlerAdded(ctx)
			}
		} else {
			if h, ok := ctx.handler.(HandlerRemovedHandler); ok {
				h.HandlerRemoved(ctx)
			}
		}
	}
	if ctx.executor.InEventLoop() {
		run()
	} else {
		ctx.executor.Submit(run)
	}
}

func (p *Pipeline) recoverLifecycle(ctx *HandlerContext) {
	if r := recover(); r != nil {
		ctx.FireExceptionCaught(toError(r))
	}
}

func toError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

func releaseMessage(msg any) {
	if b, ok := msg.(buffer.ByteBuffer); ok {
		b.Release()
	}
}

// --- invocation helpers: thread-affine dispatch plus exception routing ---

func (p *Pipeline) invoke(target *HandlerContext, ev Event, call func()) {
	if target == nil {
		return // fell off the chain: default silent-discard behaviour
	}
	safe := func() {
		defer func() {
			if r := recover(); r != nil {
				err := toError(r)
				if ev == EventExceptionCaught {
					p.Warn().Err(err).Msg("exceptionCaught handler panicked, swallowing to avoid recursion")
					return
				}
				target.FireExceptionCaught(err)
			}
		}()
		call()
	}
	if target.executor.InEventLoop() {
		safe()
	} else {
		target.executor.Submit(safe)
	}
}

// invokeInbound is invoke for payload-free inbound events.
func (p *Pipeline) invokeInbound(target *HandlerContext, ev Event, call func()) {
	p.invoke(target, ev, call)
}

// invokeInboundMessage is invoke for channelRead/userEventTriggered,
// which carry a (possibly reference-counted) payload that must be
// released exactly once if the cross-executor enqueue is rejected.
func (p *Pipeline) invokeInboundMessage(target *HandlerContext, ev Event, msg any, call func()) {
	if target == nil {
		releaseMessage(msg)
		return
	}
	if target.executor.InEventLoop() {
		p.invoke(target, ev, call)
		return
	}
	safe := func() {
		defer func() {
			if r := recover(); r != nil {
				err := toError(r)
				if ev == EventExceptionCaught {
					p.Warn().Err(err).Msg("exceptionCaught handler panicked, swallowing to avoid recursion")
					return
				}
				target.FireExceptionCaught(err)
			}
		}()
		call()
	}
	future, _ := target.executor.Submit(safe)
	if future.IsDone() && future.Err() != nil { // synchronously rejected: enqueue never happened
		releaseMessage(msg)
	}
}

// invokeOutbound is invoke for outbound events, completing promise with
// the panic cause instead of re-firing exceptionCaught.
func (p *Pipeline) invokeOutbound(target *HandlerContext, promise *loop.Future, call func()) {
	if target == nil {
		if promise != nil {
			promise.Complete(ErrChannel)
		}
		return
	}
	safe := func() {
		defer func() {
			if r := recover(); r != nil {
				if promise != nil {
					promise.Complete(toError(r))
				}
			}
		}()
		call()
	}
	if target.executor.InEventLoop() {
		safe()
	} else {
		future, _ := target.executor.Submit(safe)
		if future.IsDone() && future.Err() != nil && promise != nil { // synchronously rejected
			promise.Complete(future.Err())
		}
	}
}

// invokeWrite implements cross-thread pending-bytes accounting: the size
// is added before the task is scheduled and subtracted before the handler
// runs, so a write that is still sitting in the queue is already
// counted in pendingBytes. The writable flag itself is only re-evaluated
// by CheckWritability on the loop.
func (p *Pipeline) invokeWrite(target *HandlerContext, msg any) *loop.Future {
	promise := loop.NewFuture()
	if target == nil {
		releaseMessage(msg)
		promise.Complete(ErrChannel)
		return promise
	}

	size := p.channel.config.estimateSize(msg)
	ob := p.channel.outbound

	if target.executor.InEventLoop() {
		p.invokeOutbound(target, promise, func() {
			target.handler.(WriteHandler).Write(target, msg, promise)
		})
		return promise
	}

	ob.addPending(size)
	safe := func() {
		defer func() {
			if r := recover(); r != nil {
				if promise != nil {
					promise.Complete(toError(r))
				}
			}
		}()
		ob.subPending(size)
		target.handler.(WriteHandler).Write(target, msg, promise)
	}
	future, _ := target.executor.Submit(safe)
	if future.IsDone() && future.Err() != nil { // synchronously rejected: safe never ran
		ob.subPending(size)
		releaseMessage(msg)
		promise.Complete(future.Err())
	}
	return promise
}
