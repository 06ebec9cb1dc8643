package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ionio/corenet/loop"
)

func newTestChannel(t *testing.T) (*Channel, *loop.EventLoop) {
	t.Helper()
	l := loop.New("test-loop")
	l.Start()
	t.Cleanup(func() {
		l.ShutdownGracefully(0, time.Second).Wait(context.Background())
	})
	ch := New("test-channel", l, StreamMetadata, nil)
	return ch, l
}

func runOnLoop(l *loop.EventLoop, fn func()) {
	done := make(chan struct{})
	l.Submit(func() { defer close(done); fn() })
	<-done
}

func TestPipeline_NameUniqueness(t *testing.T) {
	ch, _ := newTestChannel(t)
	p := ch.Pipeline()

	_, err := p.AddLast("h1", &noopHandler{})
	require.NoError(t, err)

	_, err = p.AddLast("h1", &noopHandler{})
	require.Error(t, err)
	var perr *PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, DuplicateName, perr.Code)

	assert.Equal(t, []string{"h1"}, p.Names(), "failed add must leave pipeline unchanged")
}

func TestPipeline_NonSharableReuseRejected(t *testing.T) {
	ch1, _ := newTestChannel(t)
	ch2, _ := newTestChannel(t)

	h := &noopHandler{}
	_, err := ch1.Pipeline().AddLast("h", h)
	require.NoError(t, err)

	_, err = ch2.Pipeline().AddLast("h", h)
	require.Error(t, err)
	var perr *PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, NonSharableReuse, perr.Code)
}

func TestPipeline_SharableHandlerReusable(t *testing.T) {
	ch1, _ := newTestChannel(t)
	ch2, _ := newTestChannel(t)

	h := sharableMarker{}
	_, err := ch1.Pipeline().AddLast("h", h)
	require.NoError(t, err)
	_, err = ch2.Pipeline().AddLast("h", h)
	require.NoError(t, err)
}

func TestPipeline_RemoveNotFound(t *testing.T) {
	ch, _ := newTestChannel(t)
	err := ch.Pipeline().Remove("nope")
	require.Error(t, err)
	var perr *PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, HandlerNotFound, perr.Code)
}

type lifecycleRecorder struct {
	events []string
}

func (r *lifecycleRecorder) HandlerAdded(ctx *HandlerContext)   { r.events = append(r.events, "added") }
func (r *lifecycleRecorder) HandlerRemoved(ctx *HandlerContext) { r.events = append(r.events, "removed") }
func (r *lifecycleRecorder) ChannelRead(ctx *HandlerContext, msg any) {
	r.events = append(r.events, "read")
}

func TestPipeline_HandlerLifecycleOrdering(t *testing.T) {
	ch, l := newTestChannel(t)
	rec := &lifecycleRecorder{}

	runOnLoop(l, func() {
		_, err := ch.Pipeline().AddLast("rec", rec)
		require.NoError(t, err)
		ch.Pipeline().Head().FireChannelRead("msg")
		require.NoError(t, ch.Pipeline().Remove("rec"))
	})

	assert.Equal(t, []string{"added", "read", "removed"}, rec.events)
}

// identityReader forwards channelRead unchanged; it implements the event,
// so traversal enters it, and is placed around handlers that don't
// implement the event (and are skipped).
type identityReader struct{}

func (identityReader) ChannelRead(ctx *HandlerContext, msg any) { ctx.FireChannelRead(msg) }
func (identityReader) IsSharable() bool                         { return true }

func TestPipeline_SkipPropagation(t *testing.T) {
	ch, l := newTestChannel(t)
	tail := &readOnlyHandler{}

	runOnLoop(l, func() {
		p := ch.Pipeline()
		_, err := p.AddLast("A", identityReader{})
		require.NoError(t, err)
		_, err = p.AddLast("B", &activeOnlyHandler{}) // does not implement ChannelRead: skipped
		require.NoError(t, err)
		_, err = p.AddLast("C", identityReader{})
		require.NoError(t, err)
		_, err = p.AddLast("sink", tail)
		require.NoError(t, err)

		p.Head().FireChannelRead("payload")
	})

	require.Len(t, tail.reads, 1)
	assert.Equal(t, "payload", tail.reads[0])
}

func TestPipeline_RoundTripThroughIdentityHandlers(t *testing.T) {
	ch, l := newTestChannel(t)
	sink := &readOnlyHandler{}

	runOnLoop(l, func() {
		p := ch.Pipeline()
		for i := 0; i < 5; i++ {
			_, err := p.AddLast(string(rune('a'+i)), identityReader{})
			require.NoError(t, err)
		}
		_, err := p.AddLast("sink", sink)
		require.NoError(t, err)

		b := []byte("round-trip")
		p.Head().FireChannelRead(b)
	})

	require.Len(t, sink.reads, 1)
	assert.Equal(t, []byte("round-trip"), sink.reads[0])
}

type throwingHandler struct{}

func (throwingHandler) ChannelRead(ctx *HandlerContext, msg any) {
	panic("boom")
}
func (throwingHandler) IsSharable() bool { return true }

type catchingHandler struct {
	caught []error
}

func (c *catchingHandler) ExceptionCaught(ctx *HandlerContext, cause error) {
	c.caught = append(c.caught, cause)
}

func TestPipeline_ExceptionRoutesToNextExceptionCaught(t *testing.T) {
	ch, l := newTestChannel(t)
	catcher := &catchingHandler{}

	runOnLoop(l, func() {
		p := ch.Pipeline()
		_, err := p.AddLast("thrower", throwingHandler{})
		require.NoError(t, err)
		_, err = p.AddLast("catcher", catcher)
		require.NoError(t, err)

		p.Head().FireChannelRead("x")
	})

	require.Len(t, catcher.caught, 1)
	assert.Contains(t, catcher.caught[0].Error(), "boom")
}

type doubleThrowingCatcher struct {
	calls int
}

func (d *doubleThrowingCatcher) ExceptionCaught(ctx *HandlerContext, cause error) {
	d.calls++
	panic("catcher also throws")
}

func TestPipeline_ExceptionCaughtReentrySwallowed(t *testing.T) {
	ch, l := newTestChannel(t)
	catcher := &doubleThrowingCatcher{}

	runOnLoop(l, func() {
		p := ch.Pipeline()
		_, err := p.AddLast("thrower", throwingHandler{})
		require.NoError(t, err)
		_, err = p.AddLast("catcher", catcher)
		require.NoError(t, err)

		assert.NotPanics(t, func() {
			p.Head().FireChannelRead("x")
		})
	})

	assert.Equal(t, 1, catcher.calls, "must not recurse into exceptionCaught")
}
