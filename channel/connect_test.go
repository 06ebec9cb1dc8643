package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ionio/corenet/loop"
	"github.com/ionio/corenet/option"
)

// stallingTransport never resolves ConnectAsync, to exercise the
// channel-level connect timeout.
type stallingTransport struct {
	ch *Channel
}

func (s *stallingTransport) RegisterAsync(l *loop.EventLoop, promise *loop.Future) { promise.Complete(nil) }
func (s *stallingTransport) BindAsync(addr string, promise *loop.Future)           {}
func (s *stallingTransport) ConnectAsync(remote, local string, promise *loop.Future) {
	// deliberately never completes promise
}
func (s *stallingTransport) DisconnectAsync(promise *loop.Future) { promise.Complete(nil) }
func (s *stallingTransport) CloseAsync(promise *loop.Future)      { promise.Complete(nil) }
func (s *stallingTransport) DeregisterAsync(promise *loop.Future) { promise.Complete(nil) }
func (s *stallingTransport) BeginRead()                           {}
func (s *stallingTransport) Write(msg any, promise *loop.Future)  {}
func (s *stallingTransport) Flush()                               {}
func (s *stallingTransport) OutboundBuffer() *OutboundBuffer      { return s.ch.Outbound() }

func TestChannel_ConnectTimeout(t *testing.T) {
	ch, l := newTestChannel(t)
	ch.BindUnsafe(&stallingTransport{ch: ch})

	catcher := &catchingHandler{}
	runOnLoop(l, func() {
		_, err := ch.Pipeline().AddLast("catcher", catcher)
		require.NoError(t, err)
	})

	// Override the default 30s connect timeout with something test-fast.
	option.Set(ch.Config().Raw(), option.ConnectTimeout, 10*time.Millisecond)

	start := time.Now()
	f := ch.ConnectAsync("remote:1", "")
	err := f.Wait(context.Background())
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrConnectTimeout)
	assert.Less(t, elapsed, time.Second, "timeout should fire on the configured schedule, not hang")
	assert.False(t, ch.IsActive())

	require.Eventually(t, func() bool { return len(catcher.caught) == 1 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, catcher.caught[0], ErrConnectTimeout)
}
