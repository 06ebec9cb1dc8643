package loopback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ionio/corenet/channel"
	"github.com/ionio/corenet/loop"
)

type echoBack struct{}

func (echoBack) ChannelRead(ctx *channel.HandlerContext, msg any) {
	ctx.WriteAndFlushAsync(msg)
}

type collector struct {
	received chan any
}

func (c *collector) ChannelRead(ctx *channel.HandlerContext, msg any) {
	c.received <- msg
}

func TestLoopback_RoundTrip(t *testing.T) {
	l := loop.New("pair-loop")
	l.Start()
	defer l.ShutdownGracefully(0, time.Second).Wait(context.Background())

	a := channel.New("a", l, channel.StreamMetadata, nil)
	b := channel.New("b", l, channel.StreamMetadata, nil)
	NewPair(a, b)

	col := &collector{received: make(chan any, 1)}
	done := make(chan struct{})
	l.Submit(func() {
		defer close(done)
		_, err := a.Pipeline().AddLast("echo", echoBack{})
		require.NoError(t, err)
		_, err = b.Pipeline().AddLast("collect", col)
		require.NoError(t, err)

		require.NoError(t, a.RegisterAsync().Wait(context.Background()))
		require.NoError(t, b.RegisterAsync().Wait(context.Background()))

		require.NoError(t, b.ConnectAsync("a", "").Wait(context.Background()))
	})
	<-done

	b.Pipeline().Tail().WriteAndFlushAsync([]byte("ping"))

	select {
	case msg := <-col.received:
		assert.Equal(t, []byte("ping"), msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for round trip")
	}
}

func TestLoopback_WriteAfterCloseFails(t *testing.T) {
	l := loop.New("close-loop")
	l.Start()
	defer l.ShutdownGracefully(0, time.Second).Wait(context.Background())

	a := channel.New("a", l, channel.StreamMetadata, nil)
	b := channel.New("b", l, channel.StreamMetadata, nil)
	ta, _ := NewPair(a, b)

	require.NoError(t, a.RegisterAsync().Wait(context.Background()))
	require.NoError(t, a.ConnectAsync("b", "").Wait(context.Background()))

	closeDone := make(chan error, 1)
	ta.CloseAsync(loop.NewFuture())

	f := a.Pipeline().Tail().WriteAndFlushAsync([]byte("late"))
	closeDone <- f.Wait(context.Background())

	assert.ErrorIs(t, <-closeDone, channel.ErrClosedChannel)
}
