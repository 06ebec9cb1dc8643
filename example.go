/*
 * a basic example of wiring an EventLoopGroup, a Channel pair and a
 * handler pipeline together over the in-memory loopback transport
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ionio/corenet/channel"
	"github.com/ionio/corenet/loop"
	"github.com/ionio/corenet/loopback"
)

var (
	optLoops    = flag.Int("loops", 2, "number of event loops in the group")
	optMessages = flag.Int("messages", 5, "number of messages to echo")
	optVerbose  = flag.Bool("v", false, "debug-level logging")
)

func main() {
	flag.Parse()

	level := zerolog.InfoLevel
	if *optVerbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	group, err := loop.NewGroup(context.Background(), *optLoops, func(idx int) (*loop.EventLoop, error) {
		return loop.New(fmt.Sprintf("loop-%d", idx), loop.WithLogger(&log)), nil
	}, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start event loop group")
	}

	client := channel.New("client", group.Next(), channel.StreamMetadata, &log)
	server := channel.New("server", group.Next(), channel.StreamMetadata, &log)
	loopback.NewPair(client, server)

	done := make(chan struct{})
	server.Pipeline().AddLast("echo", echoHandler{})
	client.Pipeline().AddLast("printer", &printHandler{log: &log, want: *optMessages, done: done})

	if err := client.RegisterAsync().Wait(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("client register failed")
	}
	if err := server.RegisterAsync().Wait(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("server register failed")
	}
	if err := client.ConnectAsync("server", "").Wait(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("connect failed")
	}

	for i := 0; i < *optMessages; i++ {
		client.Pipeline().Tail().WriteAndFlushAsync(fmt.Sprintf("ping %d", i))
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("timed out waiting for echoes")
	}

	group.ShutdownGracefully(0, 2*time.Second).Wait(context.Background())
}

// echoHandler writes every inbound message straight back out the channel
// it arrived on.
type echoHandler struct{}

func (echoHandler) ChannelRead(ctx *channel.HandlerContext, msg any) {
	ctx.WriteAndFlushAsync(msg)
}

// printHandler logs every inbound message and signals done once it has
// seen want of them.
type printHandler struct {
	log  *zerolog.Logger
	want int
	seen int
	done chan struct{}
}

func (h *printHandler) ChannelRead(ctx *channel.HandlerContext, msg any) {
	h.log.Info().Interface("msg", msg).Msg("received echo")
	h.seen++
	if h.seen >= h.want {
		close(h.done)
	}
}

func (h *printHandler) ExceptionCaught(ctx *channel.HandlerContext, cause error) {
	h.log.Error().Err(cause).Msg("pipeline error")
}
