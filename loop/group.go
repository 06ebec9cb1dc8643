package loop

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Group is a fixed-size, ordered pool of EventLoops with a round-robin
// Next() policy. Membership is tracked in an xsync.MapOf so Next() can
// recognise "the calling goroutine already is one of my loops" without
// taking a lock.
type Group struct {
	*zerolog.Logger

	loops    []*EventLoop
	counter  atomic.Uint64
	registry *xsync.MapOf[uint64, *EventLoop] // goroutine id -> owning loop
}

// Factory constructs the idx'th loop of a group.
type Factory func(idx int) (*EventLoop, error)

// NewGroup constructs count loops via factory and starts them. If loop k
// (1 <= k <= count) fails to construct, loops 0..k-1 are shut down and
// awaited before the error propagates.
func NewGroup(ctx context.Context, count int, factory Factory, log *zerolog.Logger) (*Group, error) {
	g := &Group{registry: xsync.NewMapOf[*EventLoop]()}
	if log != nil {
		g.Logger = log
	} else {
		nop := zerolog.Nop()
		g.Logger = &nop
	}

	for i := 0; i < count; i++ {
		l, err := factory(i)
		if err != nil {
			g.Error().Err(err).Int("index", i).Msg("event loop group: construction failed, unwinding")
			g.unwind(ctx)
			return nil, fmt.Errorf("%w: %w", ErrLoopFactory, err)
		}
		l.Start()
		g.loops = append(g.loops, l)
		g.registry.Store(l.goroID.Load(), l)
	}

	return g, nil
}

func (g *Group) unwind(ctx context.Context) {
	futures := make([]*Future, 0, len(g.loops))
	for _, l := range g.loops {
		futures = append(futures, l.ShutdownGracefully(0, 0))
	}
	for _, f := range futures {
		_ = f.Wait(ctx)
	}
	g.loops = nil
}

// Len returns the number of loops in the group.
func (g *Group) Len() int { return len(g.loops) }

// Loops returns the group's loops in their fixed order. The returned
// slice must not be mutated.
func (g *Group) Loops() []*EventLoop { return g.loops }

// Next returns the next loop per the group's policy: if the calling
// goroutine is itself a goroutine of one of this group's loops, that same
// loop is returned (preserving affinity for nested calls); otherwise a
// monotonic round-robin loop is returned.
func (g *Group) Next() *EventLoop {
	if l, ok := g.registry.Load(goroutineID()); ok {
		return l
	}
	n := g.counter.Add(1)
	idx := int(n % uint64(len(g.loops)))
	return g.loops[idx]
}

// ShutdownGracefully broadcasts shutdown to every loop in the group and
// returns a composite Future resolved once every loop has reached
// Terminated. Fan-out and aggregation use golang.org/x/sync/errgroup to
// run the per-loop waits concurrently and collect the first error.
func (g *Group) ShutdownGracefully(quietPeriod, timeout time.Duration) *Future {
	composite := NewFuture()

	futures := make([]*Future, len(g.loops))
	for i, l := range g.loops {
		futures[i] = l.ShutdownGracefully(quietPeriod, timeout)
	}

	go func() {
		eg, ctx := errgroup.WithContext(context.Background())
		for _, f := range futures {
			f := f
			eg.Go(func() error { return f.Wait(ctx) })
		}
		composite.Complete(eg.Wait())
	}()

	return composite
}

// AllTerminated reports whether every loop in the group has reached
// Terminated, the condition the composite signal in ShutdownGracefully
// waits for.
func (g *Group) AllTerminated() bool {
	for _, l := range g.loops {
		if l.State() != Terminated {
			return false
		}
	}
	return true
}
