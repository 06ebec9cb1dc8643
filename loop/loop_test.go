package loop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLoop_FIFOOrdering(t *testing.T) {
	l := New("t1")
	l.Start()
	defer l.ShutdownGracefully(0, time.Second).Wait(context.Background())

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		i := i
		_, _ = l.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestEventLoop_InlineWhenOnLoop(t *testing.T) {
	l := New("t2")
	l.Start()
	defer l.ShutdownGracefully(0, time.Second).Wait(context.Background())

	done := make(chan bool, 1)
	_, _ = l.Submit(func() {
		// nested Submit from the loop's own goroutine must run inline
		ran := false
		_, _ = l.Submit(func() { ran = true })
		done <- ran
	})
	assert.True(t, <-done)
}

func TestEventLoop_RejectsAfterShutdown(t *testing.T) {
	l := New("t3")
	l.Start()

	future := l.ShutdownGracefully(0, time.Second)
	require.NoError(t, future.Wait(context.Background()))

	f, _ := l.Submit(func() {})
	err := f.Wait(context.Background())
	assert.ErrorIs(t, err, ErrRejected)
}

func TestEventLoop_ScheduledBeforeImmediateOnTie(t *testing.T) {
	l := New("t4")
	l.Start()
	defer l.ShutdownGracefully(0, time.Second).Wait(context.Background())

	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup
	wg.Add(2)

	// Block the loop briefly so both the scheduled task's deadline and the
	// immediate task are ready by the time drain() runs.
	_, _ = l.Submit(func() { time.Sleep(20 * time.Millisecond) })
	l.Schedule(5*time.Millisecond, func() {
		mu.Lock()
		order = append(order, "scheduled")
		mu.Unlock()
		wg.Done()
	})
	_, _ = l.Submit(func() {
		mu.Lock()
		order = append(order, "immediate")
		mu.Unlock()
		wg.Done()
	})

	wg.Wait()
	assert.Equal(t, []string{"scheduled", "immediate"}, order)
}

func TestEventLoop_CancelledTaskDropped(t *testing.T) {
	l := New("t5")
	l.Start()
	defer l.ShutdownGracefully(0, time.Second).Wait(context.Background())

	ran := false
	blockDone := make(chan struct{})
	_, _ = l.Submit(func() { <-blockDone })

	_, cancel := l.Submit(func() { ran = true })
	cancel.Cancel()
	close(blockDone)

	// drain the queue
	done := make(chan struct{})
	_, _ = l.Submit(func() { close(done) })
	<-done

	assert.False(t, ran)
}

func TestGroup_RoundRobinAndAffinity(t *testing.T) {
	g, err := NewGroup(context.Background(), 3, func(i int) (*EventLoop, error) {
		return New("g-loop"), nil
	}, nil)
	require.NoError(t, err)
	defer g.ShutdownGracefully(0, time.Second).Wait(context.Background())

	first := g.Next()
	second := g.Next()
	assert.NotSame(t, first, second)

	// affinity: calling Next() from inside one of the group's loops
	// returns that same loop.
	resultCh := make(chan *EventLoop, 1)
	_, _ = first.Submit(func() {
		resultCh <- g.Next()
	})
	assert.Same(t, first, <-resultCh)
}

func TestGroup_ShutdownComposite(t *testing.T) {
	g, err := NewGroup(context.Background(), 2, func(i int) (*EventLoop, error) {
		return New("g2-loop"), nil
	}, nil)
	require.NoError(t, err)

	err = g.ShutdownGracefully(0, time.Second).Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, g.AllTerminated())
}
