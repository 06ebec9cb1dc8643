// Package loop implements a single-threaded cooperative event loop and
// loop-group scheduling model: one dedicated goroutine per loop, an MPSC
// task queue, a scheduled-task min-heap, and a
// Running -> ShuttingDown -> Shutdown -> Terminated lifecycle.
//
// The package is deliberately ignorant of Channel/Pipeline: it only
// executes arbitrary func() tasks on loop affinity. The channel package
// builds channel registration and the rest of the transport semantics on
// top of an EventLoop used purely as an Executor.
package loop

import (
	"bytes"
	"container/heap"
	"context"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// State is the EventLoop lifecycle state.
type State int32

const (
	Running State = iota
	ShuttingDown
	Shutdown
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting-down"
	case Shutdown:
		return "shutdown"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// DefaultBreakoutInterval is how long the loop waits for new work before
// re-checking its shutdown condition.
const DefaultBreakoutInterval = 100 * time.Millisecond

// taskBudget bounds how many queued tasks a single main-loop iteration
// drains before yielding back to I/O polling, so a task storm can't starve
// readiness checks.
const taskBudget = 256

// queueWarnThreshold is the soft backlog size above which Submit logs a
// (rate-limited) backpressure warning.
const queueWarnThreshold = 10_000

type task struct {
	fn        func()
	future    *Future
	cancelled atomic.Bool
}

// CancelToken lets a caller cancel a submitted immediate task before the
// loop dequeues it.
type CancelToken struct{ t *task }

// Cancel marks the task cancelled. In-flight tasks (already running) are
// not pre-empted.
func (c CancelToken) Cancel() {
	if c.t != nil {
		c.t.cancelled.Store(true)
	}
}

// EventLoop is a single dedicated-goroutine cooperative executor.
type EventLoop struct {
	*zerolog.Logger

	name string

	mu    sync.Mutex
	queue []*task

	schedMu sync.Mutex
	sched   scheduledHeap

	wake chan struct{}

	state      atomic.Int32
	lastTaskAt atomic.Int64 // UnixNano of the last Submit, for quietPeriod tracking

	shutdownRequestedAt time.Time
	quietPeriod         time.Duration
	shutdownTimeout     time.Duration

	breakout time.Duration

	goroID atomic.Uint64
	ready  chan struct{}

	terminatedFuture *Future

	warnLimiter *rate.Limiter

	// IOPoll, if set, is invoked once per main-loop iteration before tasks
	// are drained. Concrete I/O readiness polling is an external
	// collaborator; this is its hook into the loop.
	IOPoll func()
}

// Option configures a new EventLoop.
type Option func(*EventLoop)

// WithBreakoutInterval overrides DefaultBreakoutInterval.
func WithBreakoutInterval(d time.Duration) Option {
	return func(l *EventLoop) { l.breakout = d }
}

// WithLogger attaches a logger; nil disables logging.
func WithLogger(log *zerolog.Logger) Option {
	return func(l *EventLoop) { l.Logger = log }
}

// WithIOPoll installs the per-iteration I/O readiness hook.
func WithIOPoll(poll func()) Option {
	return func(l *EventLoop) { l.IOPoll = poll }
}

// New returns an unstarted EventLoop. Call Start before Submit.
func New(name string, opts ...Option) *EventLoop {
	l := &EventLoop{
		name:             name,
		wake:             make(chan struct{}, 1),
		breakout:         DefaultBreakoutInterval,
		ready:            make(chan struct{}),
		terminatedFuture: NewFuture(),
		warnLimiter:      rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.Logger == nil {
		nop := zerolog.Nop()
		l.Logger = &nop
	}
	return l
}

// Start spawns the loop's dedicated goroutine and blocks until it has
// registered its goroutine identity, so InEventLoop and group affinity
// lookups are correct as soon as Start returns.
func (l *EventLoop) Start() {
	go l.run()
	<-l.ready
}

// Name returns the loop's name, for logging and diagnostics.
func (l *EventLoop) Name() string { return l.name }

// State returns the current lifecycle state.
func (l *EventLoop) State() State { return State(l.state.Load()) }

// goroutineID returns the numeric id of the calling goroutine, parsed
// from the header line of its own stack trace. Used only to decide
// loop-thread affinity (InEventLoop / group Next()); not a hot path.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		id, _ := strconv.ParseUint(string(b[:i]), 10, 64)
		return id
	}
	return 0
}

// InEventLoop reports whether the calling goroutine is this loop's own
// dedicated goroutine.
func (l *EventLoop) InEventLoop() bool {
	id := l.goroID.Load()
	return id != 0 && id == goroutineID()
}

// Submit enqueues fn for execution on the loop's own goroutine, or runs it
// inline if already called from that goroutine, the same inline-vs-enqueue
// rule the handler invoker applies at the executor level.
func (l *EventLoop) Submit(fn func()) (*Future, CancelToken) {
	if l.InEventLoop() {
		future := NewFuture()
		fn()
		future.Complete(nil)
		return future, CancelToken{}
	}
	return l.enqueue(fn)
}

// SubmitAsync always enqueues fn, even from the loop's own goroutine —
// needed when the caller wants FIFO ordering relative to other queued
// work rather than immediate execution.
func (l *EventLoop) SubmitAsync(fn func()) (*Future, CancelToken) {
	return l.enqueue(fn)
}

func (l *EventLoop) enqueue(fn func()) (*Future, CancelToken) {
	if l.State() != Running {
		return Completed(ErrRejected), CancelToken{}
	}

	t := &task{fn: fn, future: NewFuture()}
	l.mu.Lock()
	l.queue = append(l.queue, t)
	n := len(l.queue)
	l.mu.Unlock()

	l.lastTaskAt.Store(time.Now().UnixNano())
	l.signal()

	if n > queueWarnThreshold && l.warnLimiter.Allow() {
		l.Warn().Str("loop", l.name).Int("queue_len", n).Msg("event loop task queue backlog")
	}

	return t.future, CancelToken{t: t}
}

// Schedule queues fn to run once after delay, on the loop's own goroutine.
func (l *EventLoop) Schedule(delay time.Duration, fn func()) *ScheduledTask {
	st := &ScheduledTask{
		deadline: time.Now().Add(delay),
		fn:       fn,
		future:   NewFuture(),
	}
	if l.State() != Running {
		st.cancelled.Store(true)
		st.future.Complete(ErrRejected)
		return st
	}

	l.schedMu.Lock()
	heap.Push(&l.sched, st)
	l.schedMu.Unlock()

	l.lastTaskAt.Store(time.Now().UnixNano())
	l.signal()
	return st
}

func (l *EventLoop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *EventLoop) popImmediate() (*task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.queue) > 0 {
		t := l.queue[0]
		l.queue = l.queue[1:]
		if t.cancelled.Load() {
			t.future.Complete(ErrRejected)
			continue
		}
		return t, true
	}
	return nil, false
}

func (l *EventLoop) popDueScheduled(now time.Time) (*ScheduledTask, bool) {
	l.schedMu.Lock()
	defer l.schedMu.Unlock()
	return l.sched.peekReady(now)
}

func (l *EventLoop) nextDeadline() (time.Time, bool) {
	l.schedMu.Lock()
	defer l.schedMu.Unlock()
	return l.sched.nextDeadline()
}

func (l *EventLoop) hasImmediateWork() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue) > 0
}

func (l *EventLoop) hasScheduledWork() bool {
	l.schedMu.Lock()
	defer l.schedMu.Unlock()
	return l.sched.Len() > 0
}

// drain runs queued work for up to taskBudget items this iteration,
// always preferring a due scheduled task over the next immediate task
// when both are ready at once.
func (l *EventLoop) drain() {
	for i := 0; i < taskBudget; i++ {
		if st, ok := l.popDueScheduled(time.Now()); ok {
			st.fn()
			st.future.Complete(nil)
			continue
		}
		if t, ok := l.popImmediate(); ok {
			t.fn()
			t.future.Complete(nil)
			continue
		}
		break
	}
}

func (l *EventLoop) run() {
	l.goroID.Store(goroutineID())
	close(l.ready)

	timer := time.NewTimer(l.breakout)
	defer timer.Stop()

	for {
		wait := l.breakout
		if l.hasImmediateWork() {
			wait = 0
		} else if d, ok := l.nextDeadline(); ok {
			if remaining := time.Until(d); remaining < wait {
				wait = remaining
			}
		}
		if wait < 0 {
			wait = 0
		}

		if wait > 0 {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(wait)
			select {
			case <-l.wake:
			case <-timer.C:
			}
		}

		if l.IOPoll != nil {
			l.IOPoll()
		}

		l.drain()

		if State(l.state.Load()) == ShuttingDown && l.shouldTerminate() {
			l.finishShutdown()
			return
		}
	}
}

// shouldTerminate reports whether ShuttingDown may become Terminated: the
// quiet period has elapsed with no immediate or scheduled work pending
// (a scheduled connect timeout, say, still needs to fire and resolve its
// future), or the shutdown deadline has been hit regardless of backlog.
func (l *EventLoop) shouldTerminate() bool {
	quietElapsed := time.Since(time.Unix(0, l.lastTaskAt.Load())) >= l.quietPeriod
	timedOut := !l.shutdownRequestedAt.IsZero() && time.Since(l.shutdownRequestedAt) >= l.shutdownTimeout
	idle := !l.hasImmediateWork() && !l.hasScheduledWork()
	return (quietElapsed && idle) || timedOut
}

func (l *EventLoop) finishShutdown() {
	l.state.Store(int32(Shutdown))
	l.drain() // final drain
	l.state.Store(int32(Terminated))
	l.Info().Str("loop", l.name).Msg("event loop terminated")
	l.terminatedFuture.Complete(nil)
}

// ShutdownGracefully requests the loop stop accepting new work and
// terminate once no task has been submitted for quietPeriod, or once
// timeout has elapsed since the request, whichever comes first. Returns
// the loop's termination Future.
func (l *EventLoop) ShutdownGracefully(quietPeriod, timeout time.Duration) *Future {
	if !l.state.CompareAndSwap(int32(Running), int32(ShuttingDown)) {
		return l.terminatedFuture // already shutting down or terminated
	}
	l.quietPeriod = quietPeriod
	l.shutdownTimeout = timeout
	l.shutdownRequestedAt = time.Now()
	l.signal()
	return l.terminatedFuture
}

// Terminated returns the loop's termination Future, resolved once the
// loop reaches the Terminated state.
func (l *EventLoop) Terminated() *Future { return l.terminatedFuture }

// AwaitTerminated blocks until the loop terminates or ctx is cancelled.
func (l *EventLoop) AwaitTerminated(ctx context.Context) error {
	return l.terminatedFuture.Wait(ctx)
}
