package loop

import (
	"container/heap"
	"sync/atomic"
	"time"
)

// ScheduledTask is a handle to a task waiting in an EventLoop's scheduled
// task heap. Cancel before the deadline tombstones it; the loop lazily
// drops tombstoned entries as it pops them.
type ScheduledTask struct {
	deadline  time.Time
	fn        func()
	future    *Future
	index     int // heap index, maintained by container/heap
	cancelled atomic.Bool
}

// Cancel tombstones the task. If it has already run, Cancel is a no-op.
func (s *ScheduledTask) Cancel() {
	s.cancelled.Store(true)
	s.future.Complete(ErrRejected)
}

// Future returns the completion signal for this scheduled task.
func (s *ScheduledTask) Future() *Future { return s.future }

// scheduledHeap is a container/heap min-heap ordered by deadline.
type scheduledHeap []*ScheduledTask

func (h scheduledHeap) Len() int            { return len(h) }
func (h scheduledHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h scheduledHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *scheduledHeap) Push(x interface{}) {
	t := x.(*ScheduledTask)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *scheduledHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// peekReady pops and returns the earliest task whose deadline is not after
// now, discarding tombstoned entries it meets on the way. It reports false,
// leaving the heap's live entries in place, when no task is due yet.
func (h *scheduledHeap) peekReady(now time.Time) (*ScheduledTask, bool) {
	for h.Len() > 0 {
		top := (*h)[0]
		if top.cancelled.Load() {
			heap.Pop(h)
			continue
		}
		if top.deadline.After(now) {
			return nil, false
		}
		heap.Pop(h)
		return top, true
	}
	return nil, false
}

// nextDeadline returns the earliest non-tombstoned deadline, if any.
func (h *scheduledHeap) nextDeadline() (time.Time, bool) {
	for h.Len() > 0 {
		top := (*h)[0]
		if top.cancelled.Load() {
			heap.Pop(h)
			continue
		}
		return top.deadline, true
	}
	return time.Time{}, false
}
