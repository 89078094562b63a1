// File: fiber/timer_heap.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Deadline-ordered timer queue backing NioFiber.Schedule and
// ScheduleWithFixedDelay. Ties on deadline break by insertion order, as
// required by spec. Adapted from the teacher's core/concurrency/scheduler.go,
// which declared a container/heap-based design but never compiled (missing
// import, and the heap.Interface methods were never written) — this is a
// corrected, exercised version of the same idea, including the prefetch
// hint on the next-due timer.
package fiber

import (
	"container/heap"
	"time"
	"unsafe"

	"golang.org/x/sys/cpu"
)

type timerTask struct {
	deadline time.Time
	seq      uint64
	period   time.Duration // 0 means one-shot
	fn       func()
	canceled bool
	index    int
}

type timerHeapImpl []*timerTask

func (h timerHeapImpl) Len() int { return len(h) }

func (h timerHeapImpl) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeapImpl) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeapImpl) Push(x any) {
	t := x.(*timerTask)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeapImpl) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// prefetch pulls the cache line backing p into L1 by touching its first
// byte. golang.org/x/sys/cpu exposes feature detection (cpu.X86.HasSSE2)
// but no prefetch intrinsic; this data-dependent read is the realistic
// stand-in gated on that feature flag.
func prefetch(p unsafe.Pointer) {
	_ = *(*byte)(p)
}

// timerQueue is the non-concurrent-safe core; NioFiber guards every access
// with its timerMu, since Schedule may be called from any goroutine.
type timerQueue struct {
	h       timerHeapImpl
	nextSeq uint64
}

func newTimerQueue() *timerQueue {
	return &timerQueue{}
}

func (q *timerQueue) push(t *timerTask) {
	q.nextSeq++
	t.seq = q.nextSeq
	heap.Push(&q.h, t)
}

// nextDeadline returns the earliest live deadline, prefetching the backing
// struct when the CPU supports it, since it is about to be dereferenced
// again a moment later when the fiber loop checks whether it is due.
func (q *timerQueue) nextDeadline() (time.Time, bool) {
	for q.h.Len() > 0 {
		t := q.h[0]
		if t.canceled {
			heap.Pop(&q.h)
			continue
		}
		if cpu.X86.HasSSE2 {
			prefetch(unsafe.Pointer(t))
		}
		return t.deadline, true
	}
	return time.Time{}, false
}

// popDue removes and returns every non-canceled timer whose deadline has
// passed, in deadline order (ties in insertion order), rescheduling
// fixed-delay timers as it goes.
func (q *timerQueue) popDue(now time.Time) []*timerTask {
	var due []*timerTask
	for q.h.Len() > 0 {
		t := q.h[0]
		if t.canceled {
			heap.Pop(&q.h)
			continue
		}
		if t.deadline.After(now) {
			break
		}
		heap.Pop(&q.h)
		due = append(due, t)
		if t.period > 0 && !t.canceled {
			// Reuse the same *timerTask for the rescheduled occurrence so a
			// Disposable captured at Schedule time keeps canceling the
			// right timer across every recurrence.
			t.deadline = t.deadline.Add(t.period)
			q.push(t)
		}
	}
	return due
}
