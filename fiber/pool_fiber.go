// File: fiber/pool_fiber.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// PoolFiber serializes callbacks for one logical owner (a session) onto a
// shared Executor: tasks run one at a time, in posting order, on whichever
// worker happens to be free — not necessarily the same one twice in a row.
// Grounded on spec.md §4.B and on the claim/release pattern used by
// jetlang's PoolFiberImpl.
package fiber

import (
	"sync"
	"time"
)

// PoolFiber is a single-consumer serializing queue backed by an Executor.
type PoolFiber struct {
	executor *Executor
	onPanic  func(any)

	mu       sync.Mutex
	queue    []TaskFunc
	draining bool
}

// NewPoolFiber returns a PoolFiber drawing workers from executor. onPanic,
// if non-nil, receives recovered values from task panics; it must not
// block.
func NewPoolFiber(executor *Executor, onPanic func(any)) *PoolFiber {
	return &PoolFiber{executor: executor, onPanic: onPanic}
}

// Execute enqueues task, claiming a worker if the queue was empty.
// Returns ErrExecutorClosed if the backing Executor has shut down.
func (p *PoolFiber) Execute(task TaskFunc) error {
	p.mu.Lock()
	p.queue = append(p.queue, task)
	claim := !p.draining
	if claim {
		p.draining = true
	}
	p.mu.Unlock()

	if !claim {
		return nil
	}
	if err := p.executor.Submit(p.drainLoop); err != nil {
		// Nobody will ever claim this queue now; undo the claim so a later
		// Execute (on an executor that recovers) can try again, though in
		// practice a closed Executor stays closed.
		p.mu.Lock()
		p.draining = false
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *PoolFiber) drainLoop() {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.draining = false
			p.mu.Unlock()
			return
		}
		t := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		func() {
			defer func() {
				if r := recover(); r != nil && p.onPanic != nil {
					p.onPanic(r)
				}
			}()
			t()
		}()
	}
}

// Schedule runs task once after delay, on this fiber's serialized queue.
// The actual wait happens on a library-internal timer goroutine (time.AfterFunc);
// only the eventual run is serialized through Execute.
func (p *PoolFiber) Schedule(task TaskFunc, delay time.Duration) Disposable {
	timer := time.AfterFunc(delay, func() { _ = p.Execute(task) })
	return NewDisposable(func() { timer.Stop() })
}

// ScheduleWithFixedDelay runs task repeatedly, first after initial then
// every period, until the returned Disposable is disposed. Each firing is
// serialized through Execute so it shares this fiber's ordering guarantee
// with everything else posted here (e.g. heartbeat-vs-publish ordering).
func (p *PoolFiber) ScheduleWithFixedDelay(task TaskFunc, initial, period time.Duration) Disposable {
	var (
		mu      sync.Mutex
		timer   *time.Timer
		stopped bool
	)
	var run func()
	run = func() {
		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		mu.Unlock()
		_ = p.Execute(task)
		mu.Lock()
		if !stopped {
			timer = time.AfterFunc(period, run)
		}
		mu.Unlock()
	}
	mu.Lock()
	timer = time.AfterFunc(initial, run)
	mu.Unlock()

	return NewDisposable(func() {
		mu.Lock()
		stopped = true
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	})
}
