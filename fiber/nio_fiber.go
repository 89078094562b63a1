// File: fiber/nio_fiber.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// NioFiber is the spec's "reactor": one goroutine owns a reactor.Reactor,
// an unbounded task queue, and a timer heap, and every I/O callback, timer,
// and posted task for the fds it owns runs on that goroutine. Mirrors the
// algorithm in spec.md §4.A step by step.
package fiber

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jetwire/wsfabric/reactor"
)

// ChannelHandler is registered on a NioFiber for one file descriptor.
type ChannelHandler interface {
	// FD returns the descriptor to watch.
	FD() uintptr
	// Interest returns the readiness bits the handler currently wants.
	Interest() reactor.FDEventType
	// OnSelect is invoked on the reactor thread when FD becomes ready.
	// Returning false deregisters the handler and triggers OnEnd.
	OnSelect(f *NioFiber, events reactor.FDEventType) bool
	// OnEnd fires exactly once: when OnSelect returns false, or when the
	// fiber shuts down with this handler still registered.
	OnEnd()
}

// maxPollInterval bounds how long Poll may block so that tasks and timers
// posted from other goroutines are picked up promptly even though this
// reactor has no wake-pipe wired into the poller.
const maxPollInterval = 50 * time.Millisecond

// NioFiber is a single-threaded cooperative executor bound to a reactor.Reactor.
type NioFiber struct {
	r      reactor.Reactor
	logger *log.Logger

	queue   *taskQueue
	timers  *timerQueue
	timerMu sync.Mutex

	handlersMu sync.Mutex
	handlers   map[uintptr]ChannelHandler

	stopCh chan struct{}
	doneCh chan struct{}
	stopOnce sync.Once
}

// NewNioFiber constructs a NioFiber driven by r. logger defaults to
// log.Default() when nil.
func NewNioFiber(r reactor.Reactor, logger *log.Logger) *NioFiber {
	if logger == nil {
		logger = log.Default()
	}
	return &NioFiber{
		r:        r,
		logger:   logger,
		queue:    newTaskQueue(),
		timers:   newTimerQueue(),
		handlers: make(map[uintptr]ChannelHandler),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Execute enqueues task for a future run on the reactor thread. Dropped
// silently if the fiber has already stopped, per spec.md §4.A.
func (f *NioFiber) Execute(task TaskFunc) {
	select {
	case <-f.stopCh:
		return
	default:
	}
	f.queue.push(task)
}

// Schedule runs task once after delay. The cancel handle is idempotent.
func (f *NioFiber) Schedule(task TaskFunc, delay time.Duration) Disposable {
	t := &timerTask{deadline: time.Now().Add(delay), fn: task}
	f.timerMu.Lock()
	f.timers.push(t)
	f.timerMu.Unlock()
	return NewDisposable(func() {
		f.timerMu.Lock()
		t.canceled = true
		f.timerMu.Unlock()
	})
}

// ScheduleWithFixedDelay runs task repeatedly: first after initial, then
// every period, until disposed.
func (f *NioFiber) ScheduleWithFixedDelay(task TaskFunc, initial, period time.Duration) Disposable {
	t := &timerTask{deadline: time.Now().Add(initial), period: period, fn: task}
	f.timerMu.Lock()
	f.timers.push(t)
	f.timerMu.Unlock()
	return NewDisposable(func() {
		f.timerMu.Lock()
		t.canceled = true
		f.timerMu.Unlock()
	})
}

// AddHandler registers h with the underlying reactor and starts dispatching
// readiness events to it on the reactor thread.
func (f *NioFiber) AddHandler(h ChannelHandler) error {
	fd := h.FD()
	cb := func(fd uintptr, events reactor.FDEventType) {
		f.dispatch(h, events)
	}
	if err := f.r.Register(fd, h.Interest(), cb); err != nil {
		return err
	}
	f.handlersMu.Lock()
	f.handlers[fd] = h
	f.handlersMu.Unlock()
	return nil
}

// ArmWrite toggles EventWrite interest for fd, used by netio.Writer to
// request a writability notification once output is buffered, and to
// disarm it once the buffer drains.
func (f *NioFiber) ArmWrite(fd uintptr, interest reactor.FDEventType) error {
	return f.r.Modify(fd, interest)
}

func (f *NioFiber) dispatch(h ChannelHandler, events reactor.FDEventType) {
	keep := h.OnSelect(f, events)
	if !keep {
		f.removeHandler(h.FD())
		h.OnEnd()
	}
}

func (f *NioFiber) removeHandler(fd uintptr) {
	f.handlersMu.Lock()
	delete(f.handlers, fd)
	f.handlersMu.Unlock()
	_ = f.r.Unregister(fd)
}

// Run drives the reactor loop until Stop is called or ctx is done. It
// blocks the calling goroutine; callers typically `go fiber.Run(ctx)`.
func (f *NioFiber) Run(ctx context.Context) {
	defer close(f.doneCh)
	for {
		select {
		case <-f.stopCh:
			f.shutdown()
			return
		case <-ctx.Done():
			f.Stop()
			f.shutdown()
			return
		default:
		}

		timeout := maxPollInterval
		f.timerMu.Lock()
		if dl, ok := f.timers.nextDeadline(); ok {
			if d := time.Until(dl); d < timeout {
				if d < 0 {
					d = 0
				}
				timeout = d
			}
		}
		f.timerMu.Unlock()

		if err := f.r.Poll(int(timeout / time.Millisecond)); err != nil {
			f.logger.Printf("fiber: poll error: %v", err)
		}

		now := time.Now()
		f.timerMu.Lock()
		due := f.timers.popDue(now)
		f.timerMu.Unlock()
		for _, t := range due {
			f.safeRun(t.fn)
		}

		for {
			task, ok := f.queue.pop()
			if !ok {
				break
			}
			f.safeRun(task)
		}
	}
}

func (f *NioFiber) safeRun(task TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Printf("fiber: recovered panic in task: %v", r)
		}
	}()
	task()
}

// Stop requests the reactor loop exit. Idempotent.
func (f *NioFiber) Stop() {
	f.stopOnce.Do(func() {
		close(f.stopCh)
	})
}

// Done returns a channel closed once Run has fully exited.
func (f *NioFiber) Done() <-chan struct{} {
	return f.doneCh
}

func (f *NioFiber) shutdown() {
	f.handlersMu.Lock()
	handlers := make([]ChannelHandler, 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.handlers = make(map[uintptr]ChannelHandler)
	f.handlersMu.Unlock()

	for _, h := range handlers {
		_ = f.r.Unregister(h.FD())
		h.OnEnd()
	}
	_ = f.r.Close()
	// Pending timers and tasks enqueued after shutdown are discarded, per
	// spec.md §4.A — the queues are simply abandoned here.
}
