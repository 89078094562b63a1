package fiber

import (
	"context"
	"testing"
	"time"

	"github.com/jetwire/wsfabric/reactor"
)

// idleReactor never reports any fd readiness; Poll just sleeps up to the
// requested timeout, letting NioFiber's own task/timer loop run.
type idleReactor struct{}

func (idleReactor) Register(fd uintptr, events reactor.FDEventType, cb reactor.FDCallback) error {
	return nil
}
func (idleReactor) Modify(fd uintptr, events reactor.FDEventType) error { return nil }
func (idleReactor) Unregister(fd uintptr) error                        { return nil }
func (idleReactor) Poll(timeoutMs int) error {
	if timeoutMs > 0 {
		time.Sleep(time.Duration(timeoutMs) * time.Millisecond)
	}
	return nil
}
func (idleReactor) Close() error { return nil }

func newTestFiber(t *testing.T) (*NioFiber, context.CancelFunc) {
	t.Helper()
	f := NewNioFiber(idleReactor{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go f.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-f.Done()
	})
	return f, cancel
}

func TestExecuteOrdering(t *testing.T) {
	f, _ := newTestFiber(t)
	var order []int
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		i := i
		f.Execute(func() {
			order = append(order, i)
			if i == 9 {
				close(done)
			}
		})
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks never ran")
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestScheduleFiresOnce(t *testing.T) {
	f, _ := newTestFiber(t)
	fired := make(chan struct{})
	f.Schedule(func() { close(fired) }, 10*time.Millisecond)
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestScheduleCancelIsIdempotent(t *testing.T) {
	f, _ := newTestFiber(t)
	count := 0
	d := f.Schedule(func() { count++ }, 20*time.Millisecond)
	d.Dispose()
	d.Dispose()
	d.Dispose()
	time.Sleep(60 * time.Millisecond)
	if count != 0 {
		t.Fatalf("canceled timer fired %d times", count)
	}
}

func TestScheduleWithFixedDelayStopsCleanly(t *testing.T) {
	f, _ := newTestFiber(t)
	ticks := make(chan struct{}, 100)
	d := f.ScheduleWithFixedDelay(func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	}, 5*time.Millisecond, 5*time.Millisecond)

	// Wait for at least a couple of ticks.
	for i := 0; i < 2; i++ {
		select {
		case <-ticks:
		case <-time.After(time.Second):
			t.Fatal("fixed-delay timer never fired")
		}
	}
	d.Dispose()

	// Drain whatever already fired, then make sure nothing new arrives.
	drain := true
	for drain {
		select {
		case <-ticks:
		default:
			drain = false
		}
	}
	select {
	case <-ticks:
		t.Fatal("timer fired again after Dispose")
	case <-time.After(50 * time.Millisecond):
	}
}
