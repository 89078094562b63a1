//go:build linux
// +build linux

// File: reactor/reactor_linux_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestEpollReactorRegisterAndPollDeliversRead(t *testing.T) {
	r, err := NewReactor()
	if err != nil {
		t.Fatalf("NewReactor: %v", err)
	}
	defer r.Close()

	a, b := socketPair(t)

	var mu sync.Mutex
	var gotEvents FDEventType
	done := make(chan struct{})
	if err := r.Register(uintptr(a), EventRead, func(fd uintptr, events FDEventType) {
		mu.Lock()
		gotEvents = events
		mu.Unlock()
		close(done)
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := unix.Write(b, []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := r.Poll(1000); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	select {
	case <-done:
	default:
		t.Fatal("callback was not invoked by Poll")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotEvents&EventRead == 0 {
		t.Fatalf("events = %v, want EventRead set", gotEvents)
	}
}

func TestEpollReactorUnregisterStopsCallbacks(t *testing.T) {
	r, err := NewReactor()
	if err != nil {
		t.Fatalf("NewReactor: %v", err)
	}
	defer r.Close()

	a, b := socketPair(t)

	calls := 0
	if err := r.Register(uintptr(a), EventRead, func(fd uintptr, events FDEventType) {
		calls++
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Unregister(uintptr(a)); err != nil {
		t.Fatalf("Unregister: %v", err)
	}

	if _, err := unix.Write(b, []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := r.Poll(50); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if calls != 0 {
		t.Fatalf("calls = %d, want 0 after Unregister", calls)
	}
}

func TestEpollReactorModifyArmsWriteInterest(t *testing.T) {
	r, err := NewReactor()
	if err != nil {
		t.Fatalf("NewReactor: %v", err)
	}
	defer r.Close()

	a, _ := socketPair(t)

	var mu sync.Mutex
	var gotEvents FDEventType
	done := make(chan struct{})
	if err := r.Register(uintptr(a), EventRead, func(fd uintptr, events FDEventType) {
		mu.Lock()
		gotEvents = events
		mu.Unlock()
		select {
		case <-done:
		default:
			close(done)
		}
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Modify(uintptr(a), EventRead|EventWrite); err != nil {
		t.Fatalf("Modify: %v", err)
	}

	// A freshly connected stream socket is writable immediately, so
	// Poll should report EventWrite without anything being written.
	if err := r.Poll(1000); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	<-done
	mu.Lock()
	defer mu.Unlock()
	if gotEvents&EventWrite == 0 {
		t.Fatalf("events = %v, want EventWrite set after Modify", gotEvents)
	}
}

func TestEpollReactorPollTimesOutCleanly(t *testing.T) {
	r, err := NewReactor()
	if err != nil {
		t.Fatalf("NewReactor: %v", err)
	}
	defer r.Close()

	a, _ := socketPair(t)
	if err := r.Register(uintptr(a), EventRead, func(fd uintptr, events FDEventType) {
		t.Fatal("callback should not fire when nothing is readable")
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	start := time.Now()
	if err := r.Poll(50); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Poll blocked too long on an idle descriptor: %v", elapsed)
	}
}
