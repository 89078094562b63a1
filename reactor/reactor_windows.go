//go:build windows
// +build windows

// File: reactor/reactor_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows IOCP-based Reactor implementation. IOCP is completion-based
// rather than readiness-based; each Poll dequeues at most one completion
// and invokes the callback registered for that completion's key,
// reporting it as EventRead|EventWrite since the actual direction is carried
// by the overlapped operation the caller issued, not by IOCP itself.

package reactor

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/windows"
)

type iocpEntry struct {
	fd uintptr
	cb FDCallback
}

type iocpReactor struct {
	iocp       windows.Handle
	mu         sync.RWMutex
	byKey      map[uint32]*iocpEntry
	keyCounter uint32
	closed     chan struct{}
}

// NewReactor constructs the IOCP-backed Reactor for Windows.
func NewReactor() (Reactor, error) {
	port, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("reactor: iocp create: %w", err)
	}
	return &iocpReactor{
		iocp:   port,
		byKey:  make(map[uint32]*iocpEntry),
		closed: make(chan struct{}),
	}, nil
}

func (r *iocpReactor) Register(fd uintptr, events FDEventType, cb FDCallback) error {
	key := atomic.AddUint32(&r.keyCounter, 1)
	_, err := windows.CreateIoCompletionPort(windows.Handle(fd), r.iocp, uintptr(key), 0)
	if err != nil {
		return fmt.Errorf("reactor: iocp associate: %w", err)
	}
	r.mu.Lock()
	r.byKey[key] = &iocpEntry{fd: fd, cb: cb}
	r.mu.Unlock()
	return nil
}

// Modify is a no-op on IOCP: interest is implicit in the overlapped
// operation the caller posts, not in a persistent registration.
func (r *iocpReactor) Modify(fd uintptr, events FDEventType) error {
	return nil
}

func (r *iocpReactor) Unregister(fd uintptr) error {
	r.mu.Lock()
	for k, e := range r.byKey {
		if e.fd == fd {
			delete(r.byKey, k)
			break
		}
	}
	r.mu.Unlock()
	return nil
}

func (r *iocpReactor) Poll(timeoutMs int) error {
	var bytes uint32
	var key uintptr
	var overlapped *windows.Overlapped
	timeout := uint32(windows.INFINITE)
	if timeoutMs >= 0 {
		timeout = uint32(timeoutMs)
	}
	err := windows.GetQueuedCompletionStatus(r.iocp, &bytes, &key, &overlapped, timeout)
	if err != nil {
		if err == windows.WAIT_TIMEOUT {
			return nil
		}
		return fmt.Errorf("reactor: iocp wait: %w", err)
	}
	r.mu.RLock()
	entry, ok := r.byKey[uint32(key)]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	func() {
		defer func() { _ = recover() }()
		entry.cb(entry.fd, EventRead|EventWrite)
	}()
	return nil
}

func (r *iocpReactor) Close() error {
	select {
	case <-r.closed:
	default:
		close(r.closed)
	}
	return windows.CloseHandle(r.iocp)
}
