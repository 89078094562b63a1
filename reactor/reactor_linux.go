//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based Reactor implementation.

package reactor

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// epollReactor implements Reactor using Linux epoll.
type epollReactor struct {
	epfd      int
	mu        sync.RWMutex
	callbacks map[uintptr]FDCallback
}

// NewReactor constructs the epoll-backed Reactor for Linux.
func NewReactor() (Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll create: %w", err)
	}
	return &epollReactor{
		epfd:      epfd,
		callbacks: make(map[uintptr]FDCallback),
	}, nil
}

func toEpollMask(ev FDEventType) uint32 {
	var m uint32
	if ev&EventRead != 0 {
		m |= unix.EPOLLIN
	}
	if ev&EventWrite != 0 {
		m |= unix.EPOLLOUT
	}
	return m
}

func (r *epollReactor) Register(fd uintptr, events FDEventType, cb FDCallback) error {
	ev := &unix.EpollEvent{Events: toEpollMask(events), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), ev); err != nil {
		return fmt.Errorf("reactor: epoll_ctl add: %w", err)
	}
	r.mu.Lock()
	r.callbacks[fd] = cb
	r.mu.Unlock()
	return nil
}

func (r *epollReactor) Modify(fd uintptr, events FDEventType) error {
	ev := &unix.EpollEvent{Events: toEpollMask(events), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, int(fd), ev); err != nil {
		return fmt.Errorf("reactor: epoll_ctl mod: %w", err)
	}
	return nil
}

func (r *epollReactor) Unregister(fd uintptr) error {
	// EPOLL_CTL_DEL ignores the event argument but some kernels require
	// a non-nil pointer.
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, int(fd), &unix.EpollEvent{})
	r.mu.Lock()
	delete(r.callbacks, fd)
	r.mu.Unlock()
	return nil
}

func (r *epollReactor) Poll(timeoutMs int) error {
	var raw [128]unix.EpollEvent
	n, err := unix.EpollWait(r.epfd, raw[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("reactor: epoll_wait: %w", err)
	}
	for i := 0; i < n; i++ {
		fd := uintptr(raw[i].Fd)
		var et FDEventType
		if raw[i].Events&unix.EPOLLIN != 0 {
			et |= EventRead
		}
		if raw[i].Events&unix.EPOLLOUT != 0 {
			et |= EventWrite
		}
		if raw[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			et |= EventError
		}
		r.mu.RLock()
		cb, ok := r.callbacks[fd]
		r.mu.RUnlock()
		if !ok {
			continue
		}
		func() {
			defer func() { _ = recover() }()
			cb(fd, et)
		}()
	}
	return nil
}

func (r *epollReactor) Close() error {
	return unix.Close(r.epfd)
}
