// File: reactor/reactor.go
// Package reactor provides the low-level, OS-native readiness multiplexer
// that the fiber package builds its single-threaded event loop on top of.
//
// A Reactor tracks a set of file descriptors and delivers readiness
// callbacks for read/write/error conditions. It does not itself own any
// goroutine; Poll must be driven by the caller.

package reactor

import "fmt"

// FDEventType is a bitmask of readiness conditions reported by Poll.
type FDEventType uint8

const (
	EventRead FDEventType = 1 << iota
	EventWrite
	EventError
)

// FDCallback is invoked with the fd and the readiness bits observed for it.
// It must not block; long-running work belongs on a fiber.PoolFiber.
type FDCallback func(fd uintptr, events FDEventType)

// Reactor multiplexes readiness notifications for a set of file descriptors.
type Reactor interface {
	// Register starts watching fd for the given interest set, invoking cb
	// on readiness. cb must remain valid until Unregister is called.
	Register(fd uintptr, events FDEventType, cb FDCallback) error

	// Modify changes the interest set for an already-registered fd.
	// Used to arm/disarm EventWrite when a writer transitions between
	// Empty and Pending (see netio.Writer).
	Modify(fd uintptr, events FDEventType) error

	// Unregister stops watching fd. Safe to call more than once.
	Unregister(fd uintptr) error

	// Poll blocks up to timeoutMs (negative means indefinitely) and
	// dispatches callbacks for any fds that became ready. Returns nil on
	// a plain timeout.
	Poll(timeoutMs int) error

	// Close releases the underlying OS handle.
	Close() error
}

// ErrUnsupportedPlatform is returned by NewReactor on platforms with no
// native readiness backend wired in.
var ErrUnsupportedPlatform = fmt.Errorf("reactor: no native backend for this platform")
