//go:build !linux && !windows
// +build !linux,!windows

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub backend for platforms without a wired-in native poller.

package reactor

// NewReactor returns ErrUnsupportedPlatform on unsupported platforms.
func NewReactor() (Reactor, error) {
	return nil, ErrUnsupportedPlatform
}
