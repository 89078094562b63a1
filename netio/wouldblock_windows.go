// File: netio/wouldblock_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build windows

package netio

import (
	"errors"

	"golang.org/x/sys/windows"
)

// isWouldBlockErrno matches the error golang.org/x/sys/windows.Recv/Send
// return when a non-blocking socket has no data/room. Winsock reports
// this as WSAEWOULDBLOCK, not EAGAIN.
func isWouldBlockErrno(err error) bool {
	return errors.Is(err, windows.WSAEWOULDBLOCK)
}
