// File: netio/wouldblock_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build !windows

package netio

import (
	"errors"
	"syscall"
)

// isWouldBlockErrno matches the errno golang.org/x/sys/unix.Read/Write
// return when a non-blocking socket has no data/room. unix.Errno is
// syscall.Errno under the hood on every Unix GOOS, so comparing against
// the syscall package constants is correct here.
func isWouldBlockErrno(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}
