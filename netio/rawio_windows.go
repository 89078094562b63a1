// File: netio/rawio_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build windows

package netio

import "golang.org/x/sys/windows"

// RawRead performs one non-blocking recv syscall on the socket handle fd.
func RawRead(fd uintptr, buf []byte) (int, error) {
	return windows.Recv(windows.Handle(fd), buf, 0)
}

// RawWrite performs one non-blocking send syscall on the socket handle fd.
func RawWrite(fd uintptr, buf []byte) (int, error) {
	return windows.Send(windows.Handle(fd), buf, 0)
}
