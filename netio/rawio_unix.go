// File: netio/rawio_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build !windows

package netio

import "golang.org/x/sys/unix"

// RawRead performs one non-blocking read syscall on fd.
func RawRead(fd uintptr, buf []byte) (int, error) {
	return unix.Read(int(fd), buf)
}

// RawWrite performs one non-blocking write syscall on fd.
func RawWrite(fd uintptr, buf []byte) (int, error) {
	return unix.Write(int(fd), buf)
}
