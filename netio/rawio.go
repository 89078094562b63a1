// File: netio/rawio.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RawFD extracts the OS-level descriptor backing a net.Conn so the
// reactor can multiplex it directly instead of going through the Go
// runtime's own netpoller, the same "take the socket out of the
// runtime's hands" move the teacher's acceptor makes for its raw epoll
// registrations.
package netio

import "syscall"

// RawFD returns the descriptor (a POSIX fd on Unix, a SOCKET handle on
// Windows) backing conn.
func RawFD(conn syscall.Conn) (uintptr, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd uintptr
	ctrlErr := raw.Control(func(f uintptr) {
		fd = f
	})
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	return fd, nil
}
