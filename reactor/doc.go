// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the core poll-mode readiness multiplexer and its
// per-platform backends (epoll on Linux, IOCP on Windows).
package reactor
