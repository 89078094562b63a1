// File: wsclient/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Config mirrors WebSocketClient.Config from the original: read buffer
// size, max read loops per readiness notification, and connect timeout,
// plus the fields this rewrite adds for heartbeat/idle/back-pressure that
// the original hardcoded or left to the caller.
package wsclient

import (
	"net/http"
	"time"
)

// Config tunes one client connection.
type Config struct {
	// ReadBufferSize is the size of the scratch buffer used for each raw
	// read syscall. Mirrors Config.getReadBufferSizeInBytes() = 1024.
	ReadBufferSize int
	// MaxReadLoops bounds how many times OnSelect drains the socket
	// before yielding back to the reactor, preventing one chatty peer
	// from starving others. Mirrors Config.getMaxReadLoops() = 50.
	MaxReadLoops int
	// ConnectTimeout bounds the initial TCP dial. Mirrors
	// Config.getConnectTimeout() = 5s.
	ConnectTimeout time.Duration
	// HeartbeatInterval schedules periodic pings; 0 disables.
	HeartbeatInterval time.Duration
	// IdleReadTimeout closes the connection if no frame is read within
	// this window; 0 disables.
	IdleReadTimeout time.Duration
	// HighWaterMark caps the writer's buffered bytes; a write that reaches
	// it makes the writer report Closed and the connection is torn down.
	HighWaterMark int
	// MaxFramePayload bounds a single incoming frame's payload size.
	MaxFramePayload int64
	// Reconnect re-dials automatically after an unexpected close, with
	// exponential backoff up to ReconnectMaxBackoff.
	Reconnect            bool
	ReconnectMinBackoff  time.Duration
	ReconnectMaxBackoff  time.Duration
	// ExtraHeaders are added to the HTTP Upgrade request (e.g. auth).
	ExtraHeaders http.Header
}

// DefaultConfig returns the settings the original WebSocketClient shipped
// with, extended with this rewrite's additions left at conservative
// defaults.
func DefaultConfig() Config {
	return Config{
		ReadBufferSize:      1024,
		MaxReadLoops:        50,
		ConnectTimeout:      5 * time.Second,
		HeartbeatInterval:   0,
		IdleReadTimeout:     0,
		HighWaterMark:       1 << 20,
		MaxFramePayload:     1 << 20,
		Reconnect:           false,
		ReconnectMinBackoff: 200 * time.Millisecond,
		ReconnectMaxBackoff: 10 * time.Second,
	}
}
