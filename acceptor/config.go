// File: acceptor/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package acceptor

import (
	"time"

	"github.com/jetwire/wsfabric/pool"
)

// Config tunes every connection the Acceptor hands off.
type Config struct {
	ReadBufferSize    int
	MaxReadLoops      int
	MaxFramePayload   int64
	HighWaterMark     int
	HandshakeTimeout  time.Duration
	HeartbeatInterval time.Duration
	IdleReadTimeout   time.Duration

	// BufferPool, if set, supplies each connection's read buffer and
	// reclaims it on OnEnd instead of a plain make([]byte, ...). NUMANode
	// selects which NUMA-segmented pool to draw from; -1 means "system
	// default".
	BufferPool pool.BufferPool
	NUMANode   int
}

// DefaultConfig mirrors wsclient.DefaultConfig's read-side numbers,
// since both sides of one connection read frames the same way.
func DefaultConfig() Config {
	return Config{
		ReadBufferSize:    1024,
		MaxReadLoops:      50,
		MaxFramePayload:   1 << 20,
		HighWaterMark:     1 << 20,
		HandshakeTimeout:  5 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		IdleReadTimeout:   0,
		NUMANode:          -1,
	}
}
