// File: server/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Config mirrors wsclient.Config's read-side knobs so the two sides of
// one connection agree on buffer sizing and timeouts, plus the ambient
// logging/metrics sinks every component in this tree accepts.
package server

import (
	"time"

	"github.com/jetwire/wsfabric/acceptor"
	"github.com/jetwire/wsfabric/control"
	"github.com/jetwire/wsfabric/pool"
)

// Config holds server-side tunables plus the ambient logging/metrics
// sinks. With* options mutate it in place, grounded on the teacher's own
// functional-option style (server/options.go's WithAffinityScope /
// WithBatchSize / highlevel.Server's WithReadTimeout family).
type Config struct {
	ReadBufferSize    int
	MaxReadLoops      int
	MaxFramePayload   int64
	HighWaterMark     int
	HandshakeTimeout  time.Duration
	HeartbeatInterval time.Duration
	IdleReadTimeout   time.Duration

	Logger  control.Logger
	Metrics *control.MetricsRegistry

	// BufferPool, if set, supplies every accepted connection's read
	// buffer from a NUMA-segmented pool instead of a fresh allocation
	// per connection. NUMANode picks which pool segment to draw from;
	// -1 (the default) means "system default".
	BufferPool pool.BufferPool
	NUMANode   int
}

// ServerOption mutates a Config during construction.
type ServerOption func(*Config)

// DefaultConfig mirrors acceptor.DefaultConfig, adding the ambient
// logger/metrics sinks.
func DefaultConfig() *Config {
	ac := acceptor.DefaultConfig()
	return &Config{
		ReadBufferSize:    ac.ReadBufferSize,
		MaxReadLoops:      ac.MaxReadLoops,
		MaxFramePayload:   ac.MaxFramePayload,
		HighWaterMark:     ac.HighWaterMark,
		HandshakeTimeout:  ac.HandshakeTimeout,
		HeartbeatInterval: ac.HeartbeatInterval,
		IdleReadTimeout:   ac.IdleReadTimeout,
		Logger:            control.Default(),
		Metrics:           control.NewMetricsRegistry(),
		NUMANode:          -1,
	}
}

// WithBufferPool draws every accepted connection's read buffer from p,
// selecting numaNode's segment (-1 for system default).
func WithBufferPool(p pool.BufferPool, numaNode int) ServerOption {
	return func(c *Config) {
		c.BufferPool = p
		c.NUMANode = numaNode
	}
}

// WithLogger overrides the ambient logging sink.
func WithLogger(l control.Logger) ServerOption {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics overrides the ambient metrics registry.
func WithMetrics(m *control.MetricsRegistry) ServerOption {
	return func(c *Config) { c.Metrics = m }
}

// WithHeartbeatInterval overrides the server-initiated ping interval.
// 0 disables heartbeats.
func WithHeartbeatInterval(d time.Duration) ServerOption {
	return func(c *Config) { c.HeartbeatInterval = d }
}

// WithIdleReadTimeout overrides the idle-read close timeout. 0 disables
// it.
func WithIdleReadTimeout(d time.Duration) ServerOption {
	return func(c *Config) { c.IdleReadTimeout = d }
}

// WithHighWaterMark overrides the per-connection writer back-pressure
// threshold.
func WithHighWaterMark(n int) ServerOption {
	return func(c *Config) { c.HighWaterMark = n }
}

// WithMaxFramePayload overrides the largest single WebSocket frame
// payload this server will decode.
func WithMaxFramePayload(n int64) ServerOption {
	return func(c *Config) { c.MaxFramePayload = n }
}

// acceptorConfig projects Config onto acceptor.Config.
func (c *Config) acceptorConfig() acceptor.Config {
	return acceptor.Config{
		ReadBufferSize:    c.ReadBufferSize,
		MaxReadLoops:      c.MaxReadLoops,
		MaxFramePayload:   c.MaxFramePayload,
		HighWaterMark:     c.HighWaterMark,
		HandshakeTimeout:  c.HandshakeTimeout,
		HeartbeatInterval: c.HeartbeatInterval,
		IdleReadTimeout:   c.IdleReadTimeout,
		BufferPool:        c.BufferPool,
		NUMANode:          c.NUMANode,
	}
}
