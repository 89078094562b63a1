// File: wsclient/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package wsclient is the outbound counterpart to wssession: it dials a
// remote WebSocket endpoint, drives the RFC 6455 handshake as a client,
// and hands the steady-state connection off to a reactor-driven
// non-blocking read/write loop. When Config.Reconnect is set (it is off by
// default) it re-dials after a close, the way the Java original's
// WebSocketClient does.
package wsclient
