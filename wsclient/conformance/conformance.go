// File: wsclient/conformance/conformance.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package conformance wraps gorilla/websocket as a black-box RFC 6455
// client, grounded on the teacher's own tests/integration_echo_test.go
// ("End-to-end test of ws echo server using standard net/http & Gorilla
// WS"). The wire and wsclient packages implement the same framing and
// handshake from scratch; this package exists so integration tests (the
// acceptor package's) can verify that framing against a second,
// independent implementation instead of only testing against itself.
package conformance

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a thin wrapper over a gorilla/websocket connection, used
// only from test code to dial this module's own acceptor/server and
// exchange frames as an independent peer would.
type Client struct {
	conn *websocket.Conn
}

// Dial performs an RFC 6455 handshake against addr (host:port) and
// path, returning a Client on success.
func Dial(addr, path string, header http.Header) (*Client, error) {
	u := "ws://" + addr + path
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// WriteText sends a text frame.
func (c *Client) WriteText(s string) error {
	return c.conn.WriteMessage(websocket.TextMessage, []byte(s))
}

// WriteBinary sends a binary frame.
func (c *Client) WriteBinary(b []byte) error {
	return c.conn.WriteMessage(websocket.BinaryMessage, b)
}

// ReadMessage blocks until the next message arrives, returning its
// opcode (websocket.TextMessage or websocket.BinaryMessage) and payload.
func (c *Client) ReadMessage() (int, []byte, error) {
	return c.conn.ReadMessage()
}

// SetReadDeadline bounds the next ReadMessage call.
func (c *Client) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close closes the underlying network connection without sending a
// close frame.
func (c *Client) Close() error {
	return c.conn.Close()
}
