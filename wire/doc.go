// File: wire/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package wire implements RFC 6455 frame encoding/decoding, fragmentation
// reassembly, and the HTTP/1.1 Upgrade handshake on both ends of a
// connection. It knows nothing about sockets or reactors; callers feed it
// bytes and it hands back frames, or hand it frames and it hands back
// bytes.
package wire
