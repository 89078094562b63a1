// File: netio/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package netio buffers outbound frame bytes for one connection and drains
// them as the socket reports writability, applying back-pressure once a
// high-water mark is crossed. A second, priority queue lets control-frame
// replies (pong, close) jump ahead of already-queued data frames.
package netio
