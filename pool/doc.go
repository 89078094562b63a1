// Package pool
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// NUMA-aware, lock-free buffer pooling for read buffers. See
// bufferpool.go for the NUMA-segmented BufferPool, ring.go/objpool.go
// for the smaller generic pooling primitives layered on top of it.
package pool
