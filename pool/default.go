// File: pool/default.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "sync"

var (
	defaultOnce sync.Once
	defaultMgr  *BufferPoolManager
)

// DefaultManager returns a process-wide BufferPoolManager so all components
// reuse the same NUMA-aware pools instead of fragmenting allocations.
func DefaultManager() *BufferPoolManager {
	defaultOnce.Do(func() {
		defaultMgr = NewBufferPoolManager()
	})
	return defaultMgr
}

// DefaultBuffer is a shortcut to pull a Buffer from the default manager's
// pool for numaPreferred.
func DefaultBuffer(size, numaPreferred int) Buffer {
	return DefaultManager().GetPool(numaPreferred).Get(size, numaPreferred)
}
