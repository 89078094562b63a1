// File: fiber/disposable.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import "sync"

// Disposable is an idempotent cancel handle, modeled on the teacher's
// sync.Once-guarded session cancellation (internal/session/cancel.go) and
// on JetlangStreamSession's hbStopper compare-and-set gate.
type Disposable interface {
	Dispose()
}

type disposeFunc struct {
	once sync.Once
	fn   func()
}

// NewDisposable wraps fn so repeated Dispose calls run it at most once.
func NewDisposable(fn func()) Disposable {
	return &disposeFunc{fn: fn}
}

func (d *disposeFunc) Dispose() {
	d.once.Do(func() {
		if d.fn != nil {
			d.fn()
		}
	})
}

// nopDisposable is returned where a caller needs a Disposable but there is
// nothing to cancel (e.g. heartbeat disabled by configuration).
var nopDisposable Disposable = NewDisposable(nil)
