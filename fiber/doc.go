// File: fiber/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package fiber implements the single-threaded cooperative execution
// domains the rest of wsfabric is built on: NioFiber (the reactor proper —
// one goroutine, one reactor.Reactor, a task queue and a timer heap) and
// PoolFiber (a single-consumer serializing queue layered over a shared
// Executor, used for per-session handler dispatch).
package fiber
