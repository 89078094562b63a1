// File: acceptor/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package acceptor binds a net.Listener to the reactor fabric: it
// accepts connections, drives the server side of the RFC 6455 upgrade,
// and hands each accepted connection's raw fd off to one of a pool of
// read fibers in round-robin, wiring a wssession.Session on top.
package acceptor
