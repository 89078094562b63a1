// File: server/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package server is the acceptor-facing facade: WebServerConfig gives an
// application a router-style way to bind topic paths to session
// handlers and to serve static files alongside them, and NewAcceptor
// wires that configuration onto the reactor fabric's acceptor.Acceptor.
package server
