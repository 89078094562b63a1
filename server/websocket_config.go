// File: server/websocket_config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WebServerConfig routes an upgraded connection's request path to the
// application's wssession.Handler, and maps any path that never carried
// a WebSocket Upgrade onto a static file tree. Grounded on
// highlevel.Server's HandleFuncWithMethods: exact path match first, then
// a predicate list, the same order SPEC_FULL.md's routing section
// requires (wire.ParseUpgradeRequest's path is matched exact-then-predicate).
package server

import (
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jetwire/wsfabric/wssession"
)

// HandlerBuilder builds the application Handler for one newly-upgraded
// connection's request path and headers.
type HandlerBuilder func(path string, reqHdr http.Header) wssession.Handler

// StaticResource maps a URL path prefix to a directory on disk.
type StaticResource struct {
	Prefix string
	Dir    string
}

type predicateRoute struct {
	match   func(string) bool
	builder HandlerBuilder
}

// WebServerConfig is a router-style façade in front of acceptor.Acceptor:
// exact-path and predicate routes pick the wssession.Handler for each
// upgraded connection, and static resources answer plain HTTP requests
// that never asked for an Upgrade.
type WebServerConfig struct {
	exact      map[string]HandlerBuilder
	predicates []predicateRoute
	statics    []StaticResource
	notFound   HandlerBuilder
}

// NewWebServerConfig builds an empty WebServerConfig.
func NewWebServerConfig() *WebServerConfig {
	return &WebServerConfig{exact: make(map[string]HandlerBuilder)}
}

// Add registers builder for pathOrPredicate, which must be either a
// string (an exact request path) or a func(path string) bool predicate.
// Exact matches are tried before predicates, in registration order.
func (w *WebServerConfig) Add(pathOrPredicate any, builder HandlerBuilder) {
	switch p := pathOrPredicate.(type) {
	case string:
		w.exact[p] = builder
	case func(string) bool:
		w.predicates = append(w.predicates, predicateRoute{match: p, builder: builder})
	default:
		panic("server: Add requires a string path or a func(string) bool predicate")
	}
}

// SetNotFound registers the builder used when no route matches an
// upgraded connection's path. With no notFound builder (the default),
// Resolve returns nil for an unmatched path; the connection is not
// closed and its session runs with no handler, so its callbacks are
// dropped.
func (w *WebServerConfig) SetNotFound(builder HandlerBuilder) {
	w.notFound = builder
}

// AddStatic registers a URL-prefix-to-directory mapping, served for any
// request that never carried a WebSocket Upgrade.
func (w *WebServerConfig) AddStatic(resourceLocator StaticResource) {
	w.statics = append(w.statics, resourceLocator)
}

// Resolve picks the Handler for path/reqHdr, falling back to notFound.
func (w *WebServerConfig) Resolve(path string, reqHdr http.Header) wssession.Handler {
	if builder, ok := w.exact[path]; ok {
		return builder(path, reqHdr)
	}
	for _, r := range w.predicates {
		if r.match(path) {
			return r.builder(path, reqHdr)
		}
	}
	if w.notFound != nil {
		return w.notFound(path, reqHdr)
	}
	return nil
}

// ServeStatic answers a plain HTTP request from the first matching
// static resource, writing a hand-rolled response the same way
// wire.WriteUpgradeResponse writes the handshake response rather than
// handing the connection to net/http's server machinery. It closes conn
// once the response is written. If no static resource matches reqPath,
// it writes a 404 and closes.
func (w *WebServerConfig) ServeStatic(reqPath string, conn net.Conn) {
	defer conn.Close()
	for _, sr := range w.statics {
		if !strings.HasPrefix(reqPath, sr.Prefix) {
			continue
		}
		rel := strings.TrimPrefix(reqPath, sr.Prefix)
		full := filepath.Join(sr.Dir, filepath.Clean("/"+rel))
		if !strings.HasPrefix(full, filepath.Clean(sr.Dir)) {
			writeStatusLine(conn, 403, "Forbidden")
			return
		}
		data, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		writeFile(conn, full, data)
		return
	}
	writeStatusLine(conn, 404, "Not Found")
}

func writeFile(conn net.Conn, name string, data []byte) {
	ctype := contentTypeFor(name)
	conn.Write([]byte("HTTP/1.1 200 OK\r\n"))
	conn.Write([]byte("Content-Type: " + ctype + "\r\n"))
	conn.Write([]byte("Content-Length: " + strconv.Itoa(len(data)) + "\r\n\r\n"))
	conn.Write(data)
}

func writeStatusLine(conn net.Conn, code int, text string) {
	line := "HTTP/1.1 " + strconv.Itoa(code) + " " + text + "\r\n\r\n"
	conn.Write([]byte(line))
}

func contentTypeFor(name string) string {
	switch path.Ext(name) {
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".js":
		return "text/javascript; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
