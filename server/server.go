// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"
	"net"
	"net/http"

	"github.com/jetwire/wsfabric/acceptor"
	"github.com/jetwire/wsfabric/fiber"
	"github.com/jetwire/wsfabric/pubsub"
)

// NewAcceptor opens a TCP listener on port and wires it into an
// acceptor.Acceptor bound to readerFibers, routed through wsConfig.
//
// acceptorFiber hosts the acceptor's own lifecycle tasks. Serve itself
// still runs its plain accept loop on its own goroutine, grounded on
// transport/tcp/listener.go's accept shape, but launching that goroutine
// is scheduled as a task on acceptorFiber. onEnd, if non-nil, is invoked
// on that accept-loop goroutine (not on acceptorFiber) once Serve
// returns, with the error it returned (nil on a clean Close).
func NewAcceptor(port int, acceptorFiber *fiber.NioFiber, readerFibers []*fiber.NioFiber, cfg *Config, wsConfig *WebServerConfig, registry *pubsub.Registry, onEnd func(error)) (*acceptor.Acceptor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("server: listen on port %d: %w", port, err)
	}

	executor := fiber.NewExecutor(len(readerFibers))

	var factory acceptor.HandlerFactory
	if wsConfig != nil {
		factory = wsConfig.Resolve
	}

	a, err := acceptor.New(ln, readerFibers, executor, registry, cfg.acceptorConfig(), factory, cfg.Logger)
	if err != nil {
		ln.Close()
		return nil, err
	}

	if wsConfig != nil && len(wsConfig.statics) > 0 {
		a.OnNonUpgrade = func(path string, _ http.Header, conn net.Conn) {
			wsConfig.ServeStatic(path, conn)
		}
	}

	if acceptorFiber != nil {
		acceptorFiber.Execute(func() {
			go func() {
				err := a.Serve()
				if onEnd != nil {
					onEnd(err)
				}
			}()
		})
	} else {
		go func() {
			err := a.Serve()
			if onEnd != nil {
				onEnd(err)
			}
		}()
	}

	return a, nil
}
