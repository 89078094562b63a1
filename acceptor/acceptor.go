// File: acceptor/acceptor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Acceptor generalizes the teacher's transport/tcp.StartTCPListener
// accept loop: the bare inline handshake parser there is replaced with
// wire.ParseUpgradeRequest/WriteUpgradeResponse, and accepted connections
// are no longer handed to a plain func(net.Conn) callback but instead
// wired onto a wssession.Session that rides one of a pool of read fibers,
// chosen round-robin so one reactor thread's accept rate never pegs a
// single goroutine with every live connection's I/O.
package acceptor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jetwire/wsfabric/control"
	"github.com/jetwire/wsfabric/fiber"
	"github.com/jetwire/wsfabric/netio"
	"github.com/jetwire/wsfabric/pool"
	"github.com/jetwire/wsfabric/pubsub"
	"github.com/jetwire/wsfabric/reactor"
	"github.com/jetwire/wsfabric/wire"
	"github.com/jetwire/wsfabric/wssession"
)

// HandlerFactory builds the application Handler for one newly-upgraded
// connection, given its request path and original request headers
// (auth tokens, cookies, subprotocols).
type HandlerFactory func(path string, reqHdr http.Header) wssession.Handler

// Acceptor binds a net.Listener to a pool of read fibers.
type Acceptor struct {
	ln             net.Listener
	readFibers     []*fiber.NioFiber
	executor       *fiber.Executor
	registry       *pubsub.Registry
	cfg            Config
	handlerFactory HandlerFactory
	logger         control.Logger

	// OnNonUpgrade, if set, is called instead of closing the connection
	// when an accepted request's headers don't carry a WebSocket Upgrade
	// (RFC 6455 §4.1). The callback owns conn from that point: write a
	// response and close it. Lets a caller serve plain HTTP content
	// (e.g. static files) from the same listener.
	OnNonUpgrade func(path string, reqHdr http.Header, conn net.Conn)

	nextFiber atomic.Uint64
	nextID    atomic.Uint64
	closed    atomic.Bool
}

// New builds an Acceptor. readFibers must be non-empty and already
// running (fiber.NioFiber.Run started elsewhere); executor backs one
// PoolFiber per accepted session. registry may be nil for deployments
// that never use topic subscriptions.
func New(ln net.Listener, readFibers []*fiber.NioFiber, executor *fiber.Executor, registry *pubsub.Registry, cfg Config, handlerFactory HandlerFactory, logger control.Logger) (*Acceptor, error) {
	if len(readFibers) == 0 {
		return nil, errors.New("acceptor: at least one read fiber is required")
	}
	if logger == nil {
		logger = control.Default()
	}
	return &Acceptor{
		ln:             ln,
		readFibers:     readFibers,
		executor:       executor,
		registry:       registry,
		cfg:            cfg,
		handlerFactory: handlerFactory,
		logger:         logger,
	}, nil
}

// Serve runs the accept loop until the listener is closed. Each
// connection is handed off to its own goroutine for the handshake so a
// slow or hostile peer's handshake can never stall the accept loop.
func (a *Acceptor) Serve() error {
	for {
		conn, err := a.ln.Accept()
		if err != nil {
			if a.closed.Load() {
				return nil
			}
			return fmt.Errorf("acceptor: accept: %w", err)
		}
		go a.handleConn(conn)
	}
}

// Addr returns the listener's bound address, useful when the caller let
// the OS pick an ephemeral port.
func (a *Acceptor) Addr() net.Addr {
	return a.ln.Addr()
}

// Close stops the accept loop; connections already handed off keep
// running until their own Session closes.
func (a *Acceptor) Close() error {
	a.closed.Store(true)
	return a.ln.Close()
}

// Start runs Serve until ctx is done, at which point the listener is
// closed and Start returns ctx.Err(). Lets a caller bound how long it
// waits for an orderly shutdown the way wsclient.Handle.Stop does on
// the client side.
func (a *Acceptor) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- a.Serve() }()
	select {
	case <-ctx.Done():
		a.Close()
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (a *Acceptor) handleConn(conn net.Conn) {
	timeout := a.cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	conn.SetDeadline(time.Now().Add(timeout))

	br := bufio.NewReader(conn)
	respHdr, reqHdr, path, err := wire.ParseUpgradeRequest(br)
	if err != nil {
		if errors.Is(err, wire.ErrInvalidUpgradeHeaders) && a.OnNonUpgrade != nil {
			conn.SetDeadline(time.Time{})
			a.OnNonUpgrade(path, reqHdr, conn)
			return
		}
		a.logger.Printf("acceptor: handshake from %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	if err := wire.WriteUpgradeResponse(conn, respHdr); err != nil {
		a.logger.Printf("acceptor: write handshake response to %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	conn.SetDeadline(time.Time{})

	leftover := make([]byte, br.Buffered())
	if _, err := io.ReadFull(br, leftover); err != nil {
		a.logger.Printf("acceptor: drain handshake buffer from %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	sc, ok := conn.(syscall.Conn)
	if !ok {
		a.logger.Printf("acceptor: connection from %s exposes no raw fd", conn.RemoteAddr())
		conn.Close()
		return
	}
	fd, err := netio.RawFD(sc)
	if err != nil {
		a.logger.Printf("acceptor: extract raw fd from %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	readFiber := a.pickReadFiber()
	sendFiber := fiber.NewPoolFiber(a.executor, nil)

	readBufSize := a.cfg.ReadBufferSize
	if readBufSize <= 0 {
		readBufSize = 1024
	}
	maxReadLoops := a.cfg.MaxReadLoops
	if maxReadLoops <= 0 {
		maxReadLoops = 50
	}

	var handler wssession.Handler
	if a.handlerFactory != nil {
		handler = a.handlerFactory(path, reqHdr)
	}

	id := fmt.Sprintf("sess-%d", a.nextID.Add(1))
	c := &sessionConn{
		fd:           fd,
		asm:          wire.NewAssembler(a.cfg.MaxFramePayload, true),
		maxReadLoops: maxReadLoops,
		idleTimeout:  a.cfg.IdleReadTimeout,
		registry:     a.registry,
		bufPool:      a.cfg.BufferPool,
	}
	if c.bufPool != nil {
		c.poolBuf = c.bufPool.Get(readBufSize, a.cfg.NUMANode)
		c.readBuf = c.poolBuf.Bytes()
	} else {
		c.readBuf = make([]byte, readBufSize)
	}
	c.writer = netio.NewWriter(
		func(b []byte) (int, error) { return netio.RawWrite(fd, b) },
		func(want bool) error {
			interest := reactor.EventRead
			if want {
				interest |= reactor.EventWrite
			}
			return readFiber.ArmWrite(fd, interest)
		},
		a.cfg.HighWaterMark,
	)
	c.session = wssession.NewSession(id, c.writer, sendFiber, a.registry, handler, a.logger)

	if err := readFiber.AddHandler(c); err != nil {
		a.logger.Printf("acceptor: register connection %s: %v", id, err)
		conn.Close()
		return
	}

	if hb := a.cfg.HeartbeatInterval; hb > 0 {
		c.startHeartbeat(sendFiber, hb)
	}
	c.session.ResetIdleTimer(a.cfg.IdleReadTimeout)

	if len(leftover) > 0 {
		readFiber.Execute(func() {
			c.asm.Feed(leftover)
			c.drainMessages()
		})
	}

	c.session.Open(reqHdr)
}

func (a *Acceptor) pickReadFiber() *fiber.NioFiber {
	i := a.nextFiber.Add(1) - 1
	return a.readFibers[i%uint64(len(a.readFibers))]
}

// sessionConn adapts one accepted connection's raw I/O to its
// wssession.Session, mirroring wsclient's connHandler shape but routing
// incoming envelopes (subscribe/unsubscribe/publish) into the shared
// pubsub.Registry instead of surfacing them to an application callback.
type sessionConn struct {
	fd           uintptr
	session      *wssession.Session
	writer       *netio.Writer
	asm          *wire.Assembler
	readBuf      []byte
	maxReadLoops int
	idleTimeout  time.Duration
	registry     *pubsub.Registry
	hbStop       fiber.Disposable
	bufPool      pool.BufferPool
	poolBuf      pool.Buffer
}

func (c *sessionConn) FD() uintptr                   { return c.fd }
func (c *sessionConn) Interest() reactor.FDEventType { return reactor.EventRead }

func (c *sessionConn) OnSelect(_ *fiber.NioFiber, events reactor.FDEventType) bool {
	if events&reactor.EventError != 0 {
		c.session.Fail(errors.New("acceptor: socket error"))
		return false
	}
	if events&reactor.EventWrite != 0 {
		if err := c.writer.OnWritable(); err != nil {
			c.session.Fail(err)
			return false
		}
	}
	if events&reactor.EventRead != 0 {
		return c.readLoop()
	}
	return true
}

func (c *sessionConn) OnEnd() {
	if c.hbStop != nil {
		c.hbStop.Dispose()
	}
	if c.poolBuf != nil {
		c.poolBuf.Release()
	}
	c.session.Close()
}

func (c *sessionConn) readLoop() bool {
	for i := 0; i < c.maxReadLoops; i++ {
		n, err := netio.RawRead(c.fd, c.readBuf)
		if n > 0 {
			c.session.ResetIdleTimer(c.idleTimeout)
			c.asm.Feed(c.readBuf[:n])
			if !c.drainMessages() {
				return false
			}
		}
		if err != nil {
			if netio.IsWouldBlock(err) {
				return true
			}
			c.session.Fail(fmt.Errorf("acceptor: read: %w", err))
			return false
		}
		if n == 0 {
			return false // peer closed
		}
	}
	return true
}

func (c *sessionConn) drainMessages() bool {
	for {
		msg, ok, err := c.asm.Next()
		if err != nil {
			var pe *wire.ProtocolError
			if errors.As(err, &pe) {
				c.session.SendClose(pe.Code, pe.Reason)
				c.session.Fail(pe)
			} else {
				c.session.Fail(err)
			}
			return false
		}
		if !ok {
			return true
		}
		switch msg.Kind {
		case wire.KindText:
			c.session.DispatchText(string(msg.Payload))
		case wire.KindBinary:
			c.dispatchBinary(msg.Payload)
		case wire.KindPing:
			c.writer.SendPriority(controlFrame(wire.OpPong, msg.Payload))
		case wire.KindPong:
			// liveness only; no action needed.
		case wire.KindClose:
			c.session.OnRemoteClose(msg.CloseCode, msg.Payload)
			return false
		}
	}
}

// dispatchBinary routes an incoming binary message: a well-formed
// Envelope drives pub/sub bookkeeping directly, while anything else is
// handed to the application as a raw binary message.
func (c *sessionConn) dispatchBinary(payload []byte) {
	env, err := wssession.DecodeEnvelope(payload)
	if err != nil {
		c.session.DispatchBinary(payload)
		return
	}
	switch env.Kind {
	case wssession.EnvSubscribe:
		c.session.Subscribe(env.Topic)
	case wssession.EnvUnsubscribe:
		c.session.Unsubscribe(env.Topic)
	case wssession.EnvPublish:
		if c.registry != nil {
			c.registry.PublishTo(env.Topic, env.Payload, true)
		}
	case wssession.EnvReply:
		c.session.DispatchBinary(payload)
	}
}

func (c *sessionConn) startHeartbeat(sendFiber *fiber.PoolFiber, interval time.Duration) {
	c.hbStop = sendFiber.ScheduleWithFixedDelay(func() {
		c.writer.SendPriority(controlFrame(wire.OpPing, nil))
	}, interval, interval)
}

// controlEncoder is shared across every sessionConn: with mask=false its
// Encode never touches the rand source, only the immutable mask flag, so
// concurrent use from different sessions' reactor goroutines is safe.
var controlEncoder = wire.NewEncoder(false, nil)

func controlFrame(opcode wire.Opcode, payload []byte) []byte {
	raw, err := controlEncoder.Encode(wire.Frame{Fin: true, Opcode: opcode, Payload: payload})
	if err != nil {
		return nil
	}
	return raw
}
