package wsclient

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jetwire/wsfabric/fiber"
	"github.com/jetwire/wsfabric/reactor"
	"github.com/jetwire/wsfabric/wire"
	"github.com/jetwire/wsfabric/wssession"
)

type recordingHandler struct {
	mu       sync.Mutex
	opened   int
	closed   int
	messages []string
	topics   []string
	errs     []error
}

func (h *recordingHandler) OnOpen(c *Handle) {
	h.mu.Lock()
	h.opened++
	h.mu.Unlock()
}
func (h *recordingHandler) OnMessage(c *Handle, text string) {
	h.mu.Lock()
	h.messages = append(h.messages, text)
	h.mu.Unlock()
}
func (h *recordingHandler) OnBinaryMessage(c *Handle, data []byte) {}
func (h *recordingHandler) OnTopicMessage(c *Handle, topic string, payload []byte, reqID uint32) {
	h.mu.Lock()
	h.topics = append(h.topics, topic)
	h.mu.Unlock()
}
func (h *recordingHandler) OnClose(c *Handle) {
	h.mu.Lock()
	h.closed++
	h.mu.Unlock()
}
func (h *recordingHandler) OnError(c *Handle, reason string) {}
func (h *recordingHandler) OnException(c *Handle, err error) {
	h.mu.Lock()
	h.errs = append(h.errs, err)
	h.mu.Unlock()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

// newTestFibers builds a real epoll-backed readFiber plus a PoolFiber
// sendFiber, both torn down on test cleanup.
func newTestFibers(t *testing.T) (*fiber.NioFiber, *fiber.PoolFiber) {
	t.Helper()
	r, err := reactor.NewReactor()
	if err != nil {
		t.Fatalf("reactor.NewReactor: %v", err)
	}
	readFiber := fiber.NewNioFiber(r, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go readFiber.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-readFiber.Done()
	})

	ex := fiber.NewExecutor(2)
	t.Cleanup(ex.Close)
	sendFiber := fiber.NewPoolFiber(ex, nil)
	return readFiber, sendFiber
}

// acceptOneHandshake accepts a single connection on ln, drives the
// server side of the RFC 6455 upgrade, and hands the live conn plus any
// over-read bytes to fn for the test to keep talking on.
func acceptOneHandshake(t *testing.T, ln net.Listener, fn func(conn net.Conn, br *bufio.Reader)) {
	t.Helper()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		br := bufio.NewReader(conn)
		respHdr, _, _, err := wire.ParseUpgradeRequest(br)
		if err != nil {
			conn.Close()
			return
		}
		if err := wire.WriteUpgradeResponse(conn, respHdr); err != nil {
			conn.Close()
			return
		}
		fn(conn, br)
	}()
}

func listenLocal(t *testing.T) (net.Listener, string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return ln, host, port
}

func TestClientOpenHandshakeAndEcho(t *testing.T) {
	ln, host, port := listenLocal(t)
	t.Cleanup(func() { ln.Close() })

	acceptOneHandshake(t, ln, func(conn net.Conn, br *bufio.Reader) {
		defer conn.Close()
		dec := wire.NewDecoder(1<<20, true)
		enc := wire.NewEncoder(false, nil)
		buf := make([]byte, 512)
		for {
			if n := br.Buffered(); n > 0 {
				b := make([]byte, n)
				br.Read(b)
				dec.Feed(b)
			} else {
				n, err := conn.Read(buf)
				if err != nil {
					return
				}
				dec.Feed(buf[:n])
			}
			for {
				frame, ok, err := dec.TryDecode()
				if err != nil || !ok {
					break
				}
				if frame.Opcode == wire.OpText {
					reply, _ := enc.Encode(wire.Frame{Fin: true, Opcode: wire.OpText, Payload: append([]byte("echo:"), frame.Payload...)})
					conn.Write(reply)
				}
				if frame.Opcode == wire.OpClose {
					return
				}
			}
		}
	})

	readFiber, sendFiber := newTestFibers(t)
	h := &recordingHandler{}
	c := Open(context.Background(), host, port, "/chat", readFiber, sendFiber, DefaultConfig(), h)
	t.Cleanup(c.Stop)

	waitFor(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.opened == 1
	})
	if c.State() != StateOpen {
		t.Fatalf("State() = %v, want Open", c.State())
	}

	if err := c.Send("hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitFor(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.messages) == 1
	})
	h.mu.Lock()
	got := h.messages[0]
	h.mu.Unlock()
	if got != "echo:hello" {
		t.Fatalf("message = %q, want %q", got, "echo:hello")
	}
}

func TestClientPublishEnvelopeRoundTrip(t *testing.T) {
	ln, host, port := listenLocal(t)
	t.Cleanup(func() { ln.Close() })

	received := make(chan wssession.Envelope, 1)
	acceptOneHandshake(t, ln, func(conn net.Conn, br *bufio.Reader) {
		defer conn.Close()
		dec := wire.NewDecoder(1<<20, true)
		buf := make([]byte, 512)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			dec.Feed(buf[:n])
			for {
				frame, ok, err := dec.TryDecode()
				if err != nil || !ok {
					break
				}
				if frame.Opcode == wire.OpBinary {
					env, err := wssession.DecodeEnvelope(frame.Payload)
					if err == nil {
						received <- env
					}
				}
			}
		}
	})

	readFiber, sendFiber := newTestFibers(t)
	h := &recordingHandler{}
	c := Open(context.Background(), host, port, "/chat", readFiber, sendFiber, DefaultConfig(), h)
	t.Cleanup(c.Stop)

	waitFor(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.opened == 1
	})

	if err := c.Publish("room.general", []byte("payload-bytes")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case env := <-received:
		if env.Kind != wssession.EnvPublish || env.Topic != "room.general" || string(env.Payload) != "payload-bytes" {
			t.Fatalf("envelope = %+v", env)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received published envelope")
	}
}

func TestClientDialFailureReportsException(t *testing.T) {
	ln, host, port := listenLocal(t)
	ln.Close() // nothing listening: dial must fail

	readFiber, sendFiber := newTestFibers(t)
	h := &recordingHandler{}
	cfg := DefaultConfig()
	cfg.ConnectTimeout = 500 * time.Millisecond
	c := Open(context.Background(), host, port, "/chat", readFiber, sendFiber, cfg, h)
	t.Cleanup(c.Stop)

	waitFor(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.errs) > 0
	})
	if c.State() != Closed {
		t.Fatalf("State() = %v, want Closed", c.State())
	}
}
