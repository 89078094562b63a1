package wssession

import (
	"bytes"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jetwire/wsfabric/fiber"
	"github.com/jetwire/wsfabric/netio"
	"github.com/jetwire/wsfabric/pubsub"
)

type recordingHandler struct {
	mu       sync.Mutex
	opened   int
	closed   int
	errors   []string
	messages []string
}

func (h *recordingHandler) OnOpen(s *Session, headers http.Header) {
	h.mu.Lock()
	h.opened++
	h.mu.Unlock()
}
func (h *recordingHandler) OnMessage(s *Session, text string) {
	h.mu.Lock()
	h.messages = append(h.messages, text)
	h.mu.Unlock()
}
func (h *recordingHandler) OnBinaryMessage(s *Session, data []byte) {}
func (h *recordingHandler) OnClose(s *Session) {
	h.mu.Lock()
	h.closed++
	h.mu.Unlock()
}
func (h *recordingHandler) OnError(s *Session, reason string) {
	h.mu.Lock()
	h.errors = append(h.errors, reason)
	h.mu.Unlock()
}
func (h *recordingHandler) OnException(s *Session, err error) {}

func newTestSession(t *testing.T, out *bytes.Buffer) (*Session, *fiber.Executor) {
	t.Helper()
	ex := fiber.NewExecutor(2)
	t.Cleanup(ex.Close)
	pf := fiber.NewPoolFiber(ex, nil)
	var mu sync.Mutex
	w := netio.NewWriter(func(b []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return out.Write(b)
	}, func(bool) error { return nil }, 0)
	return NewSession("sess-1", w, pf, pubsub.NewRegistry(), nil, nil), ex
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestOpenTransitionsAndFiresOnce(t *testing.T) {
	var out bytes.Buffer
	h := &recordingHandler{}
	s, _ := newTestSession(t, &out)
	s.handler = h

	s.Open(nil)
	s.Open(nil) // second call must not re-fire since Handshaking->Open already consumed

	waitFor(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.opened >= 1
	})
	time.Sleep(10 * time.Millisecond)
	h.mu.Lock()
	opened := h.opened
	h.mu.Unlock()
	if opened != 1 {
		t.Fatalf("OnOpen fired %d times, want 1", opened)
	}
	if s.State() != Open {
		t.Fatalf("State() = %v, want Open", s.State())
	}
}

func TestCloseFiresOnClosExactlyOnce(t *testing.T) {
	var out bytes.Buffer
	h := &recordingHandler{}
	s, _ := newTestSession(t, &out)
	s.handler = h
	s.Open(nil)

	s.Close()
	s.Close()
	s.Close()

	waitFor(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.closed == 1
	})
	time.Sleep(20 * time.Millisecond)
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed != 1 {
		t.Fatalf("OnClose fired %d times, want 1", closed)
	}
	if s.State() != Closed {
		t.Fatalf("State() = %v, want Closed", s.State())
	}
}

func TestHeartbeatStopIsIdempotent(t *testing.T) {
	var out bytes.Buffer
	s, _ := newTestSession(t, &out)
	s.Open(nil)
	s.StartHeartbeat(5 * time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	s.StopHeartbeat()
	s.StopHeartbeat()
	s.StopHeartbeat()

	out.Reset()
	time.Sleep(30 * time.Millisecond)
	if out.Len() != 0 {
		t.Fatalf("heartbeat kept firing after stop: %d bytes written", out.Len())
	}
}

func TestSubscribePublishFanOut(t *testing.T) {
	registry := pubsub.NewRegistry()

	var outA, outB bytes.Buffer
	exA := fiber.NewExecutor(1)
	exB := fiber.NewExecutor(1)
	t.Cleanup(exA.Close)
	t.Cleanup(exB.Close)

	a := NewSession("a", netio.NewWriter(func(b []byte) (int, error) { return outA.Write(b) }, func(bool) error { return nil }, 0),
		fiber.NewPoolFiber(exA, nil), registry, nil, nil)
	b := NewSession("b", netio.NewWriter(func(b []byte) (int, error) { return outB.Write(b) }, func(bool) error { return nil }, 0),
		fiber.NewPoolFiber(exB, nil), registry, nil, nil)
	a.Open(nil)
	b.Open(nil)

	a.Subscribe("t")
	b.Subscribe("t")

	registry.Broadcast([]byte("m"), false)

	waitFor(t, func() bool { return outA.Len() > 0 && outB.Len() > 0 })

	a.Unsubscribe("t")
	outA.Reset()
	outB.Reset()

	registry.Broadcast([]byte("m2"), false)
	waitFor(t, func() bool { return outB.Len() > 0 })
	time.Sleep(10 * time.Millisecond)
	if outA.Len() != 0 {
		t.Fatalf("unsubscribed session A received %d bytes, want 0", outA.Len())
	}
}

func TestLogoutTearsDownSubscriptionsWithoutClosing(t *testing.T) {
	var out bytes.Buffer
	registry := pubsub.NewRegistry()
	ex := fiber.NewExecutor(1)
	t.Cleanup(ex.Close)
	s := NewSession("s", netio.NewWriter(func(b []byte) (int, error) { return out.Write(b) }, func(bool) error { return nil }, 0),
		fiber.NewPoolFiber(ex, nil), registry, nil, nil)
	s.Open(nil)
	s.Subscribe("t")
	s.StartHeartbeat(5 * time.Millisecond)

	s.Logout()

	if !s.LoggedOut() {
		t.Fatal("LoggedOut() = false after Logout")
	}
	if s.State() != Open {
		t.Fatalf("State() = %v, want Open (Logout must not close the connection)", s.State())
	}
	if got := s.Subscriptions(); len(got) != 0 {
		t.Fatalf("Subscriptions() = %v, want empty after Logout", got)
	}
}
