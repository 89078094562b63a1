// File: wssession/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session is the server-side logical presence above one connection,
// grounded on JetlangStreamSession: every outbound write is posted
// through the session's send fiber so producers on other goroutines
// never race the bytes actually hitting the wire. State transitions are
// applied under the session mutex on the calling goroutine.
package wssession

import (
	"encoding/binary"
	"net/http"
	"sync"
	"time"

	"github.com/jetwire/wsfabric/control"
	"github.com/jetwire/wsfabric/fiber"
	"github.com/jetwire/wsfabric/netio"
	"github.com/jetwire/wsfabric/pubsub"
	"github.com/jetwire/wsfabric/wire"
)

// Handler receives session lifecycle and message callbacks, always in
// posting order on the session's send fiber.
type Handler interface {
	OnOpen(s *Session, headers http.Header)
	OnMessage(s *Session, text string)
	OnBinaryMessage(s *Session, data []byte)
	OnClose(s *Session)
	OnError(s *Session, reason string)
	OnException(s *Session, err error)
}

// Session is a logical presence above a WebSocket connection.
type Session struct {
	id        string
	writer    *netio.Writer
	enc       *wire.Encoder
	sendFiber *fiber.PoolFiber
	registry  *pubsub.Registry
	handler   Handler
	logger    control.Logger

	mu            sync.Mutex
	state         State
	subscriptions map[string]struct{}
	loggedOut     bool
	hbStop        fiber.Disposable
	idleTimer     fiber.Disposable
	closeOnce     sync.Once
}

// NewSession constructs a Session bound to writer and sendFiber.
// registry may be nil for sessions that never participate in pub/sub.
func NewSession(id string, writer *netio.Writer, sendFiber *fiber.PoolFiber, registry *pubsub.Registry, handler Handler, logger control.Logger) *Session {
	if logger == nil {
		logger = control.Default()
	}
	return &Session{
		id:            id,
		writer:        writer,
		enc:           wire.NewEncoder(false, nil),
		sendFiber:     sendFiber,
		registry:      registry,
		handler:       handler,
		logger:        logger,
		state:         Handshaking,
		subscriptions: make(map[string]struct{}),
	}
}

// ID satisfies pubsub.Publisher.
func (s *Session) ID() string { return s.id }

// State reports the session's current state machine position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !transition(s.state, to) {
		return false
	}
	s.state = to
	return true
}

// Open transitions Handshaking -> Open and fires OnOpen once.
func (s *Session) Open(headers http.Header) {
	if !s.setState(Open) {
		return
	}
	if err := s.sendFiber.Execute(func() {
		if s.handler != nil {
			s.handler.OnOpen(s, headers)
		}
	}); err != nil {
		s.logger.Printf("wssession: OnOpen dispatch rejected for %s: %v", s.id, err)
	}
}

// Publish enqueues a topic-tagged binary frame on the send fiber.
func (s *Session) Publish(topic string, payload []byte) error {
	return s.sendFiber.Execute(func() {
		env := EncodeEnvelope(Envelope{Kind: EnvPublish, Topic: topic, Payload: payload})
		s.writeFrameOrFail(wire.OpBinary, env)
	})
}

// Reply enqueues a request/reply-correlated frame on the send fiber,
// grounded on JetlangStreamSession.reply(reqId, replyTopic, replyMsg).
func (s *Session) Reply(reqID uint32, topic string, payload []byte) error {
	return s.sendFiber.Execute(func() {
		env := EncodeEnvelope(Envelope{Kind: EnvReply, ReqID: reqID, Topic: topic, Payload: payload})
		s.writeFrameOrFail(wire.OpBinary, env)
	})
}

// DispatchText posts an OnMessage callback for a decoded text message.
func (s *Session) DispatchText(text string) {
	_ = s.sendFiber.Execute(func() {
		if s.handler != nil {
			s.handler.OnMessage(s, text)
		}
	})
}

// DispatchBinary posts an OnBinaryMessage callback for a decoded binary
// message that was not an Envelope (raw byte stream mode).
func (s *Session) DispatchBinary(data []byte) {
	_ = s.sendFiber.Execute(func() {
		if s.handler != nil {
			s.handler.OnBinaryMessage(s, data)
		}
	})
}

// Deliver satisfies pubsub.Publisher; binary is accepted for interface
// symmetry but every envelope travels inside a binary WS frame.
func (s *Session) Deliver(topic string, payload []byte, binary bool) error {
	return s.Publish(topic, payload)
}

// Subscribe adds topic to this session's subscription set and to the
// shared registry, keeping spec's invariant "t ∈ S.subs ⇔ S ∈ registry[t]".
func (s *Session) Subscribe(topic string) {
	s.mu.Lock()
	s.subscriptions[topic] = struct{}{}
	s.mu.Unlock()
	if s.registry != nil {
		s.registry.Subscribe(topic, s)
	}
}

// Unsubscribe removes topic from this session and the registry.
func (s *Session) Unsubscribe(topic string) {
	s.mu.Lock()
	delete(s.subscriptions, topic)
	s.mu.Unlock()
	if s.registry != nil {
		s.registry.Unsubscribe(topic, s.id)
	}
}

// Subscriptions returns a snapshot of subscribed topics.
func (s *Session) Subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.subscriptions))
	for t := range s.subscriptions {
		out = append(out, t)
	}
	return out
}

// Logout tears down subscriptions and the heartbeat without closing the
// underlying TCP connection, distinct from Close. Grounded on
// JetlangStreamSession.afterLogout.
func (s *Session) Logout() {
	s.mu.Lock()
	if s.loggedOut {
		s.mu.Unlock()
		return
	}
	s.loggedOut = true
	s.subscriptions = make(map[string]struct{})
	s.mu.Unlock()

	s.StopHeartbeat()
	if s.registry != nil {
		s.registry.UnsubscribeAll(s.id)
	}
}

// LoggedOut reports whether Logout has been called.
func (s *Session) LoggedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedOut
}

// SendClose begins a local close handshake: the writer moves to a
// draining-only state and a close frame is queued.
func (s *Session) SendClose(code int, reason string) {
	if !s.setState(Closing) {
		return
	}
	s.writer.BeginClose()
	_ = s.sendFiber.Execute(func() {
		s.writeFrameOrFail(wire.OpClose, closePayload(code, reason))
	})
}

// OnRemoteClose handles a peer-initiated close frame: echo the code,
// drain, and tear the session down.
func (s *Session) OnRemoteClose(code int, reason []byte) {
	if s.setState(Closing) {
		s.writer.BeginClose()
		_ = s.sendFiber.Execute(func() {
			s.writeFrameOrFail(wire.OpClose, closePayload(code, string(reason)))
		})
	}
	s.Close()
}

// Close tears the session down and fires OnClose exactly once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = Closed
		s.mu.Unlock()

		s.StopHeartbeat()
		s.stopIdleTimer()
		s.writer.Close()
		if s.registry != nil {
			s.registry.UnsubscribeAll(s.id)
		}
		if err := s.sendFiber.Execute(func() {
			if s.handler != nil {
				s.handler.OnClose(s)
			}
		}); err != nil {
			s.logger.Printf("wssession: OnClose dispatch rejected for %s: %v", s.id, err)
		}
	})
}

// Fail reports a protocol or transport error then closes the session.
func (s *Session) Fail(err error) {
	_ = s.sendFiber.Execute(func() {
		if s.handler != nil {
			if pe, ok := err.(*wire.ProtocolError); ok {
				s.handler.OnError(s, pe.Reason)
			} else {
				s.handler.OnException(s, err)
			}
		}
	})
	s.Close()
}

// writeFrameOrFail encodes payload as a single unfragmented frame of the
// given opcode and writes it, closing the session if encoding or the
// write fails. Close frames go on the writer's priority lane, which stays
// open after BeginClose.
func (s *Session) writeFrameOrFail(opcode wire.Opcode, payload []byte) {
	raw, err := s.enc.Encode(wire.Frame{Fin: true, Opcode: opcode, Payload: payload})
	if err != nil {
		s.logger.Printf("wssession: encode failed for %s: %v", s.id, err)
		s.Close()
		return
	}
	send := s.writer.Send
	if opcode == wire.OpClose {
		send = s.writer.SendPriority
	}
	res, err := send(raw)
	if err != nil || res.Kind == netio.Closed {
		if err != nil && !s.LoggedOut() {
			_ = s.sendFiber.Execute(func() {
				if s.handler != nil {
					s.handler.OnException(s, err)
				}
			})
		}
		s.Close()
	}
}

func closePayload(code int, reason string) []byte {
	buf := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(buf[:2], uint16(code))
	copy(buf[2:], reason)
	return buf
}

// ResetIdleTimer reschedules the idle-read timeout. Call on every
// successful read; timeout <= 0 disables it.
func (s *Session) ResetIdleTimer(timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idleTimer != nil {
		s.idleTimer.Dispose()
		s.idleTimer = nil
	}
	if timeout <= 0 {
		return
	}
	s.idleTimer = s.sendFiber.Schedule(func() {
		s.Close()
	}, timeout)
}

func (s *Session) stopIdleTimer() {
	s.mu.Lock()
	d := s.idleTimer
	s.idleTimer = nil
	s.mu.Unlock()
	if d != nil {
		d.Dispose()
	}
}
