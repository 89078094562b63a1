// File: wire/assembler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Assembler sits on top of a Decoder and turns a stream of raw frames into
// application messages: it reassembles fragmented text/binary messages,
// validates UTF-8 on text payloads, and passes control frames through
// untouched and immediately, exactly as spec'd for interleaved control
// frames arriving mid-fragmentation.
package wire

import "unicode/utf8"

// MessageKind classifies what an Assembler handed back.
type MessageKind int

const (
	KindText MessageKind = iota
	KindBinary
	KindPing
	KindPong
	KindClose
)

// Message is one fully reassembled application-level unit.
type Message struct {
	Kind      MessageKind
	Payload   []byte
	CloseCode int // valid only when Kind == KindClose
}

// Assembler reassembles fragmented frames into Messages.
type Assembler struct {
	dec *Decoder

	fragmenting bool
	fragOpcode  Opcode
	fragBuf     []byte
}

// NewAssembler builds an Assembler backed by a fresh Decoder.
func NewAssembler(maxPayload int64, requireMask bool) *Assembler {
	return &Assembler{dec: NewDecoder(maxPayload, requireMask)}
}

// Feed appends newly-read bytes for decoding.
func (a *Assembler) Feed(b []byte) {
	a.dec.Feed(b)
}

// Next pulls at most one ready Message out of the fed bytes. Callers loop
// on Next until ok is false to drain everything currently decodable from
// one readiness notification.
func (a *Assembler) Next() (msg *Message, ok bool, err error) {
	for {
		frame, got, err := a.dec.TryDecode()
		if err != nil {
			return nil, false, err
		}
		if !got {
			return nil, false, nil
		}

		switch frame.Opcode {
		case OpPing:
			return &Message{Kind: KindPing, Payload: frame.Payload}, true, nil

		case OpPong:
			return &Message{Kind: KindPong, Payload: frame.Payload}, true, nil

		case OpClose:
			code := CloseNoStatus
			var reason []byte
			if len(frame.Payload) >= 2 {
				code = int(frame.Payload[0])<<8 | int(frame.Payload[1])
				reason = frame.Payload[2:]
			}
			return &Message{Kind: KindClose, Payload: reason, CloseCode: code}, true, nil

		case OpText, OpBinary:
			if a.fragmenting {
				return nil, false, &ProtocolError{Code: CloseProtocolError, Reason: "new message started mid-fragment"}
			}
			if frame.Fin {
				if frame.Opcode == OpText && !utf8.Valid(frame.Payload) {
					return nil, false, &ProtocolError{Code: CloseInvalidPayload, Reason: "invalid UTF-8"}
				}
				return &Message{Kind: kindFor(frame.Opcode), Payload: frame.Payload}, true, nil
			}
			a.fragmenting = true
			a.fragOpcode = frame.Opcode
			a.fragBuf = append(a.fragBuf[:0], frame.Payload...)
			continue

		case OpContinuation:
			if !a.fragmenting {
				return nil, false, &ProtocolError{Code: CloseProtocolError, Reason: "continuation without preceding fragment"}
			}
			a.fragBuf = append(a.fragBuf, frame.Payload...)
			if !frame.Fin {
				continue
			}
			a.fragmenting = false
			opcode := a.fragOpcode
			payload := a.fragBuf
			a.fragBuf = nil
			if opcode == OpText && !utf8.Valid(payload) {
				return nil, false, &ProtocolError{Code: CloseInvalidPayload, Reason: "invalid UTF-8"}
			}
			return &Message{Kind: kindFor(opcode), Payload: payload}, true, nil

		default:
			return nil, false, &ProtocolError{Code: CloseProtocolError, Reason: "unknown opcode"}
		}
	}
}

func kindFor(op Opcode) MessageKind {
	if op == OpText {
		return KindText
	}
	return KindBinary
}
