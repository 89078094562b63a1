package wire

import (
	"bytes"
	"testing"
)

func TestAssemblerSingleFrameMessage(t *testing.T) {
	enc := NewEncoder(false, nil)
	a := NewAssembler(0, false)
	raw, _ := enc.Encode(Frame{Fin: true, Opcode: OpText, Payload: []byte("hi")})
	a.Feed(raw)

	msg, ok, err := a.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if msg.Kind != KindText || string(msg.Payload) != "hi" {
		t.Fatalf("msg = %+v", msg)
	}
}

func TestAssemblerReassemblesFragments(t *testing.T) {
	enc := NewEncoder(false, nil)
	a := NewAssembler(0, false)

	f1, _ := enc.Encode(Frame{Fin: false, Opcode: OpBinary, Payload: []byte("ab")})
	f2, _ := enc.Encode(Frame{Fin: false, Opcode: OpContinuation, Payload: []byte("cd")})
	f3, _ := enc.Encode(Frame{Fin: true, Opcode: OpContinuation, Payload: []byte("ef")})
	a.Feed(f1)
	if _, ok, err := a.Next(); ok || err != nil {
		t.Fatalf("unexpected ready message after first fragment: ok=%v err=%v", ok, err)
	}
	a.Feed(f2)
	if _, ok, err := a.Next(); ok || err != nil {
		t.Fatalf("unexpected ready message after second fragment: ok=%v err=%v", ok, err)
	}
	a.Feed(f3)
	msg, ok, err := a.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if msg.Kind != KindBinary || !bytes.Equal(msg.Payload, []byte("abcdef")) {
		t.Fatalf("msg = %+v", msg)
	}
}

func TestAssemblerInterleavesControlFrameDuringFragmentation(t *testing.T) {
	enc := NewEncoder(false, nil)
	a := NewAssembler(0, false)

	f1, _ := enc.Encode(Frame{Fin: false, Opcode: OpText, Payload: []byte("part1")})
	ping, _ := enc.Encode(Frame{Fin: true, Opcode: OpPing, Payload: []byte("keepalive")})
	f2, _ := enc.Encode(Frame{Fin: true, Opcode: OpContinuation, Payload: []byte("part2")})

	a.Feed(f1)
	a.Feed(ping)
	a.Feed(f2)

	msg1, ok, err := a.Next()
	if err != nil || !ok || msg1.Kind != KindPing {
		t.Fatalf("expected ping first, got msg=%+v ok=%v err=%v", msg1, ok, err)
	}
	msg2, ok, err := a.Next()
	if err != nil || !ok || msg2.Kind != KindText || string(msg2.Payload) != "part1part2" {
		t.Fatalf("expected reassembled text second, got msg=%+v ok=%v err=%v", msg2, ok, err)
	}
}

func TestAssemblerRejectsInvalidUTF8(t *testing.T) {
	enc := NewEncoder(false, nil)
	a := NewAssembler(0, false)
	raw, _ := enc.Encode(Frame{Fin: true, Opcode: OpText, Payload: []byte{0xff, 0xfe}})
	a.Feed(raw)
	_, _, err := a.Next()
	pe, ok := err.(*ProtocolError)
	if !ok || pe.Code != CloseInvalidPayload {
		t.Fatalf("err = %v, want ProtocolError{CloseInvalidPayload}", err)
	}
}

func TestAssemblerParsesCloseCode(t *testing.T) {
	enc := NewEncoder(false, nil)
	a := NewAssembler(0, false)
	payload := []byte{0x03, 0xEA} // 1002
	payload = append(payload, []byte("bye")...)
	raw, _ := enc.Encode(Frame{Fin: true, Opcode: OpClose, Payload: payload})
	a.Feed(raw)

	msg, ok, err := a.Next()
	if err != nil || !ok || msg.Kind != KindClose {
		t.Fatalf("Next: msg=%+v ok=%v err=%v", msg, ok, err)
	}
	if msg.CloseCode != CloseProtocolError || string(msg.Payload) != "bye" {
		t.Fatalf("msg = %+v", msg)
	}
}
