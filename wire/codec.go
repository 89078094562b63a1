// File: wire/codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Decoder and Encoder adapt the teacher's byte-slice-oriented
// DecodeFrameFromBytes/EncodeFrameToBytes to an incremental, partial-read
// tolerant form: a non-blocking reader hands the Decoder whatever bytes
// happened to arrive on this readiness notification, which may be less
// than one whole frame.
package wire

import (
	"encoding/binary"
	"math/rand"
)

// Decoder accumulates bytes fed via Feed and yields complete raw frames via
// TryDecode. It is not safe for concurrent use; callers drive it from a
// single fiber.
type Decoder struct {
	buf         []byte
	maxPayload  int64
	requireMask bool
}

// NewDecoder builds a Decoder. requireMask is true on the server side
// (RFC 6455 requires client-to-server frames to be masked) and false on
// the client side (server-to-client frames must NOT be masked).
func NewDecoder(maxPayload int64, requireMask bool) *Decoder {
	if maxPayload <= 0 {
		maxPayload = MaxFramePayload
	}
	return &Decoder{maxPayload: maxPayload, requireMask: requireMask}
}

// Feed appends newly-read bytes to the decode buffer.
func (d *Decoder) Feed(b []byte) {
	d.buf = append(d.buf, b...)
}

// Pending reports how many unconsumed bytes are buffered.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

// TryDecode attempts to pull one complete frame off the front of the
// buffer. ok is false when more bytes are needed; err is non-nil only for
// a genuine protocol violation, never for "not enough data yet".
func (d *Decoder) TryDecode() (frame *Frame, ok bool, err error) {
	if len(d.buf) < 2 {
		return nil, false, nil
	}
	b0, b1 := d.buf[0], d.buf[1]

	if b0&0x70 != 0 {
		return nil, false, &ProtocolError{Code: CloseProtocolError, Reason: "reserved bits set"}
	}

	fin := b0&0x80 != 0
	opcode := Opcode(b0 & 0x0F)
	masked := b1&0x80 != 0
	length := int64(b1 & 0x7F)
	offset := 2

	if masked != d.requireMask {
		return nil, false, &ProtocolError{Code: CloseProtocolError, Reason: "unexpected frame masking"}
	}

	switch length {
	case 126:
		if len(d.buf) < offset+2 {
			return nil, false, nil
		}
		length = int64(binary.BigEndian.Uint16(d.buf[offset:]))
		offset += 2
	case 127:
		if len(d.buf) < offset+8 {
			return nil, false, nil
		}
		length = int64(binary.BigEndian.Uint64(d.buf[offset:]))
		offset += 8
	}

	if opcode.IsControl() && (length > 125 || !fin) {
		return nil, false, &ProtocolError{Code: CloseProtocolError, Reason: "invalid control frame"}
	}
	if length > d.maxPayload {
		return nil, false, &ProtocolError{Code: CloseMessageTooBig, Reason: "frame payload too large"}
	}

	var maskKey [4]byte
	if masked {
		if len(d.buf) < offset+4 {
			return nil, false, nil
		}
		copy(maskKey[:], d.buf[offset:offset+4])
		offset += 4
	}

	total := offset + int(length)
	if len(d.buf) < total {
		return nil, false, nil
	}

	payload := make([]byte, length)
	copy(payload, d.buf[offset:total])
	if masked {
		for i := range payload {
			payload[i] ^= maskKey[i%4]
		}
	}

	d.buf = d.buf[total:]

	return &Frame{Fin: fin, Opcode: opcode, Payload: payload}, true, nil
}

// Encoder serializes frames for the wire. mask is true on the client side
// (RFC 6455 requires client-to-server frames to be masked).
type Encoder struct {
	mask bool
	rng  *rand.Rand
}

// NewEncoder builds an Encoder. When rng is nil, the encoder gets its own
// source seeded with the constant 1, so every such encoder produces the
// same mask sequence.
func NewEncoder(mask bool, rng *rand.Rand) *Encoder {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Encoder{mask: mask, rng: rng}
}

// Encode serializes f into a new byte slice ready to write to the socket.
func (e *Encoder) Encode(f Frame) ([]byte, error) {
	if int64(len(f.Payload)) > MaxFramePayload {
		return nil, &ProtocolError{Code: CloseMessageTooBig, Reason: "outbound frame too large"}
	}
	b0 := byte(0)
	if f.Fin {
		b0 |= 0x80
	}
	b0 |= byte(f.Opcode) & 0x0F

	plen := len(f.Payload)
	var hdr []byte
	switch {
	case plen <= 125:
		hdr = []byte{b0, byte(plen)}
	case plen <= 0xFFFF:
		hdr = make([]byte, 4)
		hdr[0], hdr[1] = b0, 126
		binary.BigEndian.PutUint16(hdr[2:], uint16(plen))
	default:
		hdr = make([]byte, 10)
		hdr[0], hdr[1] = b0, 127
		binary.BigEndian.PutUint64(hdr[2:], uint64(plen))
	}

	var maskKey [4]byte
	if e.mask {
		hdr[1] |= 0x80
		binary.BigEndian.PutUint32(maskKey[:], e.rng.Uint32())
		hdr = append(hdr, maskKey[:]...)
	}

	out := make([]byte, len(hdr)+plen)
	copy(out, hdr)
	copy(out[len(hdr):], f.Payload)
	if e.mask {
		for i, c := range f.Payload {
			out[len(hdr)+i] = c ^ maskKey[i%4]
		}
	}
	return out, nil
}
