// File: wssession/envelope.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Envelope is the application-level framing carried inside a WebSocket
// binary frame's payload: a topic name plus a payload, optionally
// tagged with a request ID for reply correlation. This is the wire
// shape of JetlangStreamSession's publish(topic, msg) and
// reply(reqId, replyTopic, replyMsg) calls, made concrete since the
// Java original leaned on a pluggable Java-object serializer this
// system does not carry over.
package wssession

import (
	"encoding/binary"
	"fmt"
)

// EnvelopeKind tags what an Envelope carries.
type EnvelopeKind byte

const (
	EnvPublish     EnvelopeKind = 1
	EnvReply       EnvelopeKind = 2
	EnvSubscribe   EnvelopeKind = 3
	EnvUnsubscribe EnvelopeKind = 4
)

// Envelope is the decoded application-level unit riding inside one
// WebSocket message.
type Envelope struct {
	Kind    EnvelopeKind
	ReqID   uint32 // meaningful only when Kind == EnvReply
	Topic   string
	Payload []byte
}

const envelopeHeaderLen = 1 + 4 + 2

// EncodeEnvelope serializes e as: kind(1) reqID(4) topicLen(2) topic payload.
func EncodeEnvelope(e Envelope) []byte {
	buf := make([]byte, envelopeHeaderLen+len(e.Topic)+len(e.Payload))
	buf[0] = byte(e.Kind)
	binary.BigEndian.PutUint32(buf[1:5], e.ReqID)
	binary.BigEndian.PutUint16(buf[5:7], uint16(len(e.Topic)))
	copy(buf[7:], e.Topic)
	copy(buf[7+len(e.Topic):], e.Payload)
	return buf
}

// DecodeEnvelope parses the wire form EncodeEnvelope produces.
func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) < envelopeHeaderLen {
		return Envelope{}, fmt.Errorf("wssession: envelope too short")
	}
	kind := EnvelopeKind(b[0])
	reqID := binary.BigEndian.Uint32(b[1:5])
	topicLen := int(binary.BigEndian.Uint16(b[5:7]))
	if len(b) < envelopeHeaderLen+topicLen {
		return Envelope{}, fmt.Errorf("wssession: envelope topic truncated")
	}
	topic := string(b[envelopeHeaderLen : envelopeHeaderLen+topicLen])
	payload := b[envelopeHeaderLen+topicLen:]
	return Envelope{Kind: kind, ReqID: reqID, Topic: topic, Payload: payload}, nil
}

// HeartbeatByte is the legacy single-byte heartbeat marker for sessions
// that negotiate a raw byte stream rather than envelope framing,
// grounded on JetlangStreamSession.write(MsgTypes.Heartbeat).
const HeartbeatByte byte = 0
