// File: wsclient/handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package wsclient

// Handler receives lifecycle and message callbacks for one Handle. All
// methods run serialized on the Handle's sendFiber, never concurrently
// with each other.
type Handler interface {
	OnOpen(h *Handle)
	OnMessage(h *Handle, text string)
	// OnBinaryMessage fires for binary frames that do not parse as an
	// wssession.Envelope, i.e. a peer talking raw byte-stream framing.
	OnBinaryMessage(h *Handle, data []byte)
	// OnTopicMessage fires for binary frames that do parse as an
	// Envelope: a publish or reply the remote fabric routed to this
	// client's subscriptions.
	OnTopicMessage(h *Handle, topic string, payload []byte, reqID uint32)
	OnClose(h *Handle)
	OnError(h *Handle, reason string)
	OnException(h *Handle, err error)
}
