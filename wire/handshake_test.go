package wire

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestServerHandshakeRoundTrip(t *testing.T) {
	req := "GET /topics/chat HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"

	respHdr, reqHdr, path, err := ParseUpgradeRequest(bufio.NewReader(strings.NewReader(req)))
	if err != nil {
		t.Fatalf("ParseUpgradeRequest: %v", err)
	}
	if path != "/topics/chat" {
		t.Fatalf("path = %q", path)
	}
	if respHdr.Get("Sec-WebSocket-Accept") != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Fatalf("accept key = %q", respHdr.Get("Sec-WebSocket-Accept"))
	}
	if reqHdr.Get("Host") != "example.com" {
		t.Fatalf("reqHdr Host = %q, want example.com", reqHdr.Get("Host"))
	}

	var buf bytes.Buffer
	if err := WriteUpgradeResponse(&buf, respHdr); err != nil {
		t.Fatalf("WriteUpgradeResponse: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "HTTP/1.1 101 Switching Protocols\r\n") {
		t.Fatalf("response = %q", buf.String())
	}
}

func TestServerHandshakeRejectsBadVersion(t *testing.T) {
	req := "GET /chat HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 8\r\n\r\n"
	_, _, _, err := ParseUpgradeRequest(bufio.NewReader(strings.NewReader(req)))
	if err != ErrBadWebSocketVersion {
		t.Fatalf("err = %v, want ErrBadWebSocketVersion", err)
	}
}

func TestServerHandshakeRejectsNonGetMethod(t *testing.T) {
	req := "POST /chat HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"Content-Length: 0\r\n\r\n"
	_, _, _, err := ParseUpgradeRequest(bufio.NewReader(strings.NewReader(req)))
	if err != ErrInvalidUpgradeHeaders {
		t.Fatalf("err = %v, want ErrInvalidUpgradeHeaders", err)
	}
}

func TestServerHandshakeRejectsMalformedKey(t *testing.T) {
	req := "GET /chat HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dG9vc2hvcnQ=\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
	_, _, _, err := ParseUpgradeRequest(bufio.NewReader(strings.NewReader(req)))
	if err != ErrInvalidWebSocketKey {
		t.Fatalf("err = %v, want ErrInvalidWebSocketKey", err)
	}
}

func TestClientServerHandshakeRoundTrip(t *testing.T) {
	var reqBuf bytes.Buffer
	key, err := BuildUpgradeRequest(&reqBuf, "example.com", "/chat", nil)
	if err != nil {
		t.Fatalf("BuildUpgradeRequest: %v", err)
	}

	respHdr, _, _, err := ParseUpgradeRequest(bufio.NewReader(&reqBuf))
	if err != nil {
		t.Fatalf("ParseUpgradeRequest: %v", err)
	}

	var respBuf bytes.Buffer
	if err := WriteUpgradeResponse(&respBuf, respHdr); err != nil {
		t.Fatalf("WriteUpgradeResponse: %v", err)
	}

	if err := ParseUpgradeResponse(bufio.NewReader(&respBuf), key); err != nil {
		t.Fatalf("ParseUpgradeResponse: %v", err)
	}
}
