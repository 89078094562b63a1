// File: wssession/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package wssession is the server-side logical presence above a
// WebSocket connection: identity, subscription set, state machine,
// heartbeat, and the request/reply and logout extensions carried over
// from the Java original this system was distilled from.
package wssession
