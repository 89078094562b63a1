// File: pubsub/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package pubsub is the session-topic registry: which sessions are
// subscribed to which topic, and the reverse index needed to clean up a
// session's subscriptions on disconnect. Topic matching is exact-name
// only; there is no wildcard hierarchy, unlike the MQTT-style topic
// trees this design borrows its locking shape from.
package pubsub
