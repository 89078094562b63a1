// File: wsclient/state.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// State mirrors wssession.State's shape but from the dialing side:
// Connecting takes the place of wssession's AwaitingConnect, since the
// client owns the TCP connect step the server never performs.
package wsclient

import "fmt"

type State int32

const (
	NotConnected State = iota
	Connecting
	Handshaking
	StateOpen
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case NotConnected:
		return "NotConnected"
	case Connecting:
		return "Connecting"
	case Handshaking:
		return "Handshaking"
	case StateOpen:
		return "Open"
	case Closing:
		return "Closing"
	case Closed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Closed maps back to Connecting because one Handle is reused across
// automatic reconnect attempts: Closed here means "this TCP connection
// ended," not "this Handle may never dial again" (that is Handle.Stop's
// job, tracked separately).
var validTransitions = map[State][]State{
	NotConnected: {Connecting},
	Connecting:   {Handshaking, Closed},
	Handshaking:  {StateOpen, Closed},
	StateOpen:    {Closing, Closed},
	Closing:      {Closed},
	Closed:       {Connecting},
}

func transition(from, to State) bool {
	if to == Closed {
		return from != Closed
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
