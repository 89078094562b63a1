// File: wssession/state.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// State is modeled as a tagged variant dispatched by a single transition
// gate, not a type hierarchy, per the source's anonymous-inner-class
// states being folded into one place.

package wssession

import "fmt"

type State int32

const (
	NotConnected State = iota
	AwaitingConnect
	Handshaking
	Open
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case NotConnected:
		return "NotConnected"
	case AwaitingConnect:
		return "AwaitingConnect"
	case Handshaking:
		return "Handshaking"
	case Open:
		return "Open"
	case Closing:
		return "Closing"
	case Closed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// validTransitions enumerates every allowed (from, to) pair. Any→Closed
// is always legal and is checked separately in transition.
var validTransitions = map[State][]State{
	NotConnected:    {AwaitingConnect, Handshaking},
	AwaitingConnect: {Handshaking},
	Handshaking:     {Open},
	Open:            {Closing},
	Closing:         {Closed},
}

// transition reports whether moving from `from` to `to` is legal. Closed
// is reachable from any state (socket error or overflow can strike at
// any point).
func transition(from, to State) bool {
	if to == Closed {
		return true
	}
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
