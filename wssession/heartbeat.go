// File: wssession/heartbeat.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// StartHeartbeat/StopHeartbeat mirror JetlangStreamSession.startHeartbeat
// and its hbStopper compare-and-set gate, adapted to fiber.Disposable's
// own idempotent Dispose.

package wssession

import (
	"time"

	"github.com/jetwire/wsfabric/wire"
)

// StartHeartbeat schedules a fixed-delay heartbeat write on the send
// fiber. interval <= 0 disables it (matches spec.md §4.H).
func (s *Session) StartHeartbeat(interval time.Duration) {
	if interval <= 0 {
		return
	}
	d := s.sendFiber.ScheduleWithFixedDelay(func() {
		s.mu.Lock()
		loggedOut := s.loggedOut
		open := s.state == Open
		s.mu.Unlock()
		if loggedOut || !open {
			return
		}
		s.writeFrameOrFail(wire.OpBinary, []byte{HeartbeatByte})
	}, interval, interval)

	s.mu.Lock()
	s.hbStop = d
	s.mu.Unlock()
}

// StopHeartbeat cancels the heartbeat timer. Idempotent: repeated calls
// dispatch cancel exactly once, per spec.md §8.
func (s *Session) StopHeartbeat() {
	s.mu.Lock()
	d := s.hbStop
	s.hbStop = nil
	s.mu.Unlock()
	if d != nil {
		d.Dispose()
	}
}
