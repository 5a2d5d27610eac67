package session

import "time"

// runOutputReader drains the session's connection output channel
// through the screen-clear gate (when an initial command is set) and
// then the steady-state coalescer, delivering Event values to the
// session's current consumer, until the output channel closes.
func (m *Manager) runOutputReader(s *session, initialCommand string) {
	out := s.conn.SubscribeOutput()

	if initialCommand != "" {
		go func() {
			time.Sleep(initialCommandDelay)
			if err := s.conn.Write([]byte(initialCommand)); err != nil {
				m.logger.Warn("session: write initial command failed", "session_id", s.id, "err", err)
			}
		}()
		var ok bool
		out, ok = m.gatePhase(s, out)
		if !ok {
			m.finish(s)
			return
		}
	}

	m.coalescePhase(s, out)
	m.finish(s)
}

// gatePhase accumulates chunks until the screen-clear sequence
// appears, ClearWaitTimeout elapses, or the channel closes; it
// emits the whole accumulation as one event. It returns the channel
// (so the caller can keep reading from it in the steady-state phase)
// and false if the channel closed during gating.
func (m *Manager) gatePhase(s *session, out <-chan []byte) (<-chan []byte, bool) {
	var buf []byte
	timeout := time.NewTimer(ClearWaitTimeout)
	defer timeout.Stop()

	for {
		select {
		case chunk, ok := <-out:
			if !ok {
				if len(buf) > 0 {
					s.deliver(Event{Kind: EventOutput, Data: buf})
				}
				return out, false
			}
			buf = append(buf, chunk...)
			if containsScreenClear(buf) {
				s.deliver(Event{Kind: EventOutput, Data: buf})
				return out, true
			}
		case <-timeout.C:
			if len(buf) > 0 {
				s.deliver(Event{Kind: EventOutput, Data: buf})
			}
			return out, true
		}
	}
}

// coalescePhase appends each arriving chunk to an OutputCoalescer,
// non-blockingly drains further already-buffered chunks while under
// capacity, then flushes as one event — collapsing many small PTY
// reads into a handful of UI events without adding idle latency.
func (m *Manager) coalescePhase(s *session, out <-chan []byte) {
	coalescer := NewOutputCoalescer(MaxCoalesceBytes)

	for chunk := range out {
		coalescer.Append(chunk)

	drain:
		for coalescer.BelowCapacity() {
			select {
			case more, ok := <-out:
				if !ok {
					break drain
				}
				coalescer.Append(more)
			default:
				break drain
			}
		}

		s.deliver(Event{Kind: EventOutput, Data: coalescer.Flush()})
	}
}

// finish runs the close-end cleanup: emit a terminal-exit event and
// remove the session entry.
func (m *Manager) finish(s *session) {
	code := s.conn.ExitCode()
	s.deliver(Event{Kind: EventExit, ExitCode: code})
	m.remove(s.id)
}
