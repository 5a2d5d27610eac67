// Package session implements the Session Manager: it owns every live
// ConnectionType instance, multiplexes its output through a two-phase
// reader (screen-clear gating, then steady-state coalescing), and
// exposes a uniform create/attach/input/resize/close surface consumed
// by both the desktop CLI and the agent's JSON-RPC dispatcher.
package session

import (
	"sync"
	"time"

	"github.com/armaxri/termiHub-sub001/internal/connection"
)

// MaxSessions bounds the number of concurrently live sessions; the
// (MaxSessions+1)th Create fails with errs.SpawnFailed.
const MaxSessions = 50

// ClearWaitTimeout bounds how long the screen-clear gate accumulates
// output before flushing unconditionally.
const ClearWaitTimeout = 5 * time.Second

// MaxCoalesceBytes bounds the steady-state coalescer's pending buffer.
const MaxCoalesceBytes = 32 * 1024

// initialCommandDelay is how long the manager waits after subscribing
// to output before writing a session's initial command, so shell
// init (prompt, motd) completes first.
const initialCommandDelay = 200 * time.Millisecond

// EventKind distinguishes the three notifications an output reader
// emits toward a session's attached consumer.
type EventKind int

const (
	EventOutput EventKind = iota
	EventExit
	EventError
)

// Event is one unit of the UI-facing event stream: a coalesced output
// chunk, a terminal exit, or a non-fatal error surfaced alongside a
// still-alive session.
type Event struct {
	Kind     EventKind
	Data     []byte
	ExitCode *int
	Message  string
}

// Info is the caller-facing snapshot returned by Create and List.
type Info struct {
	SessionID string
	Title     string
	TypeID    string
	Status    string
	CreatedAt time.Time
	Attached  bool
}

// CreateRequest names the connection kind and its already-decoded
// settings (see config.Decode); Title overrides the connection's
// derived title when non-empty.
type CreateRequest struct {
	TypeID   string
	Settings any
	Title    string
}

// session is the manager's internal bookkeeping record for one live
// ConnectionType. The output reader owns consumer/consumerMu; every
// other field is set once at creation and read thereafter.
type session struct {
	id        string
	typeID    string
	title     string
	createdAt time.Time
	conn      connection.ConnectionType

	consumerMu sync.Mutex
	consumer   chan Event
	attached   bool
}
