package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/armaxri/termiHub-sub001/internal/config"
	"github.com/armaxri/termiHub-sub001/internal/connection"
	"github.com/armaxri/termiHub-sub001/internal/credential"
	"github.com/armaxri/termiHub-sub001/internal/errs"
)

// Manager owns every live session and serializes access to the
// session map behind a single mutex, held only long enough to read or
// mutate an entry; per-session operations then run outside the lock.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
	registry *connection.Registry
	logger   *slog.Logger
}

// NewManager returns a Manager whose Create calls build connections
// via registry.
func NewManager(registry *connection.Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: make(map[string]*session),
		registry: registry,
		logger:   logger,
	}
}

// Create builds a ConnectionType for req.TypeID, connects it, derives
// a title, and starts its output reader. It fails with
// errs.SpawnFailed once MaxSessions are already live.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (Info, error) {
	m.mu.Lock()
	if len(m.sessions) >= MaxSessions {
		m.mu.Unlock()
		return Info{}, errs.New(errs.SpawnFailed, fmt.Sprintf("at most %d concurrent sessions", MaxSessions))
	}
	m.mu.Unlock()

	conn, err := m.registry.New(req.TypeID)
	if err != nil {
		return Info{}, errs.Wrap(errs.InvalidConfig, "unknown connection type "+req.TypeID, err)
	}

	id := uuid.NewString()
	bindConnectionID(conn, id)

	if err := conn.Connect(ctx, req.Settings); err != nil {
		return Info{}, errs.Wrap(errs.SpawnFailed, "connect "+req.TypeID, err)
	}

	title := req.Title
	if title == "" {
		title = conn.Title()
	}

	s := &session{
		id:        id,
		typeID:    req.TypeID,
		title:     title,
		createdAt: time.Now(),
		conn:      conn,
	}

	m.mu.Lock()
	if len(m.sessions) >= MaxSessions {
		m.mu.Unlock()
		conn.Disconnect()
		return Info{}, errs.New(errs.SpawnFailed, fmt.Sprintf("at most %d concurrent sessions", MaxSessions))
	}
	m.sessions[s.id] = s
	m.mu.Unlock()

	initialCommand := extractInitialCommand(req.Settings)
	go m.runOutputReader(s, initialCommand)

	return m.info(s), nil
}

// Registry exposes the connection registry this manager builds
// sessions from, so the agent dispatcher can report session_types in
// initialize's capabilities without duplicating the registration list.
func (m *Manager) Registry() *connection.Registry {
	return m.registry
}

// List returns a snapshot of every live session.
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, m.info(s))
	}
	return out
}

func (m *Manager) info(s *session) Info {
	s.consumerMu.Lock()
	attached := s.attached
	s.consumerMu.Unlock()
	return Info{
		SessionID: s.id,
		Title:     s.title,
		TypeID:    s.typeID,
		Status:    "active",
		CreatedAt: s.createdAt,
		Attached:  attached,
	}
}

// Attach installs a new channel as the session's sole output consumer,
// replacing any previous subscriber, and returns it.
func (m *Manager) Attach(sessionID string) (<-chan Event, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	ch := make(chan Event, 64)
	s.consumerMu.Lock()
	s.consumer = ch
	s.attached = true
	s.consumerMu.Unlock()
	return ch, nil
}

// Detach releases the session's current consumer, if ch is still the
// one installed by the caller's earlier Attach; this stops deliver()
// from blocking on a channel nobody is draining anymore. Detaching is
// a no-op if another Attach has already replaced the subscription.
func (m *Manager) Detach(sessionID string, ch <-chan Event) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	s.consumerMu.Lock()
	if s.consumer == ch {
		s.consumer = nil
		s.attached = false
	}
	s.consumerMu.Unlock()
	return nil
}

// Input forwards data to the session's connection under a short-held
// lookup; the write itself happens outside the manager's lock.
func (m *Manager) Input(sessionID string, data []byte) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	if err := s.conn.Write(data); err != nil {
		return errs.Wrap(errs.WriteFailed, "session "+sessionID, err)
	}
	return nil
}

// Resize forwards a terminal resize to the session's connection.
func (m *Manager) Resize(sessionID string, cols, rows int) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	if err := s.conn.Resize(cols, rows); err != nil {
		return errs.Wrap(errs.ResizeFailed, "session "+sessionID, err)
	}
	return nil
}

// Close disconnects the session's connection. The output reader
// observes the resulting EOF, emits the final exit event and removes
// the session's entry, so Close itself does neither.
func (m *Manager) Close(sessionID string) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	return s.conn.Disconnect()
}

// Connection returns the live ConnectionType backing sessionID, so a
// caller (the agent dispatcher) can probe its optional Monitoring()/
// FileBrowser() capability accessors and register them under the
// session id.
func (m *Manager) Connection(sessionID string) (connection.ConnectionType, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return s.conn, nil
}

func (m *Manager) lookup(sessionID string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, errs.New(errs.NotFound, "session "+sessionID)
	}
	return s, nil
}

func (m *Manager) remove(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}

// deliver sends an event to the session's current consumer, if any,
// without blocking forever if the consumer channel is unbuffered-full
// and abandoned — the output channel is never dropped silently per
// §4.6, but a torn-down consumer must not wedge the reader either.
func (s *session) deliver(ev Event) {
	s.consumerMu.Lock()
	ch := s.consumer
	s.consumerMu.Unlock()
	if ch == nil {
		return
	}
	ch <- ev
}

// credentialBinder is implemented by SSHConnection: it needs both the
// connection id and a credential.Store to resolve a password/passphrase
// auth secret, so it gets bound before Connect rather than after.
type credentialBinder interface {
	SetCredentials(connectionID string, store credential.Store)
}

// connectionIDBinder is implemented by ConnectionType kinds whose
// Monitoring()/FileBrowser() accessors need a connection id but no
// credential lookup (Local, Docker).
type connectionIDBinder interface {
	SetConnectionID(id string)
}

// bindConnectionID assigns id to conn before Connect is called, so
// that by the time an optional Monitoring()/FileBrowser() accessor is
// probed, it reports the session id rather than "". Connections with
// neither binder (serial, telnet, remote proxy) are left alone.
func bindConnectionID(conn connection.ConnectionType, id string) {
	if c, ok := conn.(credentialBinder); ok {
		c.SetCredentials(id, credential.NullStore{})
		return
	}
	if c, ok := conn.(connectionIDBinder); ok {
		c.SetConnectionID(id)
	}
}

// extractInitialCommand reads the InitialCommand field present on the
// connection kinds that support one (Local, SSH); other settings
// types have none and start with no gating phase.
func extractInitialCommand(settings any) string {
	switch s := settings.(type) {
	case *config.LocalSettings:
		return s.InitialCommand
	case *config.SSHSettings:
		return s.InitialCommand
	default:
		return ""
	}
}
