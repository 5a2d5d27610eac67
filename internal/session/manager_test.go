package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/armaxri/termiHub-sub001/internal/connection"
)

// fakeConn is a minimal connection.ConnectionType test double whose
// output channel the test controls directly.
type fakeConn struct {
	mu        sync.Mutex
	connected bool
	written   []byte
	out       chan []byte
	exitCode  *int
	title     string
}

func newFakeConn() *fakeConn { return &fakeConn{out: make(chan []byte, 16)} }

func (f *fakeConn) Metadata() connection.Metadata {
	return connection.Metadata{TypeID: "fake", DisplayName: "Fake"}
}
func (f *fakeConn) Capabilities() connection.Capabilities { return connection.Capabilities{Resize: true} }
func (f *fakeConn) Connect(ctx context.Context, settings any) error {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}
func (f *fakeConn) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connected {
		f.connected = false
		close(f.out)
	}
	return nil
}
func (f *fakeConn) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}
func (f *fakeConn) Write(data []byte) error {
	f.mu.Lock()
	f.written = append(f.written, data...)
	f.mu.Unlock()
	return nil
}
func (f *fakeConn) Resize(cols, rows int) error { return nil }
func (f *fakeConn) SubscribeOutput() <-chan []byte { return f.out }
func (f *fakeConn) ExitCode() *int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exitCode
}
func (f *fakeConn) Title() string { return f.title }

func newTestManager(t *testing.T, conn connection.ConnectionType) (*Manager, *connection.Registry) {
	t.Helper()
	reg := connection.NewRegistry()
	reg.Register("fake", func() connection.ConnectionType { return conn })
	return NewManager(reg, nil), reg
}

func TestManagerCreateWriteObservedByConnection(t *testing.T) {
	conn := newFakeConn()
	conn.title = "Fake: x"
	m, _ := newTestManager(t, conn)

	info, err := m.Create(context.Background(), CreateRequest{TypeID: "fake"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := m.Input(info.SessionID, []byte("ls\n")); err != nil {
		t.Fatalf("Input: %v", err)
	}

	conn.mu.Lock()
	written := string(conn.written)
	conn.mu.Unlock()
	if written != "ls\n" {
		t.Errorf("written = %q, want ls\\n", written)
	}
}

func TestManagerMaxSessionsRejectsOverflow(t *testing.T) {
	reg := connection.NewRegistry()
	reg.Register("fake", func() connection.ConnectionType { return newFakeConn() })
	m := NewManager(reg, nil)

	for i := 0; i < MaxSessions; i++ {
		if _, err := m.Create(context.Background(), CreateRequest{TypeID: "fake"}); err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
	}
	if _, err := m.Create(context.Background(), CreateRequest{TypeID: "fake"}); err == nil {
		t.Fatal("expected the 51st Create to fail")
	}
}

func TestManagerAttachReceivesCoalescedOutputAndExit(t *testing.T) {
	conn := newFakeConn()
	m, _ := newTestManager(t, conn)

	info, err := m.Create(context.Background(), CreateRequest{TypeID: "fake"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	events, err := m.Attach(info.SessionID)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	conn.out <- []byte("hello")

	select {
	case ev := <-events:
		if ev.Kind != EventOutput || string(ev.Data) != "hello" {
			t.Errorf("event = %+v, want Output hello", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for output event")
	}

	code := 3
	conn.mu.Lock()
	conn.exitCode = &code
	conn.mu.Unlock()
	conn.Disconnect()

	select {
	case ev := <-events:
		if ev.Kind != EventExit || ev.ExitCode == nil || *ev.ExitCode != 3 {
			t.Errorf("exit event = %+v, want Exit code 3", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for exit event")
	}

	if _, err := m.lookup(info.SessionID); err == nil {
		t.Error("session should be removed after exit")
	}
}

func TestManagerScreenClearGatingEmitsSingleEvent(t *testing.T) {
	conn := newFakeConn()
	m, _ := newTestManager(t, conn)

	req := CreateRequest{TypeID: "fake", Settings: nil}
	// extractInitialCommand only recognizes *config.LocalSettings /
	// *config.SSHSettings, so drive the gate directly via a manual
	// session + runOutputReader call to test the gating phase in
	// isolation from the registry's settings typing.
	_ = req
	s := &session{id: "s1", conn: conn}
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	events := make(chan Event, 8)
	s.consumer = events
	s.attached = true

	go m.runOutputReader(s, "welcome-script\n")

	conn.out <- []byte("welcome\n")
	conn.out <- []byte("\x1b[H\x1b[2Jprompt$ ")

	select {
	case ev := <-events:
		want := "welcome\n\x1b[H\x1b[2Jprompt$ "
		if ev.Kind != EventOutput || string(ev.Data) != want {
			t.Errorf("gated event data = %q, want %q", ev.Data, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for gated event")
	}

	conn.Disconnect()
}
