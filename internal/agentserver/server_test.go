package agentserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/armaxri/termiHub-sub001/internal/connection"
	"github.com/armaxri/termiHub-sub001/internal/jsonrpc"
	"github.com/armaxri/termiHub-sub001/internal/session"
)

// fakeConn is a minimal connection.ConnectionType double, registered
// under the real "local" type_id so config.Decode's schema validation
// (which only knows the six real kinds) accepts session.create params
// without spawning an actual PTY.
type fakeConn struct {
	mu        sync.Mutex
	connected bool
	written   []byte
	out       chan []byte
	exitCode  *int
}

func newFakeConn() *fakeConn { return &fakeConn{out: make(chan []byte, 16)} }

func (f *fakeConn) Metadata() connection.Metadata {
	return connection.Metadata{TypeID: "local", DisplayName: "Local"}
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
func (f *fakeConn) Resize(cols, rows int) error          { return nil }
func (f *fakeConn) SubscribeOutput() <-chan []byte       { return f.out }
func (f *fakeConn) ExitCode() *int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exitCode
}
func (f *fakeConn) Title() string { return "Local: fake" }

// testClient wraps the caller side of a Serve pipe: a jsonrpc Writer
// for requests and a Reader that the test drains from a background
// goroutine into channels keyed by kind.
type testClient struct {
	w             *jsonrpc.Writer
	responses     chan *jsonrpc.Message
	notifications chan *jsonrpc.Message
	nextID        int64
}

func newTestClient(t *testing.T, conn net.Conn) *testClient {
	t.Helper()
	tc := &testClient{
		w:             jsonrpc.NewWriter(conn),
		responses:     make(chan *jsonrpc.Message, 32),
		notifications: make(chan *jsonrpc.Message, 32),
	}
	r := jsonrpc.NewReader(conn)
	go func() {
		for {
			msg, err := r.ReadMessage()
			if err != nil {
				return
			}
			switch msg.Kind {
			case jsonrpc.KindResponse:
				tc.responses <- msg
			case jsonrpc.KindNotification:
				tc.notifications <- msg
			}
		}
	}()
	return tc
}

func (tc *testClient) call(t *testing.T, method string, params any) *jsonrpc.Message {
	t.Helper()
	tc.nextID++
	id := tc.nextID
	line, err := jsonrpc.EncodeRequest(id, method, params)
	if err != nil {
		t.Fatalf("EncodeRequest(%s): %v", method, err)
	}
	if err := tc.w.WriteLine(line); err != nil {
		t.Fatalf("WriteLine(%s): %v", method, err)
	}
	select {
	case msg := <-tc.responses:
		if msg.ID == nil || *msg.ID != id {
			t.Fatalf("response id = %v, want %d", msg.ID, id)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for response to %s", method)
		return nil
	}
}

func (tc *testClient) waitNotification(t *testing.T, method string) *jsonrpc.Message {
	t.Helper()
	select {
	case msg := <-tc.notifications:
		if msg.Method != method {
			t.Fatalf("notification method = %q, want %q", msg.Method, method)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for notification %s", method)
		return nil
	}
}

func startDispatcher(t *testing.T, d *Dispatcher) net.Conn {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { serverConn.Close(); clientConn.Close() })
	go d.Serve(context.Background(), serverConn)
	return clientConn
}

func newTestDispatcher(t *testing.T, conn connection.ConnectionType) *Dispatcher {
	t.Helper()
	reg := connection.NewDefaultRegistry()
	reg.Register("local", func() connection.ConnectionType { return conn })
	mgr := session.NewManager(reg, nil)
	return NewDispatcher(mgr, nil, nil, nil)
}

func TestDispatcherRejectsMethodsBeforeInitialize(t *testing.T) {
	d := newTestDispatcher(t, newFakeConn())
	clientConn := startDispatcher(t, d)
	tc := newTestClient(t, clientConn)

	resp := tc.call(t, "session.list", nil)
	if resp.Err == nil {
		t.Fatal("expected an error response before initialize")
	}
}

func TestDispatcherInitializeReportsCapabilities(t *testing.T) {
	d := newTestDispatcher(t, newFakeConn())
	clientConn := startDispatcher(t, d)
	tc := newTestClient(t, clientConn)

	resp := tc.call(t, "initialize", initializeParams{ProtocolVersion: ProtocolVersion, Client: "test", ClientVersion: "0.0.1"})
	if resp.Err != nil {
		t.Fatalf("initialize error: %+v", resp.Err)
	}
	var result initializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.ProtocolVersion != ProtocolVersion {
		t.Errorf("protocol_version = %q", result.ProtocolVersion)
	}
	if result.Capabilities.MaxSessions != session.MaxSessions {
		t.Errorf("max_sessions = %d, want %d", result.Capabilities.MaxSessions, session.MaxSessions)
	}
	found := false
	for _, id := range result.Capabilities.SessionTypes {
		if id == "local" {
			found = true
		}
	}
	if !found {
		t.Errorf("session_types = %v, want it to contain local", result.Capabilities.SessionTypes)
	}
}

func TestDispatcherSessionLifecycleOverJSONRPC(t *testing.T) {
	conn := newFakeConn()
	d := newTestDispatcher(t, conn)
	clientConn := startDispatcher(t, d)
	tc := newTestClient(t, clientConn)

	tc.call(t, "initialize", initializeParams{ProtocolVersion: ProtocolVersion, Client: "test", ClientVersion: "0.0.1"})

	createResp := tc.call(t, "session.create", sessionCreateParams{Type: "local", Config: json.RawMessage(`{}`)})
	if createResp.Err != nil {
		t.Fatalf("session.create error: %+v", createResp.Err)
	}
	var info sessionInfoResult
	if err := json.Unmarshal(createResp.Result, &info); err != nil {
		t.Fatalf("unmarshal session.create result: %v", err)
	}
	if info.SessionID == "" {
		t.Fatal("expected a non-empty session_id")
	}

	attachResp := tc.call(t, "session.attach", sessionIDParams{SessionID: info.SessionID})
	if attachResp.Err != nil {
		t.Fatalf("session.attach error: %+v", attachResp.Err)
	}

	inputResp := tc.call(t, "session.input", sessionInputParams{SessionID: info.SessionID, Data: base64.StdEncoding.EncodeToString([]byte("ls\n"))})
	if inputResp.Err != nil {
		t.Fatalf("session.input error: %+v", inputResp.Err)
	}
	conn.mu.Lock()
	written := string(conn.written)
	conn.mu.Unlock()
	if written != "ls\n" {
		t.Errorf("connection received %q, want ls\\n", written)
	}

	conn.out <- []byte("file1\n")
	notif := tc.waitNotification(t, "session.output")
	var out sessionOutputNotification
	if err := json.Unmarshal(notif.Params, &out); err != nil {
		t.Fatalf("unmarshal session.output: %v", err)
	}
	data, err := base64.StdEncoding.DecodeString(out.Data)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	if string(data) != "file1\n" {
		t.Errorf("session.output data = %q, want file1\\n", data)
	}

	code := 0
	conn.mu.Lock()
	conn.exitCode = &code
	conn.mu.Unlock()
	conn.Disconnect()

	exitNotif := tc.waitNotification(t, "session.exit")
	var exit sessionExitNotification
	if err := json.Unmarshal(exitNotif.Params, &exit); err != nil {
		t.Fatalf("unmarshal session.exit: %v", err)
	}
	if exit.ExitCode == nil || *exit.ExitCode != 0 {
		t.Errorf("exit code = %v, want 0", exit.ExitCode)
	}
}

func TestDispatcherUnknownMethodFails(t *testing.T) {
	d := newTestDispatcher(t, newFakeConn())
	clientConn := startDispatcher(t, d)
	tc := newTestClient(t, clientConn)

	tc.call(t, "initialize", initializeParams{ProtocolVersion: ProtocolVersion, Client: "test", ClientVersion: "0.0.1"})
	resp := tc.call(t, "not.a.method", nil)
	if resp.Err == nil {
		t.Fatal("expected an error for an unknown method")
	}
}

func TestDispatcherMonitoringAndFilesFailWithoutProviders(t *testing.T) {
	d := newTestDispatcher(t, newFakeConn())
	clientConn := startDispatcher(t, d)
	tc := newTestClient(t, clientConn)

	tc.call(t, "initialize", initializeParams{ProtocolVersion: ProtocolVersion, Client: "test", ClientVersion: "0.0.1"})

	if resp := tc.call(t, "monitoring.subscribe", monitoringSubscribeParams{Host: "self"}); resp.Err == nil {
		t.Error("expected monitoring.subscribe to fail without a provider")
	}
	if resp := tc.call(t, "files.list", filesListParams{ConnectionID: "self", Path: "/"}); resp.Err == nil {
		t.Error("expected files.list to fail without a provider")
	}
}
