package agentserver

import (
	"context"
	"testing"

	"github.com/armaxri/termiHub-sub001/internal/connection"
	"github.com/armaxri/termiHub-sub001/internal/filebrowser"
	"github.com/armaxri/termiHub-sub001/internal/monitoring"
)

// capableFakeConn is a fakeConn that additionally reports the
// Monitoring() and FileBrowser() optional capabilities, the way
// SSHConnection does, so registerCapabilities has something to find.
type capableFakeConn struct {
	*fakeConn
	monitor *monitoring.SSHProvider
	files   *filebrowser.ConnBackend
}

func (c *capableFakeConn) Monitoring() (*monitoring.SSHProvider, bool) {
	return c.monitor, c.monitor != nil
}

func (c *capableFakeConn) FileBrowser() (*filebrowser.ConnBackend, bool) {
	return c.files, c.files != nil
}

type stubCollector struct{}

func (stubCollector) Sample(ctx context.Context) (monitoring.Stats, monitoring.CPUCounters, error) {
	return monitoring.Stats{}, monitoring.CPUCounters{}, nil
}

type stubBackend struct{}

func (stubBackend) List(path string) ([]filebrowser.Entry, error)    { return nil, nil }
func (stubBackend) Read(path string) ([]byte, error)                 { return nil, nil }
func (stubBackend) Write(path string, data []byte) error             { return nil }
func (stubBackend) Stat(path string) (filebrowser.Entry, error)      { return filebrowser.Entry{}, nil }
func (stubBackend) Delete(path string) error                         { return nil }
func (stubBackend) Rename(from, to string) error                     { return nil }

func TestRegisterCapabilitiesRegistersMonitoringAndFiles(t *testing.T) {
	hosts := monitoring.NewHostRegistry()
	mon := monitoring.NewDispatcher(nil, hosts, nil)
	files := filebrowser.NewRegistry()
	d := &Dispatcher{monitoring: mon, files: files}

	conn := &capableFakeConn{
		fakeConn: newFakeConn(),
		monitor:  &monitoring.SSHProvider{ConnectionID: "sess-1", Collector: stubCollector{}},
		files:    &filebrowser.ConnBackend{ConnectionID: "sess-1", Backend: stubBackend{}},
	}

	registerCapabilities(d, "sess-1", connection.ConnectionType(conn))

	if _, ok := hosts.Resolve("sess-1"); !ok {
		t.Fatal("expected sess-1 to resolve a monitoring collector after registration")
	}
	if _, err := files.Read("sess-1", "/anything"); err != nil {
		t.Fatalf("Read after registration: %v", err)
	}

	unregisterCapabilities(d, "sess-1")

	if _, ok := hosts.Resolve("sess-1"); ok {
		t.Error("expected sess-1 to be unregistered from monitoring")
	}
	if _, err := files.Read("sess-1", "/anything"); err == nil {
		t.Error("expected sess-1 to be unregistered from file browsing")
	}
}

func TestRegisterCapabilitiesNoopsForPlainConnection(t *testing.T) {
	hosts := monitoring.NewHostRegistry()
	mon := monitoring.NewDispatcher(nil, hosts, nil)
	files := filebrowser.NewRegistry()
	d := &Dispatcher{monitoring: mon, files: files}

	registerCapabilities(d, "sess-2", newFakeConn())

	if _, ok := hosts.Resolve("sess-2"); ok {
		t.Error("plain connection has no Monitoring(), should not register a host")
	}
}
