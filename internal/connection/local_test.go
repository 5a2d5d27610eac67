package connection

import "testing"

func TestLocalMetadataDistinguishesWSL(t *testing.T) {
	local := NewLocal()
	wsl := NewWSL()

	if got := local.Metadata().TypeID; got != "local" {
		t.Errorf("local Metadata().TypeID = %q, want local", got)
	}
	if got := wsl.Metadata().TypeID; got != "wsl" {
		t.Errorf("wsl Metadata().TypeID = %q, want wsl", got)
	}
}

func TestLocalCapabilitiesSupportResize(t *testing.T) {
	if !NewLocal().Capabilities().Resize {
		t.Error("local connections should support resize")
	}
}

func TestLocalConnectRejectsWrongSettingsType(t *testing.T) {
	c := NewLocal()
	if err := c.Connect(nil, "not-settings"); err == nil {
		t.Fatal("expected error for mismatched settings type")
	}
}

func TestWSLConnectRejectsWrongSettingsType(t *testing.T) {
	c := NewWSL()
	if err := c.Connect(nil, "not-settings"); err == nil {
		t.Fatal("expected error for mismatched settings type")
	}
}

func TestLocalFileBrowserAvailableBeforeConnect(t *testing.T) {
	c := NewLocal().(*LocalConnection)
	c.SetConnectionID("conn-1")

	cb, ok := c.FileBrowser()
	if !ok {
		t.Fatal("expected local connections to always expose a file browser")
	}
	if cb.ConnectionID != "conn-1" {
		t.Errorf("ConnectionID = %q, want conn-1", cb.ConnectionID)
	}
	if cb.Backend == nil {
		t.Error("expected a non-nil Backend")
	}
}

func TestLocalOperationsBeforeConnectFail(t *testing.T) {
	c := NewLocal()
	if err := c.Write([]byte("x")); err == nil {
		t.Error("Write() before Connect should error")
	}
	if err := c.Resize(80, 24); err == nil {
		t.Error("Resize() before Connect should error")
	}
	if err := c.Disconnect(); err != nil {
		t.Errorf("Disconnect() before Connect should be a no-op, got %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() before Connect should be false")
	}
	if c.ExitCode() != nil {
		t.Error("ExitCode() before Connect should be nil")
	}
}
