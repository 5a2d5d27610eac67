package connection

import "testing"

func TestSSHLookupSecretWithoutStoreShortCircuits(t *testing.T) {
	c := &SSHConnection{}
	if got := c.lookupSecret("password"); got != "" {
		t.Errorf("lookupSecret() = %q, want empty without a credential store", got)
	}
}

func TestSSHLookupSecretWithoutConnectionIDShortCircuits(t *testing.T) {
	c := &SSHConnection{}
	c.SetCredentials("", nil)
	if got := c.lookupSecret("password"); got != "" {
		t.Errorf("lookupSecret() = %q, want empty without a connection id", got)
	}
}

func TestSSHCapabilitiesAdvertiseMonitoringAndFileBrowser(t *testing.T) {
	c := NewSSH()
	caps := c.Capabilities()
	if !caps.Resize || !caps.Monitoring || !caps.FileBrowser {
		t.Errorf("Capabilities() = %+v, want all true", caps)
	}
}

func TestSSHTitleBeforeConnect(t *testing.T) {
	c := &SSHConnection{}
	if got := c.Title(); got != "ssh: @" {
		t.Errorf("Title() = %q, want %q", got, "ssh: @")
	}
}

func TestSSHDisconnectWithoutConnectIsNoop(t *testing.T) {
	c := &SSHConnection{}
	if err := c.Disconnect(); err != nil {
		t.Errorf("Disconnect() on unconnected SSHConnection = %v, want nil", err)
	}
}

func TestSSHWriteAndResizeBeforeConnectFail(t *testing.T) {
	c := &SSHConnection{}
	if err := c.Write([]byte("x")); err == nil {
		t.Error("Write() before Connect should error")
	}
	if err := c.Resize(80, 24); err == nil {
		t.Error("Resize() before Connect should error")
	}
}
