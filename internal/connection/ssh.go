package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/armaxri/termiHub-sub001/internal/config"
	"github.com/armaxri/termiHub-sub001/internal/credential"
	"github.com/armaxri/termiHub-sub001/internal/filebrowser"
	"github.com/armaxri/termiHub-sub001/internal/monitoring"
	"github.com/armaxri/termiHub-sub001/internal/sshtransport"
	"github.com/armaxri/termiHub-sub001/internal/x11"
	"golang.org/x/crypto/ssh"
)

// SSHConnection opens one authenticated SSH session and serves an
// interactive PTY channel over it; SFTP and monitoring are opened
// lazily on the same session per §4.8, and the X11 reverse forwarder,
// when enabled, starts during Connect.
type SSHConnection struct {
	mu   sync.Mutex
	sess *sshtransport.Session
	ptty *ssh.Session
	proc *sshPTYProcess

	connectionID string
	credStore    credential.Store

	host, user string
	forwarder  *x11.Forwarder
}

// NewSSH returns an unconnected SSH ConnectionType.
func NewSSH() ConnectionType { return &SSHConnection{} }

// SetCredentials binds the credential store and connection id the
// manager resolves password/passphrase lookups against; call before
// Connect when AuthMethod is password or an encrypted key.
func (c *SSHConnection) SetCredentials(connectionID string, store credential.Store) {
	c.mu.Lock()
	c.connectionID = connectionID
	c.credStore = store
	c.mu.Unlock()
}

func (c *SSHConnection) Metadata() Metadata { return Metadata{TypeID: "ssh", DisplayName: "SSH"} }

func (c *SSHConnection) Capabilities() Capabilities {
	return Capabilities{Resize: true, Monitoring: true, FileBrowser: true}
}

func (c *SSHConnection) Connect(ctx context.Context, settings any) error {
	s, ok := settings.(*config.SSHSettings)
	if !ok {
		return fmt.Errorf("connection: ssh expects *config.SSHSettings")
	}

	dialCfg := sshtransport.DialConfig{
		Host: s.Host, Port: s.Port, User: s.User,
		Timeout: 15 * time.Second,
	}
	switch s.AuthMethod {
	case config.SSHAuthAgent:
		dialCfg.Method = sshtransport.AuthAgent
	case config.SSHAuthPassword:
		dialCfg.Method = sshtransport.AuthPassword
		dialCfg.Password = c.lookupSecret(credential.CredentialPassword)
	case config.SSHAuthKey:
		dialCfg.Method = sshtransport.AuthKey
		dialCfg.KeyPath = s.KeyPath
		dialCfg.Passphrase = c.lookupSecret(credential.CredentialKeyPassphrase)
	default:
		return fmt.Errorf("connection: ssh unknown auth method %q", s.AuthMethod)
	}

	client, err := sshtransport.Dial(dialCfg)
	if err != nil {
		return fmt.Errorf("connection: ssh dial %s@%s: %w", s.User, s.Host, err)
	}
	sess := sshtransport.NewSession(client)

	ptty, err := sess.OpenPTY(80, 24, "xterm-256color")
	if err != nil {
		sess.Close()
		return fmt.Errorf("connection: ssh open pty: %w", err)
	}
	proc, err := newSSHPTYProcess(ptty, newRingBuffer(localBufferCapacity))
	if err != nil {
		sess.Close()
		return fmt.Errorf("connection: ssh start shell: %w", err)
	}

	if s.X11Forwarding {
		// golang.org/x/crypto/ssh's Session exposes no hook to send an
		// arbitrary channel request, so the client cannot issue the
		// "x11-req" that asks the server to open X11 channels back to
		// us; HandleChannelOpen is the half of the protocol it does
		// support, so the forwarder is ready for any server that opens
		// "x11" channels unprompted or via out-of-band negotiation.
		c.forwarder = x11.New(client, nil)
		go c.forwarder.Run(client.HandleChannelOpen("x11"))
	}

	c.mu.Lock()
	c.sess, c.ptty, c.proc = sess, ptty, proc
	c.host, c.user = s.Host, s.User
	c.mu.Unlock()
	return nil
}

func (c *SSHConnection) lookupSecret(kind credential.CredentialType) string {
	c.mu.Lock()
	store, connID := c.credStore, c.connectionID
	c.mu.Unlock()
	if store == nil || connID == "" {
		return ""
	}
	v, _, _ := store.Get(credential.Key{ConnectionID: connID, Type: kind})
	return v
}

func (c *SSHConnection) Disconnect() error {
	c.mu.Lock()
	forwarder := c.forwarder
	sess := c.sess
	proc := c.proc
	c.mu.Unlock()
	if forwarder != nil {
		forwarder.Stop()
	}
	if proc != nil {
		proc.stop()
	}
	if sess == nil {
		return nil
	}
	return sess.Close()
}

func (c *SSHConnection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proc != nil && c.proc.isAlive()
}

func (c *SSHConnection) Write(data []byte) error {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()
	if proc == nil {
		return fmt.Errorf("connection: not connected")
	}
	return proc.write(data)
}

func (c *SSHConnection) Resize(cols, rows int) error {
	c.mu.Lock()
	ptty := c.ptty
	c.mu.Unlock()
	if ptty == nil {
		return fmt.Errorf("connection: not connected")
	}
	if err := ptty.WindowChange(rows, cols); err != nil {
		return fmt.Errorf("connection: ssh resize: %w", err)
	}
	return nil
}

func (c *SSHConnection) SubscribeOutput() <-chan []byte {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()
	if proc == nil {
		ch := make(chan []byte)
		close(ch)
		return ch
	}
	return proc.subscribeOutput()
}

func (c *SSHConnection) ExitCode() *int {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()
	if proc == nil {
		return nil
	}
	return proc.getExitCode()
}

func (c *SSHConnection) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("ssh: %s@%s", c.user, c.host)
}

// Monitoring returns this connection's monitoring capability, per the
// optional-capability accessor pattern, once a session is established.
func (c *SSHConnection) Monitoring() (*monitoring.SSHProvider, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil, false
	}
	return monitoring.NewSSHProvider(c.connectionID, c.sess), true
}

// FileBrowser returns this connection's file browsing capability,
// backed by the session's lazily-opened SFTP subsession.
func (c *SSHConnection) FileBrowser() (*filebrowser.ConnBackend, bool) {
	c.mu.Lock()
	sess, connID := c.sess, c.connectionID
	c.mu.Unlock()
	if sess == nil {
		return nil, false
	}
	sftpClient, err := sess.SFTP()
	if err != nil {
		return nil, false
	}
	return &filebrowser.ConnBackend{ConnectionID: connID, Backend: filebrowser.NewSFTPBackend(sftpClient)}, true
}
