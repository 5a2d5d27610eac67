package connection

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/armaxri/termiHub-sub001/internal/agentclient"
	"github.com/armaxri/termiHub-sub001/internal/config"
	"github.com/armaxri/termiHub-sub001/internal/credential"
	"github.com/armaxri/termiHub-sub001/internal/sshtransport"
)

// remoteProxyBufferCapacity bounds the local output channel RemoteProxy
// feeds from the agent's session.output notifications, the "bounded
// output channel" step 5 of §4.5 names.
const remoteProxyBufferCapacity = 256

// RemoteProxy is the local ConnectionType described in §4.5: it forwards
// every operation over a JSON-RPC channel to a remote termihub-agent
// instead of owning a PTY directly.
type RemoteProxy struct {
	mgr       *agentclient.Manager
	credStore credential.Store
	connID    string

	mu              sync.Mutex
	client          *agentclient.Client
	agentID         string
	remoteSessionID string
	out             chan []byte
	exitCode        *int
	connected       bool
	title           string
	cancel          context.CancelFunc
}

// NewRemoteProxy returns an unconnected RemoteProxy. mgr must be set
// via SetManager before Connect.
func NewRemoteProxy() ConnectionType { return &RemoteProxy{} }

// RegisterRemote registers the "remote" type_id against r, wiring every
// RemoteProxy instance it builds to mgr. The desktop client calls this
// once at startup alongside NewDefaultRegistry; the agent dispatcher
// never does, since an agent never proxies to another agent.
func RegisterRemote(r *Registry, mgr *agentclient.Manager) {
	r.Register("remote", func() ConnectionType {
		rp := NewRemoteProxy().(*RemoteProxy)
		rp.SetManager(mgr)
		return rp
	})
}

// SetManager binds the shared agent connection manager RemoteProxy
// uses to obtain (or reuse) a JSON-RPC channel to the named agent.
func (r *RemoteProxy) SetManager(mgr *agentclient.Manager) {
	r.mu.Lock()
	r.mgr = mgr
	r.mu.Unlock()
}

// SetCredentials binds the credential store and connection id used to
// resolve the agent SSH hop's password/passphrase, mirroring
// SSHConnection.SetCredentials.
func (r *RemoteProxy) SetCredentials(connectionID string, store credential.Store) {
	r.mu.Lock()
	r.connID = connectionID
	r.credStore = store
	r.mu.Unlock()
}

func (r *RemoteProxy) Metadata() Metadata {
	return Metadata{TypeID: "remote", DisplayName: "Remote agent"}
}

func (r *RemoteProxy) Capabilities() Capabilities {
	return Capabilities{Resize: true}
}

// Connect performs §4.5's five steps: obtain a shared agent channel,
// initialize it, create the remote session, attach to it, and start
// forwarding its notifications into a local bounded output channel.
func (r *RemoteProxy) Connect(ctx context.Context, settings any) error {
	s, ok := settings.(*config.RemoteSettings)
	if !ok {
		return fmt.Errorf("connection: remote expects *config.RemoteSettings")
	}

	r.mu.Lock()
	mgr := r.mgr
	r.mu.Unlock()
	if mgr == nil {
		return fmt.Errorf("connection: remote proxy has no agent connection manager, call SetManager first")
	}

	agentID := fmt.Sprintf("%s@%s:%d", s.AgentUser, s.AgentHost, s.AgentPort)
	client, err := mgr.Obtain(agentID, func() (*agentclient.Client, error) {
		return r.dialAgent(s)
	})
	if err != nil {
		return fmt.Errorf("connection: remote dial agent %s: %w", agentID, err)
	}

	if _, err := client.Call(ctx, "initialize", map[string]any{
		"protocol_version": "1.0",
		"client":           "termihub",
		"client_version":   "dev",
	}); err != nil {
		mgr.Release(agentID)
		return fmt.Errorf("connection: remote initialize: %w", err)
	}

	remoteConfig, err := json.Marshal(s.RemoteConfig)
	if err != nil {
		mgr.Release(agentID)
		return fmt.Errorf("connection: remote marshal config: %w", err)
	}
	createResult, err := client.Call(ctx, "session.create", map[string]any{
		"type":   s.RemoteType,
		"config": json.RawMessage(remoteConfig),
		"title":  s.RemoteTitle,
	})
	if err != nil {
		mgr.Release(agentID)
		return fmt.Errorf("connection: remote session.create: %w", err)
	}
	var created struct {
		SessionID string `json:"session_id"`
		Title     string `json:"title"`
	}
	if err := json.Unmarshal(createResult, &created); err != nil {
		mgr.Release(agentID)
		return fmt.Errorf("connection: remote decode session.create result: %w", err)
	}

	if _, err := client.Call(ctx, "session.attach", map[string]string{"session_id": created.SessionID}); err != nil {
		mgr.Release(agentID)
		return fmt.Errorf("connection: remote session.attach: %w", err)
	}

	notifications := client.Subscribe(created.SessionID)
	out := make(chan []byte, remoteProxyBufferCapacity)
	fwdCtx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	r.client = client
	r.agentID = agentID
	r.remoteSessionID = created.SessionID
	r.out = out
	r.connected = true
	r.title = created.Title
	r.cancel = cancel
	r.mu.Unlock()

	go r.forward(fwdCtx, notifications, out)
	return nil
}

func (r *RemoteProxy) dialAgent(s *config.RemoteSettings) (*agentclient.Client, error) {
	dialCfg := sshtransport.DialConfig{
		Host: s.AgentHost, Port: s.AgentPort, User: s.AgentUser,
		Timeout: 15 * time.Second,
	}
	switch s.AgentAuthMethod {
	case config.SSHAuthAgent:
		dialCfg.Method = sshtransport.AuthAgent
	case config.SSHAuthPassword:
		dialCfg.Method = sshtransport.AuthPassword
		dialCfg.Password = r.lookupSecret(credential.CredentialPassword)
	case config.SSHAuthKey:
		dialCfg.Method = sshtransport.AuthKey
		dialCfg.KeyPath = s.AgentKeyPath
		dialCfg.Passphrase = r.lookupSecret(credential.CredentialKeyPassphrase)
	default:
		return nil, fmt.Errorf("connection: remote unknown agentAuthMethod %q", s.AgentAuthMethod)
	}

	sshClient, err := sshtransport.Dial(dialCfg)
	if err != nil {
		return nil, fmt.Errorf("connection: remote ssh dial %s@%s: %w", s.AgentUser, s.AgentHost, err)
	}
	sess := sshtransport.NewSession(sshClient)
	channel, err := sess.OpenAgentChannel(s.AgentCommand)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("connection: remote open agent channel: %w", err)
	}
	return agentclient.New(channel, channel, nil), nil
}

func (r *RemoteProxy) lookupSecret(kind credential.CredentialType) string {
	r.mu.Lock()
	store, connID := r.credStore, r.connID
	r.mu.Unlock()
	if store == nil || connID == "" {
		return ""
	}
	v, _, _ := store.Get(credential.Key{ConnectionID: connID, Type: kind})
	return v
}

// forward drains the agent's per-session notifications and routes
// session.output bytes into out; on session.exit it records the exit
// code and returns, closing out. session.error notifications are
// ignored.
func (r *RemoteProxy) forward(ctx context.Context, notifications <-chan agentclient.Notification, out chan<- []byte) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			switch n.Method {
			case "session.output":
				var payload struct {
					Data string `json:"data"`
				}
				if err := json.Unmarshal(n.Params, &payload); err != nil {
					continue
				}
				data, err := base64.StdEncoding.DecodeString(payload.Data)
				if err != nil {
					continue
				}
				out <- data
			case "session.exit":
				var payload struct {
					ExitCode *int `json:"exit_code"`
				}
				json.Unmarshal(n.Params, &payload)
				r.mu.Lock()
				r.exitCode = payload.ExitCode
				r.mu.Unlock()
				return
			case "session.error":
				// Non-fatal; the underlying session.output/exit stream
				// continues. Nothing actionable to do here beyond what
				// the Session Manager's own error surface already does
				// once wired to a UI.
			}
		}
	}
}

// Disconnect enqueues session.close and shuts down the local
// forwarding goroutine and output channel, per §4.5.
func (r *RemoteProxy) Disconnect() error {
	r.mu.Lock()
	client := r.client
	agentID := r.agentID
	sessionID := r.remoteSessionID
	mgr := r.mgr
	cancel := r.cancel
	connected := r.connected
	r.connected = false
	r.mu.Unlock()

	if !connected {
		return nil
	}
	if client != nil && sessionID != "" {
		client.Notify("session.close", map[string]string{"session_id": sessionID})
		client.Unsubscribe(sessionID)
	}
	if cancel != nil {
		cancel()
	}
	if mgr != nil && agentID != "" {
		return mgr.Release(agentID)
	}
	return nil
}

func (r *RemoteProxy) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *RemoteProxy) Write(data []byte) error {
	r.mu.Lock()
	client, sessionID, connected := r.client, r.remoteSessionID, r.connected
	r.mu.Unlock()
	if !connected {
		return fmt.Errorf("connection: not connected")
	}
	return client.Notify("session.input", map[string]string{
		"session_id": sessionID,
		"data":       base64.StdEncoding.EncodeToString(data),
	})
}

func (r *RemoteProxy) Resize(cols, rows int) error {
	r.mu.Lock()
	client, sessionID, connected := r.client, r.remoteSessionID, r.connected
	r.mu.Unlock()
	if !connected {
		return fmt.Errorf("connection: not connected")
	}
	return client.Notify("session.resize", map[string]any{
		"session_id": sessionID,
		"cols":       cols,
		"rows":       rows,
	})
}

func (r *RemoteProxy) SubscribeOutput() <-chan []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.out == nil {
		ch := make(chan []byte)
		close(ch)
		return ch
	}
	return r.out
}

func (r *RemoteProxy) ExitCode() *int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exitCode
}

func (r *RemoteProxy) Title() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.title != "" {
		return r.title
	}
	return "remote: " + r.agentID
}
