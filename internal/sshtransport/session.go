package sshtransport

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Session wraps one authenticated *ssh.Client and everything that shares
// it: the interactive PTY channel, a lazily-opened SFTP subsession, and a
// reference count for pooled tunnel forwarders. ssh.Client itself
// multiplexes channels safely for concurrent NewSession/OpenChannel
// calls; mu guards only the lazy SFTP subsession, which is not safe to
// open twice concurrently.
type Session struct {
	Client *ssh.Client

	mu   sync.Mutex
	sftp *sftp.Client

	refMu sync.Mutex
	refs  int
}

// NewSession wraps an already-dialed client.
func NewSession(client *ssh.Client) *Session {
	return &Session{Client: client}
}

// OpenPTY opens one interactive PTY-backed shell channel.
func (s *Session) OpenPTY(cols, rows int, term string) (*ssh.Session, error) {
	sess, err := s.Client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("sshtransport: new session: %w", err)
	}
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty(term, rows, cols, modes); err != nil {
		sess.Close()
		return nil, fmt.Errorf("sshtransport: request pty: %w", err)
	}
	return sess, nil
}

// AgentChannel is one exec channel running a remote agent binary in
// --stdio mode: its Read/Write carry the NDJSON JSON-RPC stream.
type AgentChannel struct {
	sess   *ssh.Session
	stdin  io.WriteCloser
	stdout io.Reader
}

func (a *AgentChannel) Read(p []byte) (int, error)  { return a.stdout.Read(p) }
func (a *AgentChannel) Write(p []byte) (int, error) { return a.stdin.Write(p) }

// Close closes stdin (signaling EOF to the remote process) and then
// the channel itself.
func (a *AgentChannel) Close() error {
	a.stdin.Close()
	return a.sess.Close()
}

// OpenAgentChannel execs command (the remote termihub-agent binary
// invoked with --stdio, per §6) over a fresh channel and wires its
// stdin/stdout as the JSON-RPC transport.
func (s *Session) OpenAgentChannel(command string) (*AgentChannel, error) {
	sess, err := s.Client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("sshtransport: new session: %w", err)
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("sshtransport: stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("sshtransport: stdout pipe: %w", err)
	}
	if err := sess.Start(command); err != nil {
		sess.Close()
		return nil, fmt.Errorf("sshtransport: start %q: %w", command, err)
	}
	return &AgentChannel{sess: sess, stdin: stdin, stdout: stdout}, nil
}

// CombinedOutput runs command to completion over a fresh exec channel
// and returns its combined stdout+stderr, for one-shot probes like the
// monitoring collector's compound shell command.
func (s *Session) CombinedOutput(ctx context.Context, command string) (string, error) {
	sess, err := s.Client.NewSession()
	if err != nil {
		return "", fmt.Errorf("sshtransport: new session: %w", err)
	}
	defer sess.Close()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := sess.CombinedOutput(command)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("sshtransport: run %q: %w", command, r.err)
		}
		return string(r.out), nil
	case <-ctx.Done():
		sess.Close()
		return "", ctx.Err()
	}
}

// SFTP returns the shared SFTP subsession, opening it lazily on first
// call and blocking on that open; subsequent calls reuse the same
// client. Blocking calls against the returned client should be made from
// a goroutine the caller is willing to have block, since SFTP requests
// are synchronous.
func (s *Session) SFTP() (*sftp.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sftp != nil {
		return s.sftp, nil
	}
	client, err := sftp.NewClient(s.Client)
	if err != nil {
		return nil, fmt.Errorf("sshtransport: open sftp: %w", err)
	}
	s.sftp = client
	return s.sftp, nil
}

// OpenDirectTCPIP opens a direct-tcpip channel to (host, port), used by
// local/dynamic tunnel forwarders.
func (s *Session) OpenDirectTCPIP(host string, port int, originHost string, originPort int) (ssh.Channel, error) {
	payload := directTCPIPPayload{
		DestAddr: host, DestPort: uint32(port),
		OriginAddr: originHost, OriginPort: uint32(originPort),
	}
	ch, reqs, err := s.Client.OpenChannel("direct-tcpip", ssh.Marshal(payload))
	if err != nil {
		return nil, fmt.Errorf("sshtransport: open direct-tcpip: %w", err)
	}
	go ssh.DiscardRequests(reqs)
	return ch, nil
}

type directTCPIPPayload struct {
	DestAddr   string
	DestPort   uint32
	OriginAddr string
	OriginPort uint32
}

// AcquireRef increments the pool reference count.
func (s *Session) AcquireRef() {
	s.refMu.Lock()
	s.refs++
	s.refMu.Unlock()
}

// ReleaseRef decrements the reference count and reports whether it
// reached zero (the caller should then close the underlying client).
func (s *Session) ReleaseRef() (reachedZero bool) {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	s.refs--
	return s.refs <= 0
}

// Close tears down the SFTP subsession (if open) and the client.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.sftp != nil {
		s.sftp.Close()
	}
	s.mu.Unlock()
	return s.Client.Close()
}
