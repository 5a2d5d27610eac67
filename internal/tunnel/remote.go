package tunnel

import (
	"fmt"
	"net"
)

// RemoteForward asks the SSH server to listen on its side and relays
// each connection it accepts to a local target. This is
// golang.org/x/crypto/ssh's tcpip-forward request, exposed directly as
// *ssh.Client.Listen — no wrapper on Session is needed since the
// returned net.Listener is already safe to Accept from its own
// goroutine alongside the session's other channels.
type RemoteForward struct {
	*Forwarder
	BindHost   string
	BindPort   int
	LocalHost  string
	LocalPort  int

	listener net.Listener
}

// NewRemoteForward returns a RemoteForward sharing f's pool and stats.
func NewRemoteForward(f *Forwarder, bindHost string, bindPort int, localHost string, localPort int) *RemoteForward {
	return &RemoteForward{Forwarder: f, BindHost: bindHost, BindPort: bindPort, LocalHost: localHost, LocalPort: localPort}
}

// Start acquires the pooled session, requests the remote listen, and
// begins the accept loop in the background.
func (r *RemoteForward) Start() error {
	sess, err := r.session()
	if err != nil {
		return fmt.Errorf("tunnel: remote forward acquire session: %w", err)
	}

	ln, err := sess.Client.Listen("tcp", fmt.Sprintf("%s:%d", r.BindHost, r.BindPort))
	if err != nil {
		r.release()
		return fmt.Errorf("tunnel: remote forward listen %s:%d: %w", r.BindHost, r.BindPort, err)
	}
	r.listener = ln

	r.track(r.acceptLoop)
	return nil
}

// Addr reports the address the server bound, useful when BindPort was 0.
func (r *RemoteForward) Addr() net.Addr {
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

func (r *RemoteForward) acceptLoop() {
	defer r.release()
	for {
		ch, err := r.listener.Accept()
		if err != nil {
			return
		}
		if r.isStopped() {
			ch.Close()
			return
		}
		r.Stats.TotalConnections.Add(1)
		r.track(func() { r.handle(ch) })
	}
}

func (r *RemoteForward) handle(remoteConn net.Conn) {
	local, err := net.Dial("tcp", fmt.Sprintf("%s:%d", r.LocalHost, r.LocalPort))
	if err != nil {
		remoteConn.Close()
		r.warn("tunnel: remote forward dial local target failed", "error", err)
		return
	}

	// remoteConn here is the net.Conn the SSH forwarded-tcpip listener
	// hands back; x/crypto/ssh implements it as an ssh.Channel underneath,
	// so io.Copy against it behaves like any other channel.
	relayConn(local, remoteConn, &r.Stats)
}

// Stop closes the remote listener and waits for in-flight relays to
// finish.
func (r *RemoteForward) Stop() {
	if r.listener != nil {
		r.listener.Close()
	}
	r.Forwarder.Stop()
}
