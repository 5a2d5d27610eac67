package tunnel

import (
	"fmt"
	"net"

	"github.com/armaxri/termiHub-sub001/internal/sshtransport"
)

// LocalForward binds a local TCP listener and relays each inbound
// connection to remoteHost:remotePort via a direct-tcpip channel opened
// on the pooled SSH session. The session is acquired once for the
// forwarder's lifetime (Start/Stop), not per connection — per-connection
// acquire/release let a forwarder's refcount hit zero between
// connections and close+redial the shared session.
type LocalForward struct {
	*Forwarder
	LocalHost  string
	LocalPort  int
	RemoteHost string
	RemotePort int

	listener net.Listener
	sess     *sshtransport.Session
}

// NewLocalForward returns a LocalForward sharing f's pool and stats.
func NewLocalForward(f *Forwarder, localHost string, localPort int, remoteHost string, remotePort int) *LocalForward {
	return &LocalForward{Forwarder: f, LocalHost: localHost, LocalPort: localPort, RemoteHost: remoteHost, RemotePort: remotePort}
}

// Start binds the local listener, acquires the pooled SSH session for
// the forwarder's lifetime, and begins accepting connections in the
// background. It returns once the listener is bound.
func (l *LocalForward) Start() error {
	addr := fmt.Sprintf("%s:%d", l.LocalHost, l.LocalPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("tunnel: listen %s: %w", addr, err)
	}
	l.listener = ln

	sess, err := l.session()
	if err != nil {
		ln.Close()
		return fmt.Errorf("tunnel: local forward acquire session: %w", err)
	}
	l.sess = sess

	l.track(l.acceptLoop)
	return nil
}

// Addr reports the bound listener address, useful when LocalPort was 0.
func (l *LocalForward) Addr() net.Addr {
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

func (l *LocalForward) acceptLoop() {
	defer l.release()
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			return
		}
		if l.isStopped() {
			conn.Close()
			return
		}
		l.Stats.TotalConnections.Add(1)
		l.track(func() { l.handle(conn) })
	}
}

func (l *LocalForward) handle(conn net.Conn) {
	originHost, originPort := "127.0.0.1", 0
	if tcp, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		originHost, originPort = tcp.IP.String(), tcp.Port
	}

	ch, err := l.sess.OpenDirectTCPIP(l.RemoteHost, l.RemotePort, originHost, originPort)
	if err != nil {
		conn.Close()
		l.warn("tunnel: local forward open channel failed", "error", err)
		return
	}

	relay(conn, ch, &l.Stats)
}

// Stop stops accepting new connections and waits for in-flight relays
// to finish.
func (l *LocalForward) Stop() {
	if l.listener != nil {
		l.listener.Close()
	}
	l.Forwarder.Stop()
}
