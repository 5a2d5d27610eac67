package tunnel

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/armaxri/termiHub-sub001/internal/sshtransport"
)

// SOCKS5 subset supported: version 5, method 0x00 (no auth) only,
// command CONNECT (0x01) only, address types IPv4 (0x01) and DOMAIN
// (0x03) only.
const (
	socks5Version = 0x05

	socks5MethodNoAuth       = 0x00
	socks5MethodNoAcceptable = 0xff

	socks5CmdConnect = 0x01

	socks5AddrIPv4   = 0x01
	socks5AddrDomain = 0x03
	socks5AddrIPv6   = 0x04

	socks5ReplySucceeded           = 0x00
	socks5ReplyGeneralFailure      = 0x01
	socks5ReplyCommandNotSupported = 0x07
	socks5ReplyAddrNotSupported    = 0x08
)

// DynamicForward binds a local SOCKS5 listener; each accepted
// connection performs the SOCKS5 handshake and, on a supported CONNECT
// request, opens a direct-tcpip channel to the requested (host, port)
// via the pooled SSH session. The session is acquired once for the
// forwarder's lifetime (Start/Stop), not per connection — see
// LocalForward's doc comment for why.
type DynamicForward struct {
	*Forwarder
	BindHost string
	BindPort int

	listener net.Listener
	sess     *sshtransport.Session
}

// NewDynamicForward returns a DynamicForward sharing f's pool and stats.
func NewDynamicForward(f *Forwarder, bindHost string, bindPort int) *DynamicForward {
	return &DynamicForward{Forwarder: f, BindHost: bindHost, BindPort: bindPort}
}

// Start binds the local SOCKS5 listener, acquires the pooled SSH
// session for the forwarder's lifetime, and begins accepting
// connections in the background.
func (d *DynamicForward) Start() error {
	addr := fmt.Sprintf("%s:%d", d.BindHost, d.BindPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("tunnel: socks5 listen %s: %w", addr, err)
	}
	d.listener = ln

	sess, err := d.session()
	if err != nil {
		ln.Close()
		return fmt.Errorf("tunnel: socks5 acquire session: %w", err)
	}
	d.sess = sess

	d.track(d.acceptLoop)
	return nil
}

// Addr reports the bound listener address, useful when BindPort was 0.
func (d *DynamicForward) Addr() net.Addr {
	if d.listener == nil {
		return nil
	}
	return d.listener.Addr()
}

func (d *DynamicForward) acceptLoop() {
	defer d.release()
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			return
		}
		if d.isStopped() {
			conn.Close()
			return
		}
		d.Stats.TotalConnections.Add(1)
		d.track(func() { d.handle(conn) })
	}
}

func (d *DynamicForward) handle(conn net.Conn) {
	host, port, err := socks5Handshake(conn)
	if err != nil {
		conn.Close()
		d.warn("tunnel: socks5 handshake failed", "error", err)
		return
	}

	ch, err := d.sess.OpenDirectTCPIP(host, port, "127.0.0.1", 0)
	if err != nil {
		socks5Reply(conn, socks5ReplyGeneralFailure)
		conn.Close()
		d.warn("tunnel: socks5 open channel failed", "error", err)
		return
	}

	if err := socks5Reply(conn, socks5ReplySucceeded); err != nil {
		conn.Close()
		ch.Close()
		return
	}

	relay(conn, ch, &d.Stats)
}

// socks5Handshake reads the method negotiation and CONNECT request,
// replying with a method-selection message. It returns the requested
// (host, port) to connect to. The caller still owes the final reply
// once the upstream connection outcome is known.
func socks5Handshake(conn net.Conn) (host string, port int, err error) {
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		return "", 0, fmt.Errorf("tunnel: socks5 read greeting: %w", err)
	}
	if hdr[0] != socks5Version {
		return "", 0, fmt.Errorf("tunnel: socks5 unsupported version %d", hdr[0])
	}
	nMethods := int(hdr[1])
	methods := make([]byte, nMethods)
	if _, err := io.ReadFull(conn, methods); err != nil {
		return "", 0, fmt.Errorf("tunnel: socks5 read methods: %w", err)
	}

	hasNoAuth := false
	for _, m := range methods {
		if m == socks5MethodNoAuth {
			hasNoAuth = true
		}
	}
	if !hasNoAuth {
		conn.Write([]byte{socks5Version, socks5MethodNoAcceptable})
		return "", 0, fmt.Errorf("tunnel: socks5 client offered no acceptable method")
	}
	if _, err := conn.Write([]byte{socks5Version, socks5MethodNoAuth}); err != nil {
		return "", 0, fmt.Errorf("tunnel: socks5 write method selection: %w", err)
	}

	reqHdr := make([]byte, 4)
	if _, err := io.ReadFull(conn, reqHdr); err != nil {
		return "", 0, fmt.Errorf("tunnel: socks5 read request: %w", err)
	}
	if reqHdr[0] != socks5Version {
		return "", 0, fmt.Errorf("tunnel: socks5 unsupported version %d", reqHdr[0])
	}
	if reqHdr[1] != socks5CmdConnect {
		socks5Reply(conn, socks5ReplyCommandNotSupported)
		return "", 0, fmt.Errorf("tunnel: socks5 unsupported command %d", reqHdr[1])
	}

	switch reqHdr[3] {
	case socks5AddrIPv4:
		addr := make([]byte, 4)
		if _, err := io.ReadFull(conn, addr); err != nil {
			return "", 0, fmt.Errorf("tunnel: socks5 read ipv4 addr: %w", err)
		}
		host = net.IP(addr).String()
	case socks5AddrDomain:
		lenBuf := make([]byte, 1)
		if _, err := io.ReadFull(conn, lenBuf); err != nil {
			return "", 0, fmt.Errorf("tunnel: socks5 read domain len: %w", err)
		}
		domain := make([]byte, lenBuf[0])
		if _, err := io.ReadFull(conn, domain); err != nil {
			return "", 0, fmt.Errorf("tunnel: socks5 read domain: %w", err)
		}
		host = string(domain)
	default:
		socks5Reply(conn, socks5ReplyAddrNotSupported)
		return "", 0, fmt.Errorf("tunnel: socks5 unsupported address type %d", reqHdr[3])
	}

	portBuf := make([]byte, 2)
	if _, err := io.ReadFull(conn, portBuf); err != nil {
		return "", 0, fmt.Errorf("tunnel: socks5 read port: %w", err)
	}
	port = int(binary.BigEndian.Uint16(portBuf))

	return host, port, nil
}

// socks5Reply writes a CONNECT reply with a bound address of 0.0.0.0:0,
// per the subset this forwarder supports.
func socks5Reply(conn net.Conn, code byte) error {
	reply := []byte{socks5Version, code, 0x00, socks5AddrIPv4, 0, 0, 0, 0, 0, 0}
	_, err := conn.Write(reply)
	return err
}

// Stop stops accepting new connections and waits for in-flight relays
// to finish.
func (d *DynamicForward) Stop() {
	if d.listener != nil {
		d.listener.Close()
	}
	d.Forwarder.Stop()
}
