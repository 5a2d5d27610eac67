package connection

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/armaxri/termiHub-sub001/internal/config"
)

// Telnet command/option bytes, RFC 854/857.
const (
	telnetIAC  = 255
	telnetWILL = 251
	telnetWONT = 252
	telnetDO   = 253
	telnetDONT = 254
	telnetSGA  = 3
	telnetECHO = 1
)

// TelnetConnection is a raw TCP connection with no terminal negotiation
// beyond declining to perform local echo and requesting suppress-go-ahead
// (the remote end is expected to echo, as nearly every telnetd does by
// default). Resize is a no-op.
type TelnetConnection struct {
	mu   sync.Mutex
	conn net.Conn
	addr string

	exitMu   sync.Mutex
	exitCode *int
}

// NewTelnet returns an unconnected Telnet ConnectionType.
func NewTelnet() ConnectionType { return &TelnetConnection{} }

func (c *TelnetConnection) Metadata() Metadata {
	return Metadata{TypeID: "telnet", DisplayName: "Telnet"}
}

func (c *TelnetConnection) Capabilities() Capabilities { return Capabilities{Resize: false} }

func (c *TelnetConnection) Connect(ctx context.Context, settings any) error {
	s, ok := settings.(*config.TelnetSettings)
	if !ok {
		return fmt.Errorf("connection: telnet expects *config.TelnetSettings")
	}

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connection: telnet dial %s: %w", addr, err)
	}

	// Decline local echo and suppress-go-ahead; the remote is expected
	// to echo typed input itself.
	if _, err := conn.Write([]byte{telnetIAC, telnetWONT, telnetECHO, telnetIAC, telnetDO, telnetSGA}); err != nil {
		conn.Close()
		return fmt.Errorf("connection: telnet negotiate: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.addr = addr
	c.mu.Unlock()
	return nil
}

func (c *TelnetConnection) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *TelnetConnection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *TelnetConnection) Write(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("connection: not connected")
	}
	_, err := conn.Write(data)
	return err
}

func (c *TelnetConnection) Resize(cols, rows int) error { return nil }

func (c *TelnetConnection) SubscribeOutput() <-chan []byte {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	ch := make(chan []byte, 8)
	if conn == nil {
		close(ch)
		return ch
	}
	go c.pump(conn, ch)
	return ch
}

func (c *TelnetConnection) pump(conn net.Conn, ch chan []byte) {
	defer close(ch)
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := stripTelnetCommands(buf[:n])
			if len(chunk) > 0 {
				ch <- chunk
			}
		}
		if err != nil {
			return
		}
	}
}

// stripTelnetCommands removes IAC-prefixed option negotiation bytes the
// remote may interleave with data, since this connection performs none
// of its own beyond the initial declination.
func stripTelnetCommands(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != telnetIAC {
			out = append(out, data[i])
			continue
		}
		if i+1 >= len(data) {
			break
		}
		switch data[i+1] {
		case telnetWILL, telnetWONT, telnetDO, telnetDONT:
			i += 2 // skip IAC, command, and option byte
		case telnetIAC:
			out = append(out, telnetIAC)
			i++
		default:
			i++
		}
	}
	return out
}

func (c *TelnetConnection) ExitCode() *int {
	c.exitMu.Lock()
	defer c.exitMu.Unlock()
	return c.exitCode
}

func (c *TelnetConnection) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("Telnet: %s", c.addr)
}
