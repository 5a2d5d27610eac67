package tunnel

import (
	"io"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

// fakeChannel adapts a net.Conn (one end of a net.Pipe) to ssh.Channel
// for relay tests that don't need a real SSH connection.
type fakeChannel struct {
	net.Conn
}

func (f fakeChannel) CloseWrite() error {
	if cw, ok := f.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return f.Conn.Close()
}

func (f fakeChannel) SendRequest(name string, wantReply bool, payload []byte) (bool, error) {
	return false, nil
}

func (f fakeChannel) Stderr() io.ReadWriter { return nil }

var _ ssh.Channel = fakeChannel{}

func TestRelayCopiesBothDirectionsAndUpdatesStats(t *testing.T) {
	localA, localB := net.Pipe()
	chA, chB := net.Pipe()

	var stats Stats
	done := make(chan struct{})
	go func() {
		relay(localA, fakeChannel{chA}, &stats)
		close(done)
	}()

	go func() {
		io.WriteString(localB, "to-remote")
		buf := make([]byte, 64)
		n, _ := chB.Read(buf)
		if string(buf[:n]) != "to-remote" {
			t.Errorf("chB read %q, want to-remote", buf[:n])
		}
		io.WriteString(chB, "to-local")
		localB.Close()
		chB.Close()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not complete")
	}

	if stats.BytesSent.Load() == 0 {
		t.Error("BytesSent not updated")
	}
	if stats.BytesReceived.Load() == 0 {
		t.Error("BytesReceived not updated")
	}
}

func TestSocks5HandshakeConnectIPv4(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	resultCh := make(chan struct {
		host string
		port int
		err  error
	}, 1)
	go func() {
		host, port, err := socks5Handshake(server)
		resultCh <- struct {
			host string
			port int
			err  error
		}{host, port, err}
	}()

	// Greeting: version 5, 1 method, no-auth.
	client.Write([]byte{0x05, 0x01, 0x00})
	methodSel := make([]byte, 2)
	io.ReadFull(client, methodSel)
	if methodSel[0] != 0x05 || methodSel[1] != 0x00 {
		t.Fatalf("method selection = %v, want [5 0]", methodSel)
	}

	// CONNECT request to 10.0.0.1:8080.
	req := []byte{0x05, 0x01, 0x00, 0x01, 10, 0, 0, 1, 0x1f, 0x90}
	client.Write(req)

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("socks5Handshake: %v", res.err)
		}
		if res.host != "10.0.0.1" {
			t.Errorf("host = %q, want 10.0.0.1", res.host)
		}
		if res.port != 8080 {
			t.Errorf("port = %d, want 8080", res.port)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("socks5Handshake did not complete")
	}
}

func TestSocks5HandshakeRejectsUnsupportedCommand(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	errCh := make(chan error, 1)
	go func() {
		_, _, err := socks5Handshake(server)
		errCh <- err
	}()

	client.Write([]byte{0x05, 0x01, 0x00})
	methodSel := make([]byte, 2)
	io.ReadFull(client, methodSel)

	// BIND (0x02) is not supported.
	req := []byte{0x05, 0x02, 0x00, 0x01, 127, 0, 0, 1, 0x00, 0x50}
	client.Write(req)

	reply := make([]byte, 10)
	io.ReadFull(client, reply)
	if reply[1] != socks5ReplyCommandNotSupported {
		t.Errorf("reply code = %d, want %d", reply[1], socks5ReplyCommandNotSupported)
	}

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected error for unsupported command")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("socks5Handshake did not return")
	}
}

func TestSocks5HandshakeDomainName(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	resultCh := make(chan string, 1)
	go func() {
		host, _, _ := socks5Handshake(server)
		resultCh <- host
	}()

	client.Write([]byte{0x05, 0x01, 0x00})
	methodSel := make([]byte, 2)
	io.ReadFull(client, methodSel)

	domain := "example.com"
	req := append([]byte{0x05, 0x01, 0x00, 0x03, byte(len(domain))}, []byte(domain)...)
	req = append(req, 0x01, 0xbb)
	client.Write(req)

	select {
	case host := <-resultCh:
		if host != domain {
			t.Errorf("host = %q, want %q", host, domain)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("socks5Handshake did not return")
	}
}
