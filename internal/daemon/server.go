package daemon

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"os"

	"github.com/armaxri/termiHub-sub001/internal/framing"
)

// clientConn wraps one attached control connection; sendOutput/sendExited
// are called from the daemon's pump goroutine, so writes are not
// synchronized with the connection's own read loop beyond what the
// underlying net.Conn already guarantees for concurrent Write calls.
type clientConn struct {
	conn net.Conn
}

func (c *clientConn) sendOutput(chunk []byte) {
	framing.WriteFrame(c.conn, framing.TypeOutput, chunk)
}

func (c *clientConn) sendExited(code int) {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(int32(code)))
	framing.WriteFrame(c.conn, framing.TypeExited, payload)
}

func (c *clientConn) sendError(msg string) {
	framing.WriteFrame(c.conn, framing.TypeError, []byte(msg))
}

// ListenAndServe accepts attach connections on socketPath until ctx is
// cancelled. Only one client may be attached at a time; a connection
// attempted while another is attached is refused with MSG_ERROR and
// closed immediately.
func (d *Daemon) ListenAndServe(ctx context.Context, socketPath string) error {
	os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("daemon: listen %s: %w", socketPath, err)
	}
	defer os.Remove(socketPath)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("daemon: accept: %w", err)
			}
		}
		go d.handleConn(conn)
	}
}

func (d *Daemon) handleConn(conn net.Conn) {
	defer conn.Close()

	if d.isAttached() {
		framing.WriteFrame(conn, framing.TypeError, []byte("daemon: another client is already attached"))
		return
	}

	c := &clientConn{conn: conn}
	replay, exited, exitCode := d.attach(c)
	defer d.detach(c)

	if err := framing.WriteFrame(conn, framing.TypeBufferReplay, replay); err != nil {
		d.logger.Warn("daemon: write buffer replay failed", "session_id", d.sessionID, "err", err)
		return
	}
	if err := framing.WriteFrame(conn, framing.TypeReady, nil); err != nil {
		d.logger.Warn("daemon: write ready failed", "session_id", d.sessionID, "err", err)
		return
	}
	if exited {
		c.sendExited(exitCode)
		return
	}

	for {
		f, err := framing.ReadFrame(conn)
		if err != nil || f == nil {
			return
		}
		switch f.Type {
		case framing.TypeInput:
			if err := d.writeInput(f.Payload); err != nil {
				c.sendError(err.Error())
			}
		case framing.TypeResize:
			if len(f.Payload) != 4 {
				c.sendError("daemon: malformed resize payload")
				continue
			}
			cols := binary.BigEndian.Uint16(f.Payload[0:2])
			rows := binary.BigEndian.Uint16(f.Payload[2:4])
			if err := d.resize(cols, rows); err != nil {
				// Resize errors are logged but do not terminate the
				// session (§4.2).
				d.logger.Warn("daemon: resize failed", "session_id", d.sessionID, "err", err)
			}
		case framing.TypeDetach:
			return
		case framing.TypeKill:
			d.kill()
			return
		}
	}
}
