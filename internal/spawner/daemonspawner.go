package spawner

import (
	"encoding/binary"
	"fmt"
	"net"
	"os/exec"
	"sync"

	"github.com/armaxri/termiHub-sub001/internal/framing"
)

// DaemonSpawner launches a helper process that owns the PTY and returns a
// Handle wrapping a framing-codec client connected to its control socket.
// This is mandatory on Unix for any session that must outlive the
// controlling desktop process.
type DaemonSpawner struct {
	// AgentBinaryPath is the termihub-agent executable to launch in
	// "--daemon <id>" mode.
	AgentBinaryPath string
}

// DaemonHandle is a Handle whose input/resize/kill operations are frames
// sent over a local stream socket to a detached daemon process.
type DaemonHandle struct {
	conn net.Conn

	mu       sync.Mutex
	alive    bool
	output   chan []byte
	exited   chan int
	replayed chan []byte
}

var _ Handle = (*DaemonHandle)(nil)

// Launch starts (or reattaches to) the daemon for sessionID, listening on
// socketPath, and returns a live handle once the MSG_READY handshake
// completes.
func (s DaemonSpawner) Launch(sessionID, socketPath string, size Size, env map[string]string, cwd string) (*DaemonHandle, error) {
	if _, err := net.Dial("unix", socketPath); err != nil {
		if err := s.spawnDaemonProcess(sessionID, socketPath, size, env, cwd); err != nil {
			return nil, err
		}
	}
	return Attach(socketPath)
}

func (s DaemonSpawner) spawnDaemonProcess(sessionID, socketPath string, size Size, env map[string]string, cwd string) error {
	args := []string{"--daemon", sessionID, "--socket", socketPath,
		"--cols", fmt.Sprint(size.Cols), "--rows", fmt.Sprint(size.Rows)}
	if cwd != "" {
		args = append(args, "--cwd", cwd)
	}
	cmd := exec.Command(s.AgentBinaryPath, args...)
	cmd.Env = mergeEnv(env)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawner: start daemon: %w", err)
	}
	return cmd.Process.Release()
}

// Attach dials an already-running daemon's socket and performs the
// attach handshake: MSG_BUFFER_REPLAY then MSG_READY before frames flow
// freely in both directions.
func Attach(socketPath string) (*DaemonHandle, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("spawner: dial daemon socket: %w", err)
	}

	h := &DaemonHandle{
		conn:     conn,
		alive:    true,
		output:   make(chan []byte, 256),
		exited:   make(chan int, 1),
		replayed: make(chan []byte, 1),
	}
	for {
		f, err := framing.ReadFrame(conn)
		if err != nil || f == nil || f.Type == framing.TypeError {
			conn.Close()
			if f != nil {
				return nil, fmt.Errorf("spawner: attach handshake: %s", f.Payload)
			}
			return nil, fmt.Errorf("spawner: attach handshake: %v", err)
		}
		if f.Type == framing.TypeBufferReplay {
			select {
			case h.replayed <- f.Payload:
			default:
			}
		} else if f.Type == framing.TypeReady {
			break
		}
	}
	go h.readLoop()
	return h, nil
}

func (h *DaemonHandle) readLoop() {
	defer func() {
		h.mu.Lock()
		h.alive = false
		h.mu.Unlock()
		close(h.output)
	}()

	for {
		f, err := framing.ReadFrame(h.conn)
		if err != nil || f == nil {
			return
		}
		switch f.Type {
		case framing.TypeBufferReplay:
			select {
			case h.replayed <- f.Payload:
			default:
			}
		case framing.TypeReady:
			// Handshake complete; nothing further to do.
		case framing.TypeOutput:
			h.output <- f.Payload
		case framing.TypeError:
			// Non-fatal; surfaced via Output() as-is so the caller's UI
			// layer can render it inline with normal output.
			h.output <- f.Payload
		case framing.TypeExited:
			code := -1
			if len(f.Payload) == 4 {
				code = int(int32(binary.BigEndian.Uint32(f.Payload)))
			}
			select {
			case h.exited <- code:
			default:
			}
			return
		}
	}
}

// Replay returns the buffer replay payload sent immediately after attach,
// or nil if the daemon had nothing buffered.
func (h *DaemonHandle) Replay() []byte {
	select {
	case b := <-h.replayed:
		return b
	default:
		return nil
	}
}

// Output streams PTY chunks (and inline non-fatal error text) as they
// arrive.
func (h *DaemonHandle) Output() <-chan []byte { return h.output }

// Exited fires once with the child's exit code (or -1 if unknown) when
// the daemon reports MSG_EXITED.
func (h *DaemonHandle) Exited() <-chan int { return h.exited }

func (h *DaemonHandle) WriteInput(data []byte) error {
	if err := framing.WriteFrame(h.conn, framing.TypeInput, data); err != nil {
		return fmt.Errorf("spawner: write input: %w", err)
	}
	return nil
}

func (h *DaemonHandle) Resize(cols, rows uint16) error {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:2], cols)
	binary.BigEndian.PutUint16(payload[2:4], rows)
	if err := framing.WriteFrame(h.conn, framing.TypeResize, payload); err != nil {
		return fmt.Errorf("spawner: resize: %w", err)
	}
	return nil
}

// Close detaches from the daemon (MSG_DETACH) rather than killing the
// child; the PTY and its buffer survive for a future Attach.
func (h *DaemonHandle) Close() error {
	err := framing.WriteFrame(h.conn, framing.TypeDetach, nil)
	h.conn.Close()
	if err != nil {
		return fmt.Errorf("spawner: detach: %w", err)
	}
	return nil
}

// Kill asks the daemon to terminate the child and exit.
func (h *DaemonHandle) Kill() error {
	if err := framing.WriteFrame(h.conn, framing.TypeKill, nil); err != nil {
		return fmt.Errorf("spawner: kill: %w", err)
	}
	return nil
}

func (h *DaemonHandle) IsAlive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alive
}
