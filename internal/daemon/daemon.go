// Package daemon implements the detachable PTY host (§4.2): a process
// that owns a single PTY and its child, buffers recent output into a
// bounded ring, and serves at most one attached control client at a
// time over a local stream socket using internal/framing.
package daemon

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/armaxri/termiHub-sub001/internal/spawner"
)

// State is the daemon's attach lifecycle: Detached -> Attached -> Detached -> ...
type State int

const (
	Detached State = iota
	Attached
)

func (s State) String() string {
	if s == Attached {
		return "attached"
	}
	return "detached"
}

// defaultBufferCapacity is the daemon's retained-output ring size (§4.2:
// "a bounded ring (default 1 MiB)").
const defaultBufferCapacity = 1 << 20

// Daemon owns one PTY-attached child process and mediates at most one
// attached control client at a time. It keeps reading PTY output
// regardless of attach state so the ring buffer never misses a chunk.
type Daemon struct {
	sessionID string
	handle    *spawner.NativeHandle
	ring      *ringBuffer
	logger    *slog.Logger

	mu       sync.Mutex
	state    State
	client   *clientConn
	exitCode *int
	exited   chan struct{}
	once     sync.Once
}

// Spawn starts program/args PTY-attached and begins pumping its output
// into the retained ring buffer immediately, using the default ring
// capacity.
func Spawn(sessionID, program string, args []string, size spawner.Size, env map[string]string, cwd string, logger *slog.Logger) (*Daemon, error) {
	return SpawnWithCapacity(sessionID, program, args, size, env, cwd, defaultBufferCapacity, logger)
}

// SpawnWithCapacity is Spawn with an explicit ring buffer capacity, for
// callers that read it from per-session configuration (e.g.
// cmd/termihub-agent's TERMIHUB_BUFFER_SIZE).
func SpawnWithCapacity(sessionID, program string, args []string, size spawner.Size, env map[string]string, cwd string, bufferCapacity int, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if bufferCapacity <= 0 {
		bufferCapacity = defaultBufferCapacity
	}
	handle, err := spawner.NativeSpawner{}.SpawnCommand(program, args, size, env, cwd)
	if err != nil {
		return nil, fmt.Errorf("daemon: spawn %s: %w", program, err)
	}

	d := &Daemon{
		sessionID: sessionID,
		handle:    handle,
		ring:      newRingBuffer(bufferCapacity),
		logger:    logger,
		state:     Detached,
		exited:    make(chan struct{}),
	}
	go d.pump()
	return d, nil
}

// pump reads PTY output continuously; while a client is attached each
// chunk is forwarded as MSG_OUTPUT, and every chunk is accumulated
// into the ring buffer regardless of attach state, per §4.2.
func (d *Daemon) pump() {
	buf := make([]byte, 32*1024)
	for {
		n, err := d.handle.Reader().Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			d.ring.Write(chunk)
			d.forwardOutput(chunk)
		}
		if err != nil {
			d.finish()
			return
		}
	}
}

func (d *Daemon) forwardOutput(chunk []byte) {
	d.mu.Lock()
	c := d.client
	d.mu.Unlock()
	if c != nil {
		// Failure to write to a detached/dead client is non-fatal:
		// drop the frame rather than tearing the daemon down (§4.2).
		c.sendOutput(chunk)
	}
}

// finish runs once when the PTY read loop ends: record the exit code
// and notify any attached client.
func (d *Daemon) finish() {
	d.once.Do(func() {
		code := d.handle.ExitCode()
		d.mu.Lock()
		d.exitCode = &code
		c := d.client
		d.mu.Unlock()
		if c != nil {
			c.sendExited(code)
		}
		close(d.exited)
	})
}

// attach binds conn as the sole control client, replacing any
// previous one, and returns the buffer replay snapshot to send.
func (d *Daemon) attach(c *clientConn) (replay []byte, alreadyExited bool, exitCode int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.client = c
	d.state = Attached
	replay = d.ring.Bytes()
	if d.exitCode != nil {
		return replay, true, *d.exitCode
	}
	return replay, false, 0
}

// detach clears the client if it is still the current one.
func (d *Daemon) detach(c *clientConn) {
	d.mu.Lock()
	if d.client == c {
		d.client = nil
		d.state = Detached
	}
	d.mu.Unlock()
}

func (d *Daemon) writeInput(data []byte) error {
	return d.handle.WriteInput(data)
}

func (d *Daemon) resize(cols, rows uint16) error {
	return d.handle.Resize(cols, rows)
}

func (d *Daemon) kill() {
	d.handle.Close()
}

func (d *Daemon) isAttached() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == Attached
}

// Exited closes once the PTY child has exited (naturally or via
// MSG_KILL); cmd/termihub-agent's daemon mode waits on it to know when
// to terminate the process.
func (d *Daemon) Exited() <-chan struct{} { return d.exited }

// SessionID returns the id this daemon was spawned for.
func (d *Daemon) SessionID() string { return d.sessionID }
