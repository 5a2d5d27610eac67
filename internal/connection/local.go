package connection

import (
	"context"
	"fmt"
	"sync"

	"github.com/armaxri/termiHub-sub001/internal/config"
	"github.com/armaxri/termiHub-sub001/internal/filebrowser"
	"github.com/armaxri/termiHub-sub001/internal/spawner"
)

// LocalConnection spawns a shell (or WSL distro, when built by NewWSL)
// PTY-attached on the local machine.
type LocalConnection struct {
	mu           sync.Mutex
	proc         *processSession
	title        string
	wsl          bool
	connectionID string
}

// NewLocal returns an unconnected Local ConnectionType.
func NewLocal() ConnectionType { return &LocalConnection{} }

// NewWSL returns an unconnected WSL ConnectionType; same shape as
// Local, routed through the "wsl:<distro>" shell resolver.
func NewWSL() ConnectionType { return &LocalConnection{wsl: true} }

func (c *LocalConnection) Metadata() Metadata {
	if c.wsl {
		return Metadata{TypeID: "wsl", DisplayName: "WSL"}
	}
	return Metadata{TypeID: "local", DisplayName: "Local Shell"}
}

func (c *LocalConnection) Capabilities() Capabilities {
	return Capabilities{Resize: true, FileBrowser: true}
}

// SetConnectionID binds the id files.* calls key this connection's
// file browser backend under.
func (c *LocalConnection) SetConnectionID(id string) {
	c.mu.Lock()
	c.connectionID = id
	c.mu.Unlock()
}

// FileBrowser returns this connection's file browsing capability,
// backed directly by the local filesystem; available even before
// Connect since it needs no live process.
func (c *LocalConnection) FileBrowser() (*filebrowser.ConnBackend, bool) {
	c.mu.Lock()
	connID := c.connectionID
	c.mu.Unlock()
	return &filebrowser.ConnBackend{ConnectionID: connID, Backend: filebrowser.NewLocalBackend()}, true
}

func (c *LocalConnection) Connect(ctx context.Context, settings any) error {
	var shell, cwd string
	var args []string
	var env map[string]string

	if c.wsl {
		s, ok := settings.(*config.WSLSettings)
		if !ok {
			return fmt.Errorf("connection: wsl expects *config.WSLSettings")
		}
		shell, cwd, env = s.Shell, s.Cwd, s.Env
		if shell == "" {
			shell = "sh"
		}
		program, resolvedArgs := spawner.ResolveShell("wsl:" + s.Distro)
		return c.spawn(program, append(resolvedArgs, shell), env, cwd, fmt.Sprintf("WSL: %s", s.Distro))
	}

	s, ok := settings.(*config.LocalSettings)
	if !ok {
		return fmt.Errorf("connection: local expects *config.LocalSettings")
	}
	shell, cwd, env, args = s.Shell, s.Cwd, s.Env, s.Args

	program, resolvedArgs := spawner.ResolveShell(shell)
	if len(args) > 0 {
		resolvedArgs = append(append([]string(nil), resolvedArgs...), args...)
	}
	return c.spawn(program, resolvedArgs, env, cwd, "Local Shell")
}

func (c *LocalConnection) spawn(program string, args []string, env map[string]string, cwd, title string) error {
	handle, err := spawner.NativeSpawner{}.SpawnCommand(program, args, spawner.Size{Cols: 80, Rows: 24}, env, cwd)
	if err != nil {
		return fmt.Errorf("connection: spawn %s: %w", program, err)
	}

	c.mu.Lock()
	c.proc = newProcessSession(handle, handle.Reader(), newRingBuffer(localBufferCapacity))
	c.title = title
	c.mu.Unlock()
	return nil
}

func (c *LocalConnection) Disconnect() error {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()
	if proc == nil {
		return nil
	}
	return proc.close()
}

func (c *LocalConnection) IsConnected() bool {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()
	return proc != nil && proc.isAlive()
}

func (c *LocalConnection) Write(data []byte) error {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()
	if proc == nil {
		return fmt.Errorf("connection: not connected")
	}
	return proc.write(data)
}

func (c *LocalConnection) Resize(cols, rows int) error {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()
	if proc == nil {
		return fmt.Errorf("connection: not connected")
	}
	return proc.resize(cols, rows)
}

func (c *LocalConnection) SubscribeOutput() <-chan []byte {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()
	if proc == nil {
		ch := make(chan []byte)
		close(ch)
		return ch
	}
	return proc.subscribeOutput()
}

func (c *LocalConnection) ExitCode() *int {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()
	if proc == nil {
		return nil
	}
	return proc.getExitCode()
}

func (c *LocalConnection) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title
}
