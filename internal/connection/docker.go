package connection

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/armaxri/termiHub-sub001/internal/config"
	"github.com/armaxri/termiHub-sub001/internal/filebrowser"
	"github.com/armaxri/termiHub-sub001/internal/spawner"
)

// DockerConnection runs a container detached with `tail -f /dev/null`
// to keep it alive, then execs an interactive shell into it PTY-attached.
// Cleanup stops (and optionally removes) the container on disconnect.
type DockerConnection struct {
	mu           sync.Mutex
	proc         *processSession
	name         string
	image        string
	removeOnExit bool
	connectionID string
}

// NewDocker returns an unconnected Docker ConnectionType.
func NewDocker() ConnectionType { return &DockerConnection{} }

func (c *DockerConnection) Metadata() Metadata {
	return Metadata{TypeID: "docker", DisplayName: "Docker"}
}

func (c *DockerConnection) Capabilities() Capabilities {
	return Capabilities{Resize: true, FileBrowser: true}
}

// SetConnectionID binds the id files.* calls key this connection's
// file browser backend under; same role as SSHConnection's
// SetCredentials-assigned connectionID, minus the credential lookup
// Docker connections don't need.
func (c *DockerConnection) SetConnectionID(id string) {
	c.mu.Lock()
	c.connectionID = id
	c.mu.Unlock()
}

// FileBrowser returns this connection's file browsing capability,
// backed by `docker exec` against the running container.
func (c *DockerConnection) FileBrowser() (*filebrowser.ConnBackend, bool) {
	c.mu.Lock()
	name, connID, proc := c.name, c.connectionID, c.proc
	c.mu.Unlock()
	if proc == nil {
		return nil, false
	}
	return &filebrowser.ConnBackend{ConnectionID: connID, Backend: filebrowser.NewDockerBackend(name)}, true
}

func (c *DockerConnection) Connect(ctx context.Context, settings any) error {
	s, ok := settings.(*config.DockerSettings)
	if !ok {
		return fmt.Errorf("connection: docker expects *config.DockerSettings")
	}

	name := fmt.Sprintf("termihub-%s", uuid.NewString())
	if err := dockerRunDetached(ctx, name, s); err != nil {
		return err
	}

	shell := s.Shell
	if shell == "" {
		shell = "sh"
	}
	handle, err := spawner.NativeSpawner{}.SpawnCommand(
		"docker", []string{"exec", "-it", name, shell},
		spawner.Size{Cols: 80, Rows: 24}, nil, "",
	)
	if err != nil {
		exec.Command("docker", "rm", "-f", name).Run()
		return fmt.Errorf("connection: docker exec %s: %w", name, err)
	}

	c.mu.Lock()
	c.proc = newProcessSession(handle, handle.Reader(), newRingBuffer(localBufferCapacity))
	c.name = name
	c.image = s.Image
	c.removeOnExit = s.RemoveOnExit
	c.mu.Unlock()
	return nil
}

// dockerRunArgs builds the `docker run` argv that starts name detached
// with --init, keeping it alive via `tail -f /dev/null` so a later
// `docker exec` can attach an interactive shell.
func dockerRunArgs(name string, s *config.DockerSettings) []string {
	args := []string{"run", "-d", "--init", "--name", name}
	for k, v := range s.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	for _, vol := range s.Volumes {
		args = append(args, "-v", vol)
	}
	args = append(args, s.Image, "tail", "-f", "/dev/null")
	return args
}

func dockerRunDetached(ctx context.Context, name string, s *config.DockerSettings) error {
	out, err := exec.CommandContext(ctx, "docker", dockerRunArgs(name, s)...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("connection: docker run %s: %w: %s", s.Image, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (c *DockerConnection) Disconnect() error {
	c.mu.Lock()
	proc := c.proc
	name := c.name
	removeOnExit := c.removeOnExit
	c.mu.Unlock()
	if proc == nil {
		return nil
	}

	procErr := proc.close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	exec.CommandContext(ctx, "docker", "stop", "-t", "5", name).Run()
	if removeOnExit {
		exec.CommandContext(ctx, "docker", "rm", "-f", name).Run()
	}
	return procErr
}

func (c *DockerConnection) IsConnected() bool {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()
	return proc != nil && proc.isAlive()
}

func (c *DockerConnection) Write(data []byte) error {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()
	if proc == nil {
		return fmt.Errorf("connection: not connected")
	}
	return proc.write(data)
}

func (c *DockerConnection) Resize(cols, rows int) error {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()
	if proc == nil {
		return fmt.Errorf("connection: not connected")
	}
	return proc.resize(cols, rows)
}

func (c *DockerConnection) SubscribeOutput() <-chan []byte {
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

func (c *DockerConnection) ExitCode() *int {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()
	if proc == nil {
		return nil
	}
	return proc.getExitCode()
}

func (c *DockerConnection) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("Docker: %s", c.image)
}
