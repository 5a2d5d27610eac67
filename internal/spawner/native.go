package spawner

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// NativeSpawner starts a PTY-attached child process and directly owns the
// master side of the PTY, for sessions that don't need to outlive the
// spawning process.
type NativeSpawner struct{}

// NativeHandle wraps a live PTY-attached child process.
type NativeHandle struct {
	cmd  *exec.Cmd
	ptmx *os.File

	mu    sync.Mutex
	alive bool
}

var _ Handle = (*NativeHandle)(nil)

// SpawnShell resolves shell by name via ResolveShell, then spawns it
// PTY-attached.
func (NativeSpawner) SpawnShell(shellName string, size Size, env map[string]string, cwd string) (*NativeHandle, error) {
	program, args := ResolveShell(shellName)
	return spawn(program, args, size, env, cwd)
}

// SpawnCommand spawns program/args PTY-attached without shell resolution.
func (NativeSpawner) SpawnCommand(program string, args []string, size Size, env map[string]string, cwd string) (*NativeHandle, error) {
	return spawn(program, args, size, env, cwd)
}

func spawn(program string, args []string, size Size, env map[string]string, cwd string) (*NativeHandle, error) {
	cmd := exec.Command(program, args...)
	cmd.Env = mergeEnv(env)
	if cwd != "" {
		cmd.Dir = cwd
	}
	// New session so the PTY becomes the child's controlling terminal and
	// signals sent to the session don't also hit our own process group.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: size.Cols, Rows: size.Rows})
	if err != nil {
		return nil, fmt.Errorf("spawner: start pty: %w", err)
	}

	h := &NativeHandle{cmd: cmd, ptmx: ptmx, alive: true}
	go h.wait()
	return h, nil
}

func mergeEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

func (h *NativeHandle) wait() {
	h.cmd.Wait()
	h.mu.Lock()
	h.alive = false
	h.mu.Unlock()
}

// Reader exposes the PTY master for the caller's output-reading loop.
func (h *NativeHandle) Reader() *os.File { return h.ptmx }

func (h *NativeHandle) WriteInput(data []byte) error {
	_, err := h.ptmx.Write(data)
	if err != nil {
		return fmt.Errorf("spawner: write input: %w", err)
	}
	return nil
}

func (h *NativeHandle) Resize(cols, rows uint16) error {
	if err := pty.Setsize(h.ptmx, &pty.Winsize{Cols: cols, Rows: rows}); err != nil {
		return fmt.Errorf("spawner: resize: %w", err)
	}
	return nil
}

func (h *NativeHandle) Close() error {
	h.ptmx.Close()
	if h.cmd.Process != nil {
		h.cmd.Process.Kill()
	}
	return nil
}

func (h *NativeHandle) IsAlive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alive
}

// ExitCode returns the child's exit code once it has exited, or -1 while
// still running or if the exit code is otherwise unavailable.
func (h *NativeHandle) ExitCode() int {
	if h.cmd.ProcessState == nil {
		return -1
	}
	return h.cmd.ProcessState.ExitCode()
}
