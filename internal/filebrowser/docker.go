package filebrowser

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path"
	"strconv"
	"strings"
	"time"
)

// dockerTimeout bounds every docker exec invocation this backend
// issues, matching DockerConnection's own stop/remove timeouts.
const dockerTimeout = 10 * time.Second

// DockerBackend serves a Backend by execing into a running container,
// grounded on internal/connection/docker.go's exec.Command usage.
// Containers are assumed Linux (GNU coreutils ls/stat/mv/rm).
type DockerBackend struct {
	Container string
}

// NewDockerBackend wraps container.
func NewDockerBackend(container string) Backend { return &DockerBackend{Container: container} }

func (b *DockerBackend) exec(args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dockerTimeout)
	defer cancel()
	full := append([]string{"exec", b.Container}, args...)
	return exec.CommandContext(ctx, "docker", full...).CombinedOutput()
}

func (b *DockerBackend) List(dir string) ([]Entry, error) {
	out, err := b.exec("ls", "-la", "--time-style=+%s", dir)
	if err != nil {
		return nil, fmt.Errorf("filebrowser: docker list %s: %w: %s", dir, err, strings.TrimSpace(string(out)))
	}
	return parseLsOutput(dir, string(out))
}

// parseLsOutput parses `ls -la --time-style=+%s`'s output, whose
// unix-seconds mtime column makes size/mtime extraction trivial
// regardless of locale. Entries whose name contains spaces (column 7+)
// are rejoined since ls has no quoting mode that's both portable and
// guaranteed to exist across container base images.
func parseLsOutput(dir, out string) ([]Entry, error) {
	var entries []Entry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "total ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 7 {
			continue
		}
		name := strings.Join(fields[6:], " ")
		if name == "." || name == ".." {
			continue
		}
		size, _ := strconv.ParseInt(fields[4], 10, 64)
		modUnix, _ := strconv.ParseInt(fields[5], 10, 64)
		entries = append(entries, Entry{
			Name: name, Path: path.Join(dir, name), IsDir: strings.HasPrefix(fields[0], "d"),
			Size: size, ModTime: modUnix, Mode: fields[0],
		})
	}
	return entries, nil
}

func (b *DockerBackend) Read(filePath string) ([]byte, error) {
	out, err := b.exec("cat", filePath)
	if err != nil {
		return nil, fmt.Errorf("filebrowser: docker read %s: %w: %s", filePath, err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

func (b *DockerBackend) Write(filePath string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), dockerTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "exec", "-i", b.Container, "sh", "-c", "cat > "+shellQuote(filePath))
	cmd.Stdin = bytes.NewReader(data)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("filebrowser: docker write %s: %w: %s", filePath, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (b *DockerBackend) Stat(filePath string) (Entry, error) {
	out, err := b.exec("stat", "-c", "%s %Y %F", filePath)
	if err != nil {
		return Entry{}, fmt.Errorf("filebrowser: docker stat %s: %w: %s", filePath, err, strings.TrimSpace(string(out)))
	}
	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) < 3 {
		return Entry{}, fmt.Errorf("filebrowser: docker stat %s: unexpected output %q", filePath, out)
	}
	size, _ := strconv.ParseInt(fields[0], 10, 64)
	modUnix, _ := strconv.ParseInt(fields[1], 10, 64)
	kind := strings.Join(fields[2:], " ")
	return Entry{
		Name: path.Base(filePath), Path: filePath, IsDir: kind == "directory",
		Size: size, ModTime: modUnix, Mode: kind,
	}, nil
}

func (b *DockerBackend) Delete(filePath string) error {
	out, err := b.exec("rm", "-rf", filePath)
	if err != nil {
		return fmt.Errorf("filebrowser: docker delete %s: %w: %s", filePath, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (b *DockerBackend) Rename(from, to string) error {
	out, err := b.exec("mv", from, to)
	if err != nil {
		return fmt.Errorf("filebrowser: docker rename %s -> %s: %w: %s", from, to, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// shellQuote wraps s in single quotes for safe use inside a remote `sh
// -c` argument, escaping any embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
