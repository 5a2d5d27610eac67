// Package release handles agent binary naming and protocol
// compatibility: mapping a host's reported architecture to the release
// artifact suffix (§spec "Binary release naming"), and checking a
// spawned agent's reported protocol version against the desktop's own
// before trusting its session.
package release

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/armaxri/termiHub-sub001/internal/errs"
	"github.com/armaxri/termiHub-sub001/internal/sshtransport"
)

// ArtifactNameForArch maps a `uname -m` architecture string to the
// release artifact suffix, empty if the architecture isn't shipped.
func ArtifactNameForArch(unameArch string) string {
	switch unameArch {
	case "x86_64", "amd64":
		return "linux-x64"
	case "aarch64", "arm64":
		return "linux-arm64"
	case "armv7l", "armhf":
		return "linux-armv7"
	default:
		return ""
	}
}

// BinaryName returns the full release filename for an arch suffix, or
// an error if the architecture is unsupported.
func BinaryName(unameArch string) (string, error) {
	suffix := ArtifactNameForArch(unameArch)
	if suffix == "" {
		return "", errs.New(errs.NotFound, fmt.Sprintf("release: no agent binary for arch %q", unameArch))
	}
	return "termihub-agent-" + suffix, nil
}

// CheckCompatible compares a spawned agent's reported protocol version
// against the desktop's own. Any mismatch is a protocol error, never a
// silent downgrade — a v1 desktop talking to a v2 agent (or vice
// versa) cannot assume wire-format compatibility.
func CheckCompatible(agentVersion, desktopProtocolVersion string) error {
	agentVersion = strings.TrimSpace(agentVersion)
	desktopProtocolVersion = strings.TrimSpace(desktopProtocolVersion)
	if agentVersion == "" {
		return errs.New(errs.ProtocolError, "release: agent reported no protocol version")
	}
	if agentVersion != desktopProtocolVersion {
		return errs.New(errs.ProtocolError, fmt.Sprintf(
			"release: protocol version mismatch: agent=%s desktop=%s", agentVersion, desktopProtocolVersion))
	}
	return nil
}

// ProbeArch runs `uname -m` over an already-open SSH session to learn
// the remote host's architecture, ahead of deploying an agent binary.
func ProbeArch(ctx context.Context, sess *sshtransport.Session) (string, error) {
	out, err := sess.CombinedOutput(ctx, "uname -m")
	if err != nil {
		return "", errs.Wrap(errs.OperationFailed, "release: probe arch", err)
	}
	return strings.TrimSpace(out), nil
}

// CacheDir returns the local directory agent binaries are cached under,
// one subdirectory per version.
func CacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "termihub", "agent-binaries")
}

// CachedBinaryPath returns the expected local path for a cached binary
// of the given version and arch suffix.
func CachedBinaryPath(version, archSuffix string) string {
	return filepath.Join(CacheDir(), version, "termihub-agent-"+archSuffix)
}

// FindCachedBinary returns the local path of a cached binary if it
// exists and is non-empty.
func FindCachedBinary(version, archSuffix string) (string, bool) {
	path := CachedBinaryPath(version, archSuffix)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return "", false
	}
	return path, true
}

// Install uploads a local agent binary to a remote path over the
// session's SFTP subsystem and marks it executable, so a freshly
// probed host can run it in --stdio mode without a prior install step.
func Install(sess *sshtransport.Session, localPath, remotePath string) error {
	local, err := os.Open(localPath)
	if err != nil {
		return errs.Wrap(errs.Io, "release: open local binary", err)
	}
	defer local.Close()

	sftpClient, err := sess.SFTP()
	if err != nil {
		return errs.Wrap(errs.OperationFailed, "release: open sftp", err)
	}

	remote, err := sftpClient.Create(remotePath)
	if err != nil {
		return errs.Wrap(errs.Io, "release: create remote binary", err)
	}
	defer remote.Close()

	if _, err := io.Copy(remote, local); err != nil {
		return errs.Wrap(errs.Io, "release: upload binary", err)
	}
	if err := sftpClient.Chmod(remotePath, 0o755); err != nil {
		return errs.Wrap(errs.OperationFailed, "release: chmod remote binary", err)
	}
	return nil
}
