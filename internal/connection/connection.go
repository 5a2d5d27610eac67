// Package connection implements the ConnectionType abstraction: the
// uniform capability surface every transport (local shell, SSH, serial,
// telnet, Docker, WSL, or a remote agent proxy) exposes to the Session
// Manager.
package connection

import "context"

// Capabilities describes what a ConnectionType instance supports.
type Capabilities struct {
	Resize      bool
	Monitoring  bool
	FileBrowser bool
}

// Metadata is the static identity of a ConnectionType implementation.
type Metadata struct {
	TypeID      string
	DisplayName string
}

// ConnectionType is the contract every transport implements: lifecycle,
// byte-stream I/O, and an output subscription that a new call replaces.
type ConnectionType interface {
	Metadata() Metadata
	Capabilities() Capabilities

	Connect(ctx context.Context, settings any) error
	Disconnect() error
	IsConnected() bool

	Write(data []byte) error
	Resize(cols, rows int) error

	// SubscribeOutput returns a channel of output chunks. Calling it
	// again replaces the previous subscription. The channel closes when
	// the session ends (process exit, transport error, or Disconnect).
	SubscribeOutput() <-chan []byte

	// ExitCode reports the process/transport exit code once the output
	// channel has closed; nil while still running or when unknown.
	ExitCode() *int

	// Title is a human-readable label derived at connect time, e.g.
	// "ssh: user@host" or "Docker: alpine".
	Title() string
}

// Optional capabilities (monitoring and file-browser access) are
// exposed by concrete implementations as typed accessors — e.g. SSH's
// Monitoring() (*monitoring.SSHProvider, bool) — rather than through a
// shared interface here, since their result types come from
// internal/monitoring and internal/filebrowser and differ per backend.
