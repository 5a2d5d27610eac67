package agentserver

import (
	"context"

	"github.com/armaxri/termiHub-sub001/internal/filebrowser"
	"github.com/armaxri/termiHub-sub001/internal/monitoring"
)

// MonitoringProvider backs the monitoring.* methods; implemented by
// internal/monitoring. host "self" monitors the agent's own machine,
// any other value is a connection id resolved to an SSH monitoring
// provider.
type MonitoringProvider interface {
	// Subscribe starts periodic sampling at intervalMs (clamped to a
	// 500ms minimum, defaulting to 2000ms when 0) and returns a channel
	// of already-JSON-encoded monitoring.data payloads; it closes when
	// ctx is cancelled or Unsubscribe(host) is called.
	Subscribe(ctx context.Context, host string, intervalMs int) (<-chan []byte, error)
	Unsubscribe(host string)

	// RegisterHost and UnregisterHost bind/unbind a connection id to a
	// Collector, so that a later monitoring.subscribe{host: connectionID}
	// resolves it. handleSessionCreate/handleSessionClose call these for
	// any connection whose optional Monitoring() accessor reports true.
	RegisterHost(connectionID string, collector monitoring.Collector)
	UnregisterHost(connectionID string)
}

// FileProvider backs the files.* methods; implemented by
// internal/filebrowser. Read/Write pass already-decoded bytes; base64
// framing is the dispatcher's concern, not the provider's.
type FileProvider interface {
	List(connectionID, path string) ([]byte, error)
	Read(connectionID, path string) ([]byte, error)
	Write(connectionID, path string, data []byte) error
	Stat(connectionID, path string) ([]byte, error)
	Delete(connectionID, path string) error
	Rename(connectionID, from, to string) error

	// RegisterBackend and UnregisterBackend bind/unbind a connection id
	// to a Backend, mirroring RegisterHost/UnregisterHost above.
	RegisterBackend(connectionID string, backend filebrowser.Backend)
	UnregisterBackend(connectionID string)
}
