package monitoring

import "github.com/armaxri/termiHub-sub001/internal/sshtransport"

// SSHProvider is the monitoring capability an SSH-backed ConnectionType
// exposes once connected (internal/connection's optional-capability
// accessor pattern: Monitoring() (*monitoring.SSHProvider, bool)).
// Callers register its Collector into a Dispatcher's HostRegistry
// under ConnectionID and unregister it on disconnect.
type SSHProvider struct {
	ConnectionID string
	Collector    Collector
}

// NewSSHProvider builds the provider for an already-connected session.
func NewSSHProvider(connectionID string, sess *sshtransport.Session) *SSHProvider {
	return &SSHProvider{ConnectionID: connectionID, Collector: NewSSHCollector(sess)}
}
