package agentclient

import (
	"fmt"
	"sync"
)

// Manager shares one Client per remote agent across every RemoteProxy
// session that targets it, the same reference-counted pool shape as
// sshtransport.Pool shares *Session across tunnel forwarders.
type Manager struct {
	mu      sync.Mutex
	clients map[string]*refCountedClient
}

type refCountedClient struct {
	client *Client
	refs   int
}

// NewManager returns an empty agent connection manager.
func NewManager() *Manager {
	return &Manager{clients: make(map[string]*refCountedClient)}
}

// Obtain returns the shared Client for agentID, dialing via dial if
// none is open yet, and increments its reference count. Each Obtain
// must be matched by a Release.
func (m *Manager) Obtain(agentID string, dial func() (*Client, error)) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rc, ok := m.clients[agentID]; ok {
		rc.refs++
		return rc.client, nil
	}

	client, err := dial()
	if err != nil {
		return nil, fmt.Errorf("agentclient: dial %s: %w", agentID, err)
	}
	m.clients[agentID] = &refCountedClient{client: client, refs: 1}
	return client, nil
}

// Release decrements agentID's reference count and closes its Client
// once it reaches zero.
func (m *Manager) Release(agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rc, ok := m.clients[agentID]
	if !ok {
		return nil
	}
	rc.refs--
	if rc.refs <= 0 {
		delete(m.clients, agentID)
		return rc.client.Close()
	}
	return nil
}
