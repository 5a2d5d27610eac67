package filebrowser

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Registry implements agentserver.FileProvider: it routes each call to
// the Backend registered under connectionID, with "" and "local"
// always resolving to a local filesystem backend.
type Registry struct {
	local Backend

	mu       sync.Mutex
	backends map[string]Backend
}

// NewRegistry returns a Registry with only the local backend wired.
func NewRegistry() *Registry {
	return &Registry{local: NewLocalBackend(), backends: make(map[string]Backend)}
}

// Register binds connectionID to b, replacing any prior backend for
// the same id. ConnectionType implementations do this once File
// Browser capability becomes available (at connect time); the caller
// un-registers on disconnect.
func (r *Registry) Register(connectionID string, b Backend) {
	r.mu.Lock()
	r.backends[connectionID] = b
	r.mu.Unlock()
}

// Unregister removes connectionID.
func (r *Registry) Unregister(connectionID string) {
	r.mu.Lock()
	delete(r.backends, connectionID)
	r.mu.Unlock()
}

// RegisterBackend implements agentserver.FileProvider's registration
// half; it's Register under the name that interface expects.
func (r *Registry) RegisterBackend(connectionID string, b Backend) {
	r.Register(connectionID, b)
}

// UnregisterBackend implements agentserver.FileProvider's
// unregistration half.
func (r *Registry) UnregisterBackend(connectionID string) {
	r.Unregister(connectionID)
}

func (r *Registry) resolve(connectionID string) (Backend, error) {
	if connectionID == "" || connectionID == "local" {
		return r.local, nil
	}
	r.mu.Lock()
	b, ok := r.backends[connectionID]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("filebrowser: no backend registered for connection %q", connectionID)
	}
	return b, nil
}

func (r *Registry) List(connectionID, path string) ([]byte, error) {
	b, err := r.resolve(connectionID)
	if err != nil {
		return nil, err
	}
	entries, err := b.List(path)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entries)
}

func (r *Registry) Read(connectionID, path string) ([]byte, error) {
	b, err := r.resolve(connectionID)
	if err != nil {
		return nil, err
	}
	return b.Read(path)
}

func (r *Registry) Write(connectionID, path string, data []byte) error {
	b, err := r.resolve(connectionID)
	if err != nil {
		return err
	}
	return b.Write(path, data)
}

func (r *Registry) Stat(connectionID, path string) ([]byte, error) {
	b, err := r.resolve(connectionID)
	if err != nil {
		return nil, err
	}
	entry, err := b.Stat(path)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entry)
}

func (r *Registry) Delete(connectionID, path string) error {
	b, err := r.resolve(connectionID)
	if err != nil {
		return err
	}
	return b.Delete(path)
}

func (r *Registry) Rename(connectionID, from, to string) error {
	b, err := r.resolve(connectionID)
	if err != nil {
		return err
	}
	return b.Rename(from, to)
}
