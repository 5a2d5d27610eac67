package sshtransport

import (
	"fmt"
	"sync"
)

// Pool shares *Session instances across tunnel forwarders keyed by
// connection id. A session is closed once its last acquirer releases it.
type Pool struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{sessions: make(map[string]*Session)}
}

// Acquire returns the pooled session for connectionID, dialing via dial
// if none exists yet, and increments its reference count.
func (p *Pool) Acquire(connectionID string, dial func() (*Session, error)) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sess, ok := p.sessions[connectionID]; ok {
		sess.AcquireRef()
		return sess, nil
	}

	sess, err := dial()
	if err != nil {
		return nil, fmt.Errorf("sshtransport: pool dial %s: %w", connectionID, err)
	}
	sess.AcquireRef()
	p.sessions[connectionID] = sess
	return sess, nil
}

// Release decrements connectionID's reference count and closes the
// session if it reached zero.
func (p *Pool) Release(connectionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess, ok := p.sessions[connectionID]
	if !ok {
		return nil
	}
	if sess.ReleaseRef() {
		delete(p.sessions, connectionID)
		return sess.Close()
	}
	return nil
}
