package sshtransport

import "testing"

func TestSessionRefCounting(t *testing.T) {
	s := &Session{}
	s.AcquireRef()
	s.AcquireRef()
	if s.ReleaseRef() {
		t.Fatal("ReleaseRef reported zero after 2 acquires, 1 release")
	}
	if !s.ReleaseRef() {
		t.Fatal("ReleaseRef did not report zero after matching releases")
	}
}

func TestPoolAcquireReusesSession(t *testing.T) {
	p := NewPool()
	dialCount := 0
	dial := func() (*Session, error) {
		dialCount++
		return &Session{}, nil
	}

	s1, err := p.Acquire("conn-1", dial)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	s2, err := p.Acquire("conn-1", dial)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if s1 != s2 {
		t.Fatal("second Acquire dialed a new session instead of reusing the pooled one")
	}
	if dialCount != 1 {
		t.Fatalf("dialCount = %d, want 1", dialCount)
	}
}

func TestPoolAcquireTwiceSharesOneEntryWithTwoRefs(t *testing.T) {
	p := NewPool()
	dial := func() (*Session, error) { return &Session{}, nil }

	if _, err := p.Acquire("conn-1", dial); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := p.Acquire("conn-1", dial); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	p.mu.Lock()
	_, stillPresent := p.sessions["conn-1"]
	p.mu.Unlock()
	if !stillPresent {
		t.Fatal("session missing before any release")
	}

	// Both acquires share the one entry, so it holds two references.
	s := p.sessions["conn-1"]
	s.refMu.Lock()
	refsBefore := s.refs
	s.refMu.Unlock()
	if refsBefore != 2 {
		t.Fatalf("refsBefore = %d, want 2", refsBefore)
	}
}
