package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// MasterState is the master-password store's lifecycle.
type MasterState int

const (
	StateNotSetUp MasterState = iota
	StateLocked
	StateUnlocked
)

// MasterStore persists every credential as a single JSON map, itself
// sealed inside one Envelope on disk.
type MasterStore struct {
	path string

	mu       sync.Mutex
	state    MasterState
	env      *Envelope       // always present once NotSetUp has been left
	password string          // only while Unlocked
	secrets  map[string]string // only while Unlocked; key.String() -> value

	onActivity func()
}

var _ Store = (*MasterStore)(nil)

// NewMasterStore loads path if it exists (state Locked) or starts fresh
// (state NotSetUp). onActivity, if non-nil, is called after every
// successful get/set/remove/list to reset an AutoLockTimer.
func NewMasterStore(path string, onActivity func()) (*MasterStore, error) {
	s := &MasterStore{path: path, onActivity: onActivity}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.state = StateNotSetUp
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credential: read store file: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("credential: parse store file: %w", err)
	}
	s.env = &env
	s.state = StateLocked
	return s, nil
}

// Setup creates a fresh envelope with a new salt and an empty secret map.
// It is an error to call Setup when the store already exists on disk.
func (s *MasterStore) Setup(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateNotSetUp {
		return fmt.Errorf("credential: store already set up")
	}

	s.secrets = map[string]string{}
	s.password = password
	s.state = StateUnlocked
	return s.persistLocked()
}

// Unlock derives the key from password and the stored KDF parameters and
// decrypts. A wrong password fails identically to corrupted data.
func (s *MasterStore) Unlock(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateUnlocked {
		return nil
	}
	if s.env == nil {
		return fmt.Errorf("credential: store not set up")
	}

	plaintext, err := Open(s.env, password)
	if err != nil {
		return err
	}

	var secrets map[string]string
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return ErrWrongPasswordOrCorrupted
	}

	s.secrets = secrets
	s.password = password
	s.state = StateUnlocked
	return nil
}

// Lock discards the derived key and in-memory secrets without touching
// the file on disk.
func (s *MasterStore) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockLocked()
}

func (s *MasterStore) lockLocked() {
	s.password = ""
	s.secrets = nil
	if s.state == StateUnlocked {
		s.state = StateLocked
	}
}

// ChangePassword re-encrypts the plaintext map under a new salt/nonce.
// oldPassword must match the currently stored password whether or not
// the store is presently unlocked.
func (s *MasterStore) ChangePassword(oldPassword, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnlocked {
		if s.env == nil {
			return fmt.Errorf("credential: store not set up")
		}
		plaintext, err := Open(s.env, oldPassword)
		if err != nil {
			return err
		}
		var secrets map[string]string
		if err := json.Unmarshal(plaintext, &secrets); err != nil {
			return ErrWrongPasswordOrCorrupted
		}
		s.secrets = secrets
	} else if s.password != oldPassword {
		return ErrWrongPasswordOrCorrupted
	}

	s.password = newPassword
	s.state = StateUnlocked
	return s.persistLocked()
}

func (s *MasterStore) Get(key Key) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return "", false, nil
	}
	v, ok := s.secrets[key.String()]
	s.touch()
	return v, ok, nil
}

func (s *MasterStore) Set(key Key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return fmt.Errorf("credential: store is %s", s.stateLocked())
	}
	s.secrets[key.String()] = value
	if err := s.persistLocked(); err != nil {
		return err
	}
	s.touch()
	return nil
}

func (s *MasterStore) Remove(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return fmt.Errorf("credential: store is %s", s.stateLocked())
	}
	delete(s.secrets, key.String())
	if err := s.persistLocked(); err != nil {
		return err
	}
	s.touch()
	return nil
}

func (s *MasterStore) RemoveAllForConnection(connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return fmt.Errorf("credential: store is %s", s.stateLocked())
	}
	for _, t := range []CredentialType{CredentialPassword, CredentialKeyPassphrase} {
		delete(s.secrets, (Key{ConnectionID: connectionID, Type: t}).String())
	}
	if err := s.persistLocked(); err != nil {
		return err
	}
	s.touch()
	return nil
}

func (s *MasterStore) ListKeys() ([]Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnlocked {
		return nil, nil
	}
	keys := make([]Key, 0, len(s.secrets))
	for k := range s.secrets {
		ck, err := parseKey(k)
		if err != nil {
			continue
		}
		keys = append(keys, ck)
	}
	s.touch()
	return keys, nil
}

func (s *MasterStore) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateUnlocked:
		return StatusUnlocked
	default:
		return StatusLocked
	}
}

// touch notifies the auto-lock timer of activity. Must be called with mu
// held, after the operation that counts as activity has completed.
func (s *MasterStore) touch() {
	if s.onActivity != nil {
		s.onActivity()
	}
}

func (s *MasterStore) stateLocked() string {
	switch s.state {
	case StateNotSetUp:
		return "not set up"
	case StateLocked:
		return "locked"
	default:
		return "unlocked"
	}
}

// persistLocked seals the current secret map and writes it atomically.
// Caller must hold mu and s.state must be StateUnlocked.
func (s *MasterStore) persistLocked() error {
	plaintext, err := json.Marshal(s.secrets)
	if err != nil {
		return fmt.Errorf("credential: marshal secrets: %w", err)
	}

	env, err := Seal(s.password, plaintext)
	if err != nil {
		return err
	}
	s.env = env

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("credential: marshal envelope: %w", err)
	}

	return writeFileAtomic(s.path, data, 0o600)
}

func parseKey(s string) (Key, error) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return Key{ConnectionID: s[:i], Type: CredentialType(s[i+1:])}, nil
		}
	}
	return Key{}, fmt.Errorf("credential: malformed key %q", s)
}

// writeFileAtomic writes to a temp file in the same directory then renames
// over the destination, so a crash mid-write never leaves a truncated
// envelope on disk.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("credential: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("credential: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("credential: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("credential: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("credential: rename temp file: %w", err)
	}
	return nil
}
