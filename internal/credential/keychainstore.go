package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

// keychainService is the fixed OS secret-service identifier under which
// every credential is stored, regardless of connection.
const keychainService = "termihub"

// sentinelKey is probed once at construction to decide whether the OS
// secret service backing this store is reachable at all.
const sentinelKey = "__termihub_sentinel__"

// KeychainStore wraps an OS-native secret service (Keychain, Secret
// Service, wincred, ...) via 99designs/keyring.
type KeychainStore struct {
	ring      keyring.Keyring
	available bool
}

var _ Store = (*KeychainStore)(nil)

// NewKeychainStore opens the OS keychain backend under the fixed service
// name and probes a sentinel entry to determine availability.
func NewKeychainStore() (*KeychainStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keychainService,
	})
	if err != nil {
		return nil, fmt.Errorf("credential: open keychain: %w", err)
	}

	s := &KeychainStore{ring: ring}
	_, err = ring.Get(sentinelKey)
	s.available = err == nil || errors.Is(err, keyring.ErrKeyNotFound)
	return s, nil
}

func keychainUsername(key Key) string {
	return key.String()
}

func (s *KeychainStore) Get(key Key) (string, bool, error) {
	item, err := s.ring.Get(keychainUsername(key))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("credential: keychain get: %w", err)
	}
	return string(item.Data), true, nil
}

func (s *KeychainStore) Set(key Key, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:  keychainUsername(key),
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("credential: keychain set: %w", err)
	}
	return nil
}

func (s *KeychainStore) Remove(key Key) error {
	err := s.ring.Remove(keychainUsername(key))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("credential: keychain remove: %w", err)
	}
	return nil
}

// RemoveAllForConnection removes both well-known credential types for a
// connection; the keyring API offers no enumeration to find others.
func (s *KeychainStore) RemoveAllForConnection(connectionID string) error {
	for _, t := range []CredentialType{CredentialPassword, CredentialKeyPassphrase} {
		if err := s.Remove(Key{ConnectionID: connectionID, Type: t}); err != nil {
			return err
		}
	}
	return nil
}

// ListKeys always returns empty: OS secret-service APIs do not support
// enumeration, and callers that need to walk credentials probe by known
// connection ids instead.
func (s *KeychainStore) ListKeys() ([]Key, error) {
	return nil, nil
}

func (s *KeychainStore) Status() Status {
	if !s.available {
		return StatusUnavailable
	}
	return StatusUnlocked
}
