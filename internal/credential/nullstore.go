package credential

// NullStore discards everything. Used when the user disables credential
// storage; Set succeeds silently and Get always misses.
type NullStore struct{}

var _ Store = NullStore{}

func (NullStore) Get(Key) (string, bool, error) { return "", false, nil }
func (NullStore) Set(Key, string) error         { return nil }
func (NullStore) Remove(Key) error              { return nil }
func (NullStore) RemoveAllForConnection(string) error { return nil }
func (NullStore) ListKeys() ([]Key, error)      { return nil, nil }
func (NullStore) Status() Status                { return StatusUnlocked }
