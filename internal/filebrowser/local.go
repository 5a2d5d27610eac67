package filebrowser

import (
	"fmt"
	"os"
	"path/filepath"
)

// LocalBackend serves List/Read/Write/Stat/Delete/Rename directly
// against the local filesystem.
type LocalBackend struct{}

// NewLocalBackend returns the local filesystem backend.
func NewLocalBackend() Backend { return LocalBackend{} }

func (LocalBackend) List(path string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("filebrowser: list %s: %w", path, err)
	}
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, entryFromInfo(filepath.Join(path, de.Name()), info))
	}
	return entries, nil
}

func (LocalBackend) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("filebrowser: read %s: %w", path, err)
	}
	return data, nil
}

func (LocalBackend) Write(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("filebrowser: write %s: %w", path, err)
	}
	return nil
}

func (LocalBackend) Stat(path string) (Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, fmt.Errorf("filebrowser: stat %s: %w", path, err)
	}
	return entryFromInfo(path, info), nil
}

func (LocalBackend) Delete(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("filebrowser: delete %s: %w", path, err)
	}
	return nil
}

func (LocalBackend) Rename(from, to string) error {
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("filebrowser: rename %s -> %s: %w", from, to, err)
	}
	return nil
}
