package filebrowser

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/sftp"
)

// SFTPBackend serves a Backend over an already-open *sftp.Client,
// reusing the connection's lazily-opened SFTP subsession per §4.8.
type SFTPBackend struct {
	client *sftp.Client
}

// NewSFTPBackend wraps client.
func NewSFTPBackend(client *sftp.Client) Backend { return &SFTPBackend{client: client} }

func (b *SFTPBackend) List(path string) ([]Entry, error) {
	infos, err := b.client.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("filebrowser: sftp list %s: %w", path, err)
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, entryFromInfo(sftpJoin(path, info.Name()), info))
	}
	return entries, nil
}

func (b *SFTPBackend) Read(path string) ([]byte, error) {
	f, err := b.client.Open(path)
	if err != nil {
		return nil, fmt.Errorf("filebrowser: sftp open %s: %w", path, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("filebrowser: sftp read %s: %w", path, err)
	}
	return data, nil
}

func (b *SFTPBackend) Write(path string, data []byte) error {
	f, err := b.client.Create(path)
	if err != nil {
		return fmt.Errorf("filebrowser: sftp create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("filebrowser: sftp write %s: %w", path, err)
	}
	return nil
}

func (b *SFTPBackend) Stat(path string) (Entry, error) {
	info, err := b.client.Stat(path)
	if err != nil {
		return Entry{}, fmt.Errorf("filebrowser: sftp stat %s: %w", path, err)
	}
	return entryFromInfo(path, info), nil
}

func (b *SFTPBackend) Delete(path string) error {
	if err := b.client.Remove(path); err != nil {
		return fmt.Errorf("filebrowser: sftp delete %s: %w", path, err)
	}
	return nil
}

func (b *SFTPBackend) Rename(from, to string) error {
	if err := b.client.Rename(from, to); err != nil {
		return fmt.Errorf("filebrowser: sftp rename %s -> %s: %w", from, to, err)
	}
	return nil
}

func sftpJoin(dir, name string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}
