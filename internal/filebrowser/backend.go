// Package filebrowser implements the file_browser capability §4.7/§6
// name but leave unspecified: List/Read/Write/Stat/Delete/Rename over
// a local filesystem, an SFTP-backed remote one, and a Docker one.
package filebrowser

import "os"

// Entry describes one filesystem entry, the shape every Backend
// returns from List/Stat.
type Entry struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	IsDir   bool   `json:"is_dir"`
	Size    int64  `json:"size"`
	ModTime int64  `json:"mod_time"`
	Mode    string `json:"mode"`
}

// Backend is one connection's file access surface.
type Backend interface {
	List(path string) ([]Entry, error)
	Read(path string) ([]byte, error)
	Write(path string, data []byte) error
	Stat(path string) (Entry, error)
	Delete(path string) error
	Rename(from, to string) error
}

// ConnBackend pairs a connection id with the Backend that serves it —
// the shape every ConnectionType's FileBrowser() accessor returns for
// a Registry to Register.
type ConnBackend struct {
	ConnectionID string
	Backend      Backend
}

func entryFromInfo(path string, info os.FileInfo) Entry {
	return Entry{
		Name:    info.Name(),
		Path:    path,
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime().Unix(),
		Mode:    info.Mode().String(),
	}
}
