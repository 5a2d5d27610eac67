package filebrowser

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLocalBackendWriteReadStatDeleteRename(t *testing.T) {
	dir := t.TempDir()
	b := NewLocalBackend()
	path := filepath.Join(dir, "hello.txt")

	if err := b.Write(path, []byte("hello world")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := b.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("Read = %q", data)
	}

	entry, err := b.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if entry.IsDir || entry.Size != int64(len("hello world")) {
		t.Errorf("Stat = %+v", entry)
	}

	renamed := filepath.Join(dir, "renamed.txt")
	if err := b.Rename(path, renamed); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, err := os.Stat(renamed); err != nil {
		t.Errorf("expected renamed file to exist: %v", err)
	}

	if err := b.Delete(renamed); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(renamed); !os.IsNotExist(err) {
		t.Errorf("expected file to be gone after Delete, err=%v", err)
	}
}

func TestLocalBackendList(t *testing.T) {
	dir := t.TempDir()
	b := NewLocalBackend()
	for _, name := range []string{"a.txt", "b.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("setup write: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatalf("setup mkdir: %v", err)
	}

	entries, err := b.List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("List returned %d entries, want 3", len(entries))
	}
	var sawDir bool
	for _, e := range entries {
		if e.Name == "sub" {
			sawDir = true
			if !e.IsDir {
				t.Error("sub should report IsDir = true")
			}
		}
	}
	if !sawDir {
		t.Error("expected to see the sub directory in List results")
	}
}

func TestLocalBackendReadMissingFileErrors(t *testing.T) {
	b := NewLocalBackend()
	if _, err := b.Read(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("expected error reading a missing file")
	}
}
