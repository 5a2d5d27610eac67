package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Warning is surfaced after a corrupt configuration or settings file has
// been backed up and replaced with defaults, so the UI can inform the
// user once.
type Warning struct {
	FileName string
	Message  string
	Details  string
}

// WarningSink collects recovery warnings for the UI to drain once.
type WarningSink struct {
	mu       sync.Mutex
	warnings []Warning
}

func (s *WarningSink) add(w Warning) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, w)
}

// Drain returns and clears all pending warnings.
func (s *WarningSink) Drain() []Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.warnings
	s.warnings = nil
	return out
}

// LoadWithRecovery calls parse(data) against the contents of path. If
// parse fails, the corrupt file is backed up to path+".bak" (best effort —
// a backup failure is logged into the warning's Details, not returned),
// a Warning is recorded in sink, and parse is retried against defaultData
// so the caller still gets a usable value. A missing file is not a
// failure and does not produce a warning.
func LoadWithRecovery(path string, defaultData []byte, sink *WarningSink, parse func([]byte) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	if parseErr := parse(data); parseErr == nil {
		return nil
	} else {
		details := ""
		if backupErr := os.WriteFile(path+".bak", data, 0o644); backupErr != nil {
			details = fmt.Sprintf("backup failed: %v", backupErr)
		}
		sink.add(Warning{
			FileName: path,
			Message:  fmt.Sprintf("corrupt file replaced with defaults: %v", parseErr),
			Details:  details,
		})
		return parse(defaultData)
	}
}

// SettingsWatcher watches a directory of per-connection settings files and
// invokes onChange whenever one is created, written, or removed, so a
// corrupt-file recovery event (or an external edit) surfaces promptly
// instead of only at next load.
type SettingsWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchSettingsDir starts watching dir. Call Close to stop.
func WatchSettingsDir(dir string, onChange func(path string)) (*SettingsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: new watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("config: watch %s: %w", dir, err)
	}

	sw := &SettingsWatcher{watcher: w, done: make(chan struct{})}
	go sw.run(onChange)
	return sw, nil
}

func (sw *SettingsWatcher) run(onChange func(path string)) {
	for {
		select {
		case <-sw.done:
			return
		case ev, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) {
				onChange(ev.Name)
			}
		case _, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher.
func (sw *SettingsWatcher) Close() error {
	close(sw.done)
	return sw.watcher.Close()
}
