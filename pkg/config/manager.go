package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Manager holds the current runtime config behind a mutex so API handlers,
// the monitor hook and the file watcher can share one instance.
type Manager struct {
	path string

	mu  sync.RWMutex
	cur *Config
}

// NewManager loads config.json at path and returns a manager around it.
// Load failures fall back to defaults with a warning rather than refusing
// to start.
func NewManager(path string) *Manager {
	cfg, err := Load(path)
	if err != nil {
		slog.Warn("Config load failed, using defaults", "path", path, "error", err)
	}
	return &Manager{path: path, cur: cfg}
}

// Current returns the active config snapshot. Callers must treat it as
// read-only; updates go through Apply.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// Path returns the config file location.
func (m *Manager) Path() string {
	return m.path
}

// Exists reports whether config.json has been written yet.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Reload re-reads config.json and swaps the active snapshot.
func (m *Manager) Reload() error {
	cfg, err := Load(m.path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.cur = cfg
	m.mu.Unlock()
	return nil
}

// Apply merges an update payload into a copy of the current config,
// persists it, and swaps the active snapshot. Returns the applied keys and
// the new config.
func (m *Manager) Apply(updates map[string]any) ([]string, *Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.cur.Clone()
	applied, err := next.ApplyUpdates(updates)
	if err != nil {
		return nil, nil, err
	}
	if err := Save(m.path, next); err != nil {
		return nil, nil, err
	}
	m.cur = next
	return applied, next, nil
}

// Watcher reloads the manager when config.json changes on disk, so edits
// made outside the API (or by another process) take effect without a
// restart.
type Watcher struct {
	manager *Manager

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a watcher bound to the given manager.
func NewWatcher(manager *Manager) *Watcher {
	return &Watcher{manager: manager}
}

// Start launches the background watch loop.
func (w *Watcher) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory, not the file: atomic saves replace the file by
	// rename, which would silently detach a file-level watch.
	dir := filepath.Dir(w.manager.Path())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fw.Close()
		return err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	go w.run(ctx, fw)

	slog.Info("Config watcher started", "path", w.manager.Path())
	return nil
}

// Stop signals the watch loop to exit and waits for it to finish.
func (w *Watcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	slog.Info("Config watcher stopped")
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	defer close(w.done)
	defer fw.Close()

	name := filepath.Base(w.manager.Path())
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			if err := w.manager.Reload(); err != nil {
				slog.Error("Config reload failed", "path", ev.Name, "error", err)
				continue
			}
			slog.Info("Config reloaded", "path", ev.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", "error", err)
		}
	}
}
