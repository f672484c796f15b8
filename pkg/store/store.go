// Package store persists sessions, step journals, quality issues and the
// agent registry as JSON files under a single log root.
//
// Layout:
//
//	<root>/sessions/{session_id}.json
//	<root>/steps/{YYYYMMDD}.jsonl
//	<root>/issues/{issue_id}.json
//	<root>/agents_registry.json
//	<root>/config.json
//	<root>/workspace/{session_id}/
//
// All writes that replace a file go through a temp file + rename so a crash
// mid-write never leaves a truncated document behind.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is a thread-safe JSON file store for one log root.
type FileStore struct {
	base         string
	sessionsDir  string
	stepsDir     string
	issuesDir    string
	workspaceDir string
	registryPath string
	configPath   string

	sessionMu  sync.Mutex
	journalMu  sync.Mutex
	issueMu    sync.Mutex
	registryMu sync.Mutex
}

// New creates a store rooted at baseDir, creating the directory layout.
// The base dir is resolved to an absolute path up front so later working
// directory changes in the host process cannot break file access.
func New(baseDir string) (*FileStore, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve log root: %w", err)
	}
	s := &FileStore{
		base:         abs,
		sessionsDir:  filepath.Join(abs, "sessions"),
		stepsDir:     filepath.Join(abs, "steps"),
		issuesDir:    filepath.Join(abs, "issues"),
		workspaceDir: filepath.Join(abs, "workspace"),
		registryPath: filepath.Join(abs, "agents_registry.json"),
		configPath:   filepath.Join(abs, "config.json"),
	}
	for _, dir := range []string{s.sessionsDir, s.stepsDir, s.issuesDir, s.workspaceDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return s, nil
}

// BaseDir returns the log root.
func (s *FileStore) BaseDir() string { return s.base }

// SessionsDir returns the sessions directory.
func (s *FileStore) SessionsDir() string { return s.sessionsDir }

// ConfigPath returns the location of config.json under the log root.
func (s *FileStore) ConfigPath() string { return s.configPath }

// EnsureWorkspace creates and returns the per-session scratch directory.
// The ingest service provisions it so session-scoped artifacts (shadow
// verification fetches, exports) have a stable home.
func (s *FileStore) EnsureWorkspace(sessionID string) (string, error) {
	dir := filepath.Join(s.workspaceDir, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}
	return dir, nil
}

// ProbeWrite verifies the log root is writable by creating and removing
// a scratch file. Used by the health endpoint.
func (s *FileStore) ProbeWrite() error {
	f, err := os.CreateTemp(s.base, ".healthcheck-*")
	if err != nil {
		return fmt.Errorf("failed to write to %s: %w", s.base, err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("failed to close probe file: %w", err)
	}
	return os.Remove(name)
}

// Counts reports how many files each area holds, for the runtime config
// report and health checks.
func (s *FileStore) Counts() (sessions, stepFiles, issueFiles int) {
	sessions = countGlob(filepath.Join(s.sessionsDir, "*.json"))
	stepFiles = countGlob(filepath.Join(s.stepsDir, "*.jsonl"))
	issueFiles = countGlob(filepath.Join(s.issuesDir, "*.json"))
	return sessions, stepFiles, issueFiles
}

func countGlob(pattern string) int {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return 0
	}
	return len(matches)
}

// writeJSONAtomic writes v as indented JSON via a temp file + rename.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
