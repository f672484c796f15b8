package store

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/arguslabs/argus/pkg/models"
)

// ReadRegistry returns all registered agents. A missing or corrupt registry
// reads as empty; registration must keep working after a bad write.
func (s *FileStore) ReadRegistry() []*models.AgentRegistryEntry {
	s.registryMu.Lock()
	defer s.registryMu.Unlock()
	return s.readRegistryLocked()
}

func (s *FileStore) readRegistryLocked() []*models.AgentRegistryEntry {
	data, err := os.ReadFile(s.registryPath)
	if err != nil {
		return nil
	}
	var entries []*models.AgentRegistryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("Agent registry unreadable, treating as empty", "error", err)
		return nil
	}
	return entries
}

// UpdateRegistry applies fn to the current registry under the registry lock
// and persists the result atomically. fn returning an error aborts without
// writing.
func (s *FileStore) UpdateRegistry(fn func([]*models.AgentRegistryEntry) ([]*models.AgentRegistryEntry, error)) error {
	s.registryMu.Lock()
	defer s.registryMu.Unlock()

	entries, err := fn(s.readRegistryLocked())
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []*models.AgentRegistryEntry{}
	}
	return writeJSONAtomic(s.registryPath, entries)
}

// RegistryCount returns the number of registered agents.
func (s *FileStore) RegistryCount() int {
	return len(s.ReadRegistry())
}
