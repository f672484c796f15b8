package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arguslabs/argus/pkg/metrics"
	"github.com/arguslabs/argus/pkg/models"
	"github.com/arguslabs/argus/pkg/store"
)

// RegistryService manages the agent registry fed by hook self-registration.
type RegistryService struct {
	store *store.FileStore
}

// NewRegistryService creates a registry service backed by the given store.
func NewRegistryService(st *store.FileStore) *RegistryService {
	return &RegistryService{store: st}
}

// Register records a hook-instrumented agent. Registration is idempotent on
// name: re-registering an existing hook agent returns the stored entry
// unchanged. The created flag reports whether a new entry was added.
func (s *RegistryService) Register(ctx context.Context, name, sourceFile, taskDescription string) (*models.AgentRegistryEntry, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, NewValidationError("name", "required")
	}

	var entry *models.AgentRegistryEntry
	created := false
	err := s.store.UpdateRegistry(func(entries []*models.AgentRegistryEntry) ([]*models.AgentRegistryEntry, error) {
		for _, existing := range entries {
			if existing.Name == name && existing.Source == models.AgentSourceHook {
				entry = existing
				return entries, nil
			}
		}
		entry = models.NewHookAgentEntry(name, sourceFile, taskDescription)
		created = true
		return append(entries, entry), nil
	})
	if err != nil {
		metrics.StoreWriteFailures.Inc()
		return nil, false, fmt.Errorf("registering agent %q: %w", name, err)
	}
	return entry, created, nil
}

// List returns all registry entries. The result is never nil.
func (s *RegistryService) List(ctx context.Context) []*models.AgentRegistryEntry {
	entries := s.store.ReadRegistry()
	if entries == nil {
		entries = []*models.AgentRegistryEntry{}
	}
	return entries
}

// Get returns one registry entry by id.
func (s *RegistryService) Get(ctx context.Context, id string) (*models.AgentRegistryEntry, error) {
	for _, entry := range s.store.ReadRegistry() {
		if entry.ID == id {
			return entry, nil
		}
	}
	return nil, ErrNotFound
}

// Delete removes a registry entry by id.
func (s *RegistryService) Delete(ctx context.Context, id string) error {
	err := s.store.UpdateRegistry(func(entries []*models.AgentRegistryEntry) ([]*models.AgentRegistryEntry, error) {
		kept := make([]*models.AgentRegistryEntry, 0, len(entries))
		for _, entry := range entries {
			if entry.ID == id {
				continue
			}
			kept = append(kept, entry)
		}
		if len(kept) == len(entries) {
			return nil, ErrNotFound
		}
		return kept, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		metrics.StoreWriteFailures.Inc()
		return fmt.Errorf("deleting agent %s: %w", id, err)
	}
	return nil
}
