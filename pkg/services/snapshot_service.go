package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/arguslabs/argus/pkg/events"
	"github.com/arguslabs/argus/pkg/models"
)

// SnapshotService assembles the full dashboard state pushed over WebSocket:
// every session in display form plus the agent registry. It implements
// events.SnapshotProvider.
type SnapshotService struct {
	sessions *SessionService
	registry *RegistryService
}

// NewSnapshotService creates a snapshot service over the session and
// registry services.
func NewSnapshotService(sessions *SessionService, registry *RegistryService) *SnapshotService {
	return &SnapshotService{sessions: sessions, registry: registry}
}

// Snapshot returns the current dashboard state, sessions most recently
// started first.
func (s *SnapshotService) Snapshot(ctx context.Context) (events.Snapshot, error) {
	sessions := s.sessions.ListAll(ctx)
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessionStart(sessions[i]) > sessionStart(sessions[j])
	})

	agents, err := registryAsMaps(s.registry.List(ctx))
	if err != nil {
		return events.Snapshot{}, fmt.Errorf("encoding registry: %w", err)
	}
	return events.Snapshot{Sessions: sessions, Agents: agents}, nil
}

func sessionStart(sess map[string]any) string {
	start, _ := sess["start_time"].(string)
	return start
}

// registryAsMaps round-trips registry entries through JSON so WebSocket
// frames carry the same field names as the REST routes.
func registryAsMaps(entries []*models.AgentRegistryEntry) ([]map[string]any, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []map[string]any{}
	}
	return out, nil
}
