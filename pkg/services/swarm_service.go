package services

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/arguslabs/argus/pkg/models"
	"github.com/arguslabs/argus/pkg/store"
)

// SwarmCard is the list-view summary of one swarm: sessions that share a
// swarm_id, rolled up into a single card.
type SwarmCard struct {
	SwarmID        string           `json:"swarm_id"`
	AgentCount     int              `json:"agent_count"`
	OverallQuality string           `json:"overall_quality"`
	DriftScore     float64          `json:"drift_score"`
	StartedAt      string           `json:"started_at"`
	EndedAt        string           `json:"ended_at"`
	Agents         []map[string]any `json:"agents"`
}

// SwarmDetail is the full view of one swarm, carrying the raw member
// session documents.
type SwarmDetail struct {
	SwarmID    string           `json:"swarm_id"`
	AgentCount int              `json:"agent_count"`
	DriftScore float64          `json:"drift_score"`
	Sessions   []map[string]any `json:"sessions"`
}

// qualityPriority orders session grades worst first; a swarm takes the worst
// grade any of its members earned.
var qualityPriority = []models.SessionQuality{
	models.QualityFailed,
	models.QualityStuck,
	models.QualityPoor,
	models.QualityPending,
	models.QualityGood,
	models.QualityExcellent,
}

// SwarmService groups sessions into swarms and scores how far member tasks
// drifted from the first agent's task.
type SwarmService struct {
	store *store.FileStore
}

// NewSwarmService creates a swarm service backed by the given store.
func NewSwarmService(st *store.FileStore) *SwarmService {
	return &SwarmService{store: st}
}

// List returns one card per swarm, most recently started first.
func (s *SwarmService) List(ctx context.Context) []SwarmCard {
	groups := s.groups()
	cards := make([]SwarmCard, 0, len(groups))
	for swarmID, members := range groups {
		cards = append(cards, SwarmCard{
			SwarmID:        swarmID,
			AgentCount:     len(members),
			OverallQuality: overallQuality(members),
			DriftScore:     driftScore(members),
			StartedAt:      minMemberTime(members, "started_at"),
			EndedAt:        maxMemberTime(members, "ended_at"),
			Agents:         memberSummaries(sortedByOrder(members)),
		})
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].StartedAt > cards[j].StartedAt })
	return cards
}

// Get returns one swarm with its full member session documents, ordered by
// swarm position.
func (s *SwarmService) Get(ctx context.Context, swarmID string) (SwarmDetail, error) {
	members := s.groups()[swarmID]
	if len(members) == 0 {
		return SwarmDetail{}, ErrNotFound
	}
	return SwarmDetail{
		SwarmID:    swarmID,
		AgentCount: len(members),
		DriftScore: driftScore(members),
		Sessions:   sortedByOrder(members),
	}, nil
}

// groups loads every stored session and buckets those carrying a swarm_id.
func (s *SwarmService) groups() map[string][]map[string]any {
	groups := map[string][]map[string]any{}
	for _, doc := range s.store.ListSessions(0) {
		if swarmID, _ := doc["swarm_id"].(string); swarmID != "" {
			groups[swarmID] = append(groups[swarmID], doc)
		}
	}
	return groups
}

// driftScore measures how much later agents' tasks diverge from the first
// agent's task, as the mean Jaccard word overlap against the first member.
// 1.0 means perfect alignment, 0.0 complete divergence. Word overlap is
// deliberately crude; it needs no model calls and catches gross handoff
// corruption, which is what the swarm view is for.
func driftScore(members []map[string]any) float64 {
	if len(members) < 2 {
		return 1.0
	}
	ordered := sortedByOrder(members)
	first := taskWords(ordered[0])
	if len(first) == 0 {
		return 1.0
	}

	var sum float64
	for _, m := range ordered[1:] {
		words := taskWords(m)
		if len(words) == 0 {
			continue
		}
		intersection := 0
		for w := range words {
			if _, ok := first[w]; ok {
				intersection++
			}
		}
		union := len(first) + len(words) - intersection
		sum += float64(intersection) / float64(union)
	}
	mean := sum / float64(len(ordered)-1)
	return math.Round(mean*1000) / 1000
}

// overallQuality rolls member grades up to the worst one present.
func overallQuality(members []map[string]any) string {
	present := map[string]bool{}
	for _, m := range members {
		quality, _ := fieldOr(m, "overall_quality", string(models.QualityPending)).(string)
		present[quality] = true
	}
	for _, q := range qualityPriority {
		if present[string(q)] {
			return string(q)
		}
	}
	return string(models.QualityPending)
}

// sortedByOrder returns members ordered by swarm_order, missing orders
// first. The input is not modified.
func sortedByOrder(members []map[string]any) []map[string]any {
	ordered := make([]map[string]any, len(members))
	copy(ordered, members)
	sort.SliceStable(ordered, func(i, j int) bool {
		return memberOrder(ordered[i]) < memberOrder(ordered[j])
	})
	return ordered
}

func memberOrder(m map[string]any) float64 {
	if n, ok := scoreValue(m["swarm_order"]); ok {
		return n
	}
	return 0
}

func memberSummaries(members []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(members))
	for _, m := range members {
		out = append(out, map[string]any{
			"session_id":       m["session_id"],
			"agent_name":       m["agent_name"],
			"swarm_order":      m["swarm_order"],
			"overall_quality":  fieldOr(m, "overall_quality", string(models.QualityPending)),
			"efficiency_score": m["efficiency_score"],
			"security_score":   m["security_score"],
			"task":             coerceTask(m["task"]),
			"status":           m["status"],
			"total_steps":      fieldOr(m, "total_steps", 0),
			"handoff_input":    m["handoff_input"],
		})
	}
	return out
}

// minMemberTime returns the smallest value of a timestamp key across
// members. Missing values read as empty strings, so a swarm with any
// unstarted member sorts to the bottom of the card list.
func minMemberTime(members []map[string]any, key string) string {
	lowest := ""
	for i, m := range members {
		v, _ := m[key].(string)
		if i == 0 || v < lowest {
			lowest = v
		}
	}
	return lowest
}

// maxMemberTime returns the largest value of a timestamp key across members.
func maxMemberTime(members []map[string]any, key string) string {
	highest := ""
	for _, m := range members {
		if v, _ := m[key].(string); v > highest {
			highest = v
		}
	}
	return highest
}

// taskWords splits a member's task into a lowercased word set.
func taskWords(m map[string]any) map[string]struct{} {
	words := strings.Fields(strings.ToLower(coerceTask(m["task"])))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
