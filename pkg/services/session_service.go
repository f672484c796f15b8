package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/arguslabs/argus/pkg/metrics"
	"github.com/arguslabs/argus/pkg/models"
	"github.com/arguslabs/argus/pkg/store"
)

// DefaultListLimit bounds the session list when no limit is given.
const DefaultListLimit = 100

// SessionService owns the session ingest lifecycle: create-or-resume, step
// append, completion merge, and reads in both raw and display form.
type SessionService struct {
	store *store.FileStore
}

// NewSessionService creates a session service backed by the given store.
func NewSessionService(st *store.FileStore) *SessionService {
	return &SessionService{store: st}
}

// Ingest creates a session record or resumes an existing one. Resuming keeps
// all prior state, reactivates the session, and backfills the task and swarm
// fields only when the stored record has none. The returned document is the
// full stored record, including any prior steps, so hook clients restarting
// under the same session id can recover their history.
func (s *SessionService) Ingest(ctx context.Context, payload map[string]any) (map[string]any, bool, error) {
	sessionID, _ := payload["session_id"].(string)
	if strings.TrimSpace(sessionID) == "" {
		return nil, false, NewValidationError("session_id", "required")
	}

	if s.store.SessionExists(sessionID) {
		doc, err := s.store.LoadSession(sessionID)
		if err == nil {
			doc["status"] = statusActive
			doc["ended_at"] = nil
			for _, key := range []string{"task", "swarm_id", "swarm_order"} {
				if v, ok := payload[key]; ok && unsetValue(doc[key]) {
					doc[key] = v
				}
			}
			if err := s.store.SaveSession(doc); err != nil {
				metrics.StoreWriteFailures.Inc()
				return nil, false, fmt.Errorf("resuming session %s: %w", sessionID, err)
			}
			metrics.SessionsIngested.Inc()
			return doc, true, nil
		}
		slog.Warn("Existing session file unreadable, recreating", "session_id", sessionID, "error", err)
	}

	doc := newSessionDocument(payload)
	if err := s.store.SaveSession(doc); err != nil {
		metrics.StoreWriteFailures.Inc()
		return nil, false, fmt.Errorf("creating session %s: %w", sessionID, err)
	}
	// Scratch space for artifacts tied to this session. Best-effort: a
	// session without a workspace is still fully usable.
	if _, err := s.store.EnsureWorkspace(sessionID); err != nil {
		slog.Warn("Workspace directory creation failed", "session_id", sessionID, "error", err)
	}
	metrics.SessionsIngested.Inc()
	return doc, false, nil
}

// AppendStep records one tool-call step against a known session and
// reactivates it. It returns the new step count and the normalized session
// for broadcast.
func (s *SessionService) AppendStep(ctx context.Context, sessionID string, step map[string]any) (int, map[string]any, error) {
	doc, err := s.load(sessionID)
	if err != nil {
		return 0, nil, err
	}

	steps, _ := doc["steps"].([]any)
	steps = append(steps, step)
	doc["steps"] = steps
	doc["total_steps"] = len(steps)
	doc["status"] = statusActive

	if err := s.store.SaveSession(doc); err != nil {
		metrics.StoreWriteFailures.Inc()
		return 0, nil, fmt.Errorf("recording step for session %s: %w", sessionID, err)
	}
	metrics.StepsRecorded.Inc()
	return len(steps), normalizeSession(doc), nil
}

// Complete merges the final report over the stored record. Steps already
// streamed individually are kept when the completion payload omits them,
// and the stored step count stays authoritative in that case. The status
// comes from the payload when present, otherwise "completed". Returns the
// normalized session for broadcast.
func (s *SessionService) Complete(ctx context.Context, sessionID string, payload map[string]any) (map[string]any, error) {
	doc, err := s.load(sessionID)
	if err != nil {
		return nil, err
	}

	existingSteps, _ := doc["steps"].([]any)
	for k, v := range payload {
		doc[k] = v
	}
	if incoming, _ := payload["steps"].([]any); len(incoming) == 0 {
		doc["steps"] = existingSteps
		doc["total_steps"] = len(existingSteps)
	}
	if status, _ := payload["status"].(string); status != "" {
		doc["status"] = status
	} else {
		doc["status"] = statusCompleted
	}

	if err := s.store.SaveSession(doc); err != nil {
		metrics.StoreWriteFailures.Inc()
		return nil, fmt.Errorf("completing session %s: %w", sessionID, err)
	}
	countIssues(payload["issues"])
	return normalizeSession(doc), nil
}

// Get returns one session in display form.
func (s *SessionService) Get(ctx context.Context, sessionID string) (map[string]any, error) {
	doc, err := s.load(sessionID)
	if err != nil {
		return nil, err
	}
	return normalizeSession(doc), nil
}

// List returns sessions in display form, newest first by file modification
// time. A non-positive limit applies DefaultListLimit.
func (s *SessionService) List(ctx context.Context, limit int) []map[string]any {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.normalizeAll(s.store.ListSessions(limit))
}

// ListAll returns every stored session in display form, for state snapshots.
func (s *SessionService) ListAll(ctx context.Context) []map[string]any {
	return s.normalizeAll(s.store.ListSessions(0))
}

func (s *SessionService) normalizeAll(docs []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		out = append(out, normalizeSession(doc))
	}
	return out
}

// Delete removes a session file.
func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	if err := s.store.DeleteSession(sessionID); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	return nil
}

// DeleteStep removes one step by id and rewrites the session verbatim,
// bypassing the usual step merge. Returns the remaining step count.
func (s *SessionService) DeleteStep(ctx context.Context, sessionID, stepID string) (int, error) {
	doc, err := s.load(sessionID)
	if err != nil {
		return 0, err
	}

	steps, _ := doc["steps"].([]any)
	kept := make([]any, 0, len(steps))
	for _, raw := range steps {
		if step, ok := raw.(map[string]any); ok {
			if id, _ := step["step_id"].(string); id == stepID {
				continue
			}
		}
		kept = append(kept, raw)
	}
	if len(kept) == len(steps) {
		return 0, ErrNotFound
	}

	doc["steps"] = kept
	doc["total_steps"] = len(kept)
	if err := s.store.ReplaceSession(doc); err != nil {
		metrics.StoreWriteFailures.Inc()
		return 0, fmt.Errorf("removing step %s from session %s: %w", stepID, sessionID, err)
	}
	return len(kept), nil
}

func (s *SessionService) load(sessionID string) (map[string]any, error) {
	doc, err := s.store.LoadSession(sessionID)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	return doc, nil
}

// newSessionDocument builds the zeroed record shape for a first ingest.
// Report fields stay null or empty until completion fills them in.
func newSessionDocument(payload map[string]any) map[string]any {
	startedAt, _ := payload["started_at"].(string)
	if startedAt == "" {
		startedAt = models.NowISO()
	}
	return map[string]any{
		"session_id":               payload["session_id"],
		"agent_id":                 fieldOr(payload, "agent_id", ""),
		"agent_name":               fieldOr(payload, "agent_name", "Unknown"),
		"model":                    fieldOr(payload, "model", ""),
		"task":                     payload["task"],
		"started_at":               startedAt,
		"ended_at":                 nil,
		"status":                   statusActive,
		"total_steps":              0,
		"steps":                    []any{},
		"issues":                   []any{},
		"overall_quality":          string(models.QualityPending),
		"efficiency_score":         nil,
		"security_score":           nil,
		"task_completion":          nil,
		"completion_confidence":    nil,
		"loop_detected":            false,
		"security_breach_detected": false,
		"total_execution_time_ms":  0,
		"ai_evaluation":            "",
		"recommendations":          []any{},
		"tool_analysis":            []any{},
		"decision_observations":    []any{},
		"efficiency_explanation":   "",
		"swarm_id":                 payload["swarm_id"],
		"swarm_order":              payload["swarm_order"],
		"handoff_input":            payload["handoff_input"],
	}
}

// countIssues bumps the per-type issue counter for a completion payload.
func countIssues(raw any) {
	issues, _ := raw.([]any)
	for _, entry := range issues {
		issue, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		typ, _ := issue["issue_type"].(string)
		if typ == "" {
			typ = "NONE"
		}
		metrics.IssuesDetected.WithLabelValues(typ).Inc()
	}
}

// unsetValue reports whether a stored value counts as absent for backfill
// purposes: nil, empty string, zero, false, or an empty collection.
func unsetValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case float64:
		return val == 0
	case int:
		return val == 0
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
