package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/arguslabs/argus/pkg/models"
)

// sessionPath returns the file backing a session ID.
func (s *FileStore) sessionPath(sessionID string) string {
	return filepath.Join(s.sessionsDir, sessionID+".json")
}

// SessionExists reports whether a session file is present.
func (s *FileStore) SessionExists(sessionID string) bool {
	_, err := os.Stat(s.sessionPath(sessionID))
	return err == nil
}

// LoadSession reads one session document. The error wraps fs.ErrNotExist
// when no file exists for the ID.
func (s *FileStore) LoadSession(sessionID string) (map[string]any, error) {
	data, err := os.ReadFile(s.sessionPath(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", sessionID, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return doc, nil
}

// SaveSession writes a session document, merging with any existing file:
//
//   - agent_id and status are preserved from the existing document when the
//     new one leaves them unset, so monitor hook writes never clobber
//     dashboard-owned fields.
//   - steps are merged by step_id: existing steps are updated field by field
//     with non-null, non-empty new values; unknown step IDs are appended.
//     This lets the second finalize pass overwrite the null score
//     placeholders from the heuristic write without losing anything.
//
// total_steps is recomputed whenever steps were merged.
func (s *FileStore) SaveSession(doc map[string]any) error {
	sessionID, _ := doc["session_id"].(string)
	if sessionID == "" {
		return fmt.Errorf("session document has no session_id")
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	path := s.sessionPath(sessionID)
	var existing map[string]any
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			slog.Warn("Ignoring unreadable existing session during merge",
				"session_id", sessionID, "error", err)
			existing = nil
		}
	}

	merged := mergeSessionDocs(existing, doc)
	return writeJSONAtomic(path, merged)
}

// SaveSessionReport is SaveSession for a typed report from the monitor hook.
func (s *FileStore) SaveSessionReport(report *models.SessionReport) error {
	doc, err := docFromReport(report)
	if err != nil {
		return err
	}
	return s.SaveSession(doc)
}

// ReplaceSession writes a session document verbatim, without merging.
// Only destructive edits (step deletion) should use this; everything else
// goes through SaveSession.
func (s *FileStore) ReplaceSession(doc map[string]any) error {
	sessionID, _ := doc["session_id"].(string)
	if sessionID == "" {
		return fmt.Errorf("session document has no session_id")
	}
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	return writeJSONAtomic(s.sessionPath(sessionID), doc)
}

// DeleteSession removes a session file. The error wraps fs.ErrNotExist when
// the session does not exist.
func (s *FileStore) DeleteSession(sessionID string) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if err := os.Remove(s.sessionPath(sessionID)); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// ListSessions returns session documents newest first by file modification
// time. A limit <= 0 returns all. Unreadable files are skipped with a
// warning.
func (s *FileStore) ListSessions(limit int) []map[string]any {
	paths, err := filepath.Glob(filepath.Join(s.sessionsDir, "*.json"))
	if err != nil || len(paths) == 0 {
		return nil
	}

	type entry struct {
		path  string
		mtime int64
	}
	entries := make([]entry, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		entries = append(entries, entry{path: p, mtime: info.ModTime().UnixNano()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].mtime > entries[j].mtime })

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	sessions := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		data, err := os.ReadFile(e.path)
		if err != nil {
			slog.Warn("Failed to read session file", "path", e.path, "error", err)
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			slog.Warn("Failed to decode session file", "path", e.path, "error", err)
			continue
		}
		sessions = append(sessions, doc)
	}
	return sessions
}

// docFromReport converts a typed report to a generic document through JSON.
func docFromReport(report *models.SessionReport) (map[string]any, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session report: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode session report: %w", err)
	}
	return doc, nil
}

// mergeSessionDocs implements the SaveSession merge rules.
func mergeSessionDocs(existing, next map[string]any) map[string]any {
	merged := make(map[string]any, len(next))
	for k, v := range next {
		merged[k] = v
	}
	if len(existing) == 0 {
		return merged
	}

	// Dashboard-owned fields survive unless the new doc sets them.
	for _, key := range []string{"agent_id", "status"} {
		if ev, ok := existing[key]; ok && emptyScalar(merged[key]) {
			merged[key] = ev
		}
	}

	existingSteps, _ := existing["steps"].([]any)
	if len(existingSteps) == 0 {
		return merged
	}
	newSteps, _ := merged["steps"].([]any)

	byID := make(map[string]int, len(existingSteps))
	combined := make([]any, 0, len(existingSteps)+len(newSteps))
	for i, raw := range existingSteps {
		step, ok := raw.(map[string]any)
		if !ok {
			combined = append(combined, raw)
			continue
		}
		copied := make(map[string]any, len(step))
		for k, v := range step {
			copied[k] = v
		}
		combined = append(combined, copied)
		if id, _ := step["step_id"].(string); id != "" {
			byID[id] = i
		}
	}

	for _, raw := range newSteps {
		step, ok := raw.(map[string]any)
		if !ok {
			combined = append(combined, raw)
			continue
		}
		id, _ := step["step_id"].(string)
		idx, known := byID[id]
		if id == "" || !known {
			combined = append(combined, step)
			continue
		}
		// Update in place with real values only; null and empty values
		// never overwrite what is already recorded.
		target := combined[idx].(map[string]any)
		for k, v := range step {
			if meaningful(v) {
				target[k] = v
			}
		}
	}

	merged["steps"] = combined
	merged["total_steps"] = len(combined)
	return merged
}

// emptyScalar reports whether a merged field counts as unset.
func emptyScalar(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// meaningful reports whether a step field value should overwrite during a
// merge. Null, empty strings and empty lists are placeholders.
func meaningful(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	default:
		return true
	}
}
