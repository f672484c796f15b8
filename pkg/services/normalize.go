// Package services implements the business logic behind the ingest API:
// session lifecycle (create-or-resume, step append, completion merge),
// the agent registry, and the derived read models (display normalization,
// dashboard stats, audit feed, swarm grouping, WebSocket snapshots).
//
// Stored session documents are schemaless maps: hook clients of different
// versions send different field sets, and the store persists whatever
// arrives. The normalizer in this file is the single place that turns a
// stored document into the display shape the dashboard consumes.
package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/arguslabs/argus/pkg/models"
)

// Session lifecycle states as stored in session documents.
const (
	statusActive     = "active"
	statusCompleted  = "completed"
	statusTerminated = "terminated"
)

// staleActiveAfter is how long an active session may go without an end
// timestamp before it is displayed as terminated. Crashed agents never send
// a completion, so the dashboard would otherwise list them as active forever.
const staleActiveAfter = 5 * time.Minute

// normalizeSession converts a stored session document into the display shape
// served by the session routes and WebSocket frames. Normalization is
// idempotent and never mutates the input document.
func normalizeSession(doc map[string]any) map[string]any {
	startTime := timeField(doc, "started_at", "start_time")
	endTime := timeField(doc, "ended_at", "end_time")

	quality, _ := fieldOr(doc, "overall_quality", string(models.QualityGood)).(string)
	status := deriveStatus(doc, endTime)

	// An active session whose agent stopped reporting is shown as failed
	// rather than left active indefinitely.
	if status == statusActive && endTime == nil {
		if started, ok := startTime.(string); ok {
			if t, err := models.ParseTime(started); err == nil && time.Since(t) > staleActiveAfter {
				status = statusTerminated
				quality = string(models.QualityFailed)
			}
		}
	}

	return map[string]any{
		"session_id":               fieldOr(doc, "session_id", ""),
		"agent_name":               fieldOr(doc, "agent_name", "Unknown"),
		"model":                    fieldOr(doc, "model", ""),
		"task":                     coerceTask(doc["task"]),
		"start_time":               startTime,
		"end_time":                 endTime,
		"status":                   status,
		"total_steps":              fieldOr(doc, "total_steps", 0),
		"overall_quality":          quality,
		"efficiency_score":         doc["efficiency_score"],
		"security_score":           doc["security_score"],
		"issues":                   normalizeIssues(doc["issues"]),
		"steps":                    normalizeSteps(doc["steps"]),
		"ai_evaluation":            fieldOr(doc, "ai_evaluation", ""),
		"tool_analysis":            fieldOr(doc, "tool_analysis", []any{}),
		"decision_observations":    fieldOr(doc, "decision_observations", []any{}),
		"efficiency_explanation":   fieldOr(doc, "efficiency_explanation", ""),
		"recommendations":          fieldOr(doc, "recommendations", []any{}),
		"task_completion":          fieldOr(doc, "task_completion", false),
		"loop_detected":            fieldOr(doc, "loop_detected", false),
		"security_breach_detected": fieldOr(doc, "security_breach_detected", false),
		"total_execution_time_ms":  fieldOr(doc, "total_execution_time_ms", 0),
	}
}

// deriveStatus resolves the displayed lifecycle state. An explicit active or
// terminated marker wins; otherwise loop detection and a STUCK grade read as
// terminated, an end timestamp as completed, anything else as active.
func deriveStatus(doc map[string]any, endTime any) string {
	loopDetected, _ := doc["loop_detected"].(bool)
	quality, _ := doc["overall_quality"].(string)

	status := statusActive
	if loopDetected || quality == string(models.QualityStuck) {
		status = statusTerminated
	} else if endTime != nil {
		status = statusCompleted
	}
	if explicit, _ := doc["status"].(string); explicit == statusActive || explicit == statusTerminated {
		status = explicit
	}
	return status
}

// normalizeIssues maps stored issues to the canonical display shape. Hook
// clients occasionally report bare strings instead of issue objects; those
// become minimal issue entries rather than being dropped.
func normalizeIssues(raw any) []map[string]any {
	entries, _ := raw.([]any)
	out := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		issue, ok := entry.(map[string]any)
		if !ok {
			out = append(out, map[string]any{
				"issue_id":       "",
				"issue_type":     fmt.Sprintf("%v", entry),
				"severity":       5,
				"description":    fmt.Sprintf("%v", entry),
				"recommendation": "",
				"affected_steps": []any{},
			})
			continue
		}
		out = append(out, map[string]any{
			"issue_id":       fieldOr(issue, "issue_id", ""),
			"issue_type":     fieldOr(issue, "issue_type", "NONE"),
			"severity":       fieldOr(issue, "severity", 5),
			"description":    fieldOr(issue, "description", ""),
			"recommendation": fieldOr(issue, "recommendation", ""),
			"affected_steps": fieldOr(issue, "affected_steps", []any{}),
		})
	}
	return out
}

// normalizeSteps maps stored steps to the display shape: tool inputs are
// flattened to one line and results are capped so list payloads stay small.
// The full result remains in the session file.
func normalizeSteps(raw any) []map[string]any {
	entries, _ := raw.([]any)
	out := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		step, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		toolName := step["tool_name"]
		if toolName == nil {
			toolName = fieldOr(step, "action", "")
		}
		out = append(out, map[string]any{
			"step_id":         fieldOr(step, "step_id", ""),
			"step_number":     fieldOr(step, "step_number", 0),
			"timestamp":       fieldOr(step, "timestamp", ""),
			"tool_name":       toolName,
			"tool_input":      renderToolInput(step["tool_input"]),
			"tool_result":     truncateResult(step["tool_result"]),
			"status":          fieldOr(step, "status", string(models.StepStatusSuccess)),
			"relevance_score": step["relevance_score"],
			"security_score":  step["security_score"],
			"reasoning":       fieldOr(step, "reasoning", ""),
		})
	}
	return out
}

// renderToolInput flattens a tool input object into "key=value" pairs for
// display. Keys are sorted so rendering is deterministic.
func renderToolInput(v any) string {
	switch in := v.(type) {
	case nil:
		return ""
	case string:
		return in
	case map[string]any:
		keys := make([]string, 0, len(in))
		for k := range in {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+displayValue(in[k]))
		}
		return strings.Join(pairs, ", ")
	default:
		return fmt.Sprintf("%v", in)
	}
}

// displayValue renders a single tool input value. Strings are quoted and
// floats drop trailing zeros so JSON-decoded integers read as integers.
func displayValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return "'" + val + "'"
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return trimFloat(val)
	case int:
		return strconv.Itoa(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// truncateResult caps a stored tool result at 300 characters for display.
func truncateResult(v any) string {
	var s string
	switch r := v.(type) {
	case nil:
		s = ""
	case string:
		s = r
	default:
		s = fmt.Sprintf("%v", r)
	}
	if runes := []rune(s); len(runes) > 300 {
		return string(runes[:300]) + "..."
	}
	return s
}

// coerceTask flattens the task field, which hook clients send either as a
// plain string or as a task object carrying a description.
func coerceTask(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any:
		if desc, ok := t["description"].(string); ok {
			return desc
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// fieldOr returns the value stored under key, or fallback when the key is
// absent. An explicit null is kept as nil.
func fieldOr(m map[string]any, key string, fallback any) any {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}

// timeField resolves the first non-empty of two timestamp keys, or nil.
func timeField(doc map[string]any, primary, fallback string) any {
	if s, _ := doc[primary].(string); s != "" {
		return s
	}
	if s, _ := doc[fallback].(string); s != "" {
		return s
	}
	return nil
}

// scoreValue extracts a numeric score, reporting whether one was present.
func scoreValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// trimFloat formats a float without trailing zeros, so JSON-decoded
// integers read as integers.
func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
