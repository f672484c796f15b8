package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/arguslabs/argus/pkg/models"
	"github.com/arguslabs/argus/pkg/store"
)

// auditSessionWindow caps how many recent session files are expanded into
// audit events per request.
const auditSessionWindow = 50

// DefaultAuditLimit bounds the audit feed when no limit is given.
const DefaultAuditLimit = 200

// AuditEvent is one row in the dashboard audit feed.
type AuditEvent struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	EventType string `json:"event_type"`
	SessionID string `json:"session_id"`
	AgentName string `json:"agent_name"`
	Summary   string `json:"summary"`
	Severity  string `json:"severity"`
	Detail    string `json:"detail,omitempty"`
}

// Audit event types.
const (
	auditSessionStart = "session_start"
	auditToolCall     = "tool_call"
	auditIssue        = "issue"
	auditSessionEnd   = "session_end"
)

// Audit severities.
const (
	severityInfo     = "info"
	severityWarning  = "warning"
	severityCritical = "critical"
)

// AuditService flattens recent session files into a chronological event
// feed: one start event, one event per step and issue, and one end event
// per session.
type AuditService struct {
	store *store.FileStore
}

// NewAuditService creates an audit service backed by the given store.
func NewAuditService(st *store.FileStore) *AuditService {
	return &AuditService{store: st}
}

// Events returns audit events across the most recent sessions, newest
// first. A non-positive limit applies DefaultAuditLimit.
func (s *AuditService) Events(ctx context.Context, limit int) []AuditEvent {
	if limit <= 0 {
		limit = DefaultAuditLimit
	}

	events := []AuditEvent{}
	for _, doc := range s.store.ListSessions(auditSessionWindow) {
		events = append(events, expandSession(doc)...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp > events[j].Timestamp
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events
}

func expandSession(doc map[string]any) []AuditEvent {
	sessionID, _ := doc["session_id"].(string)
	agent, _ := fieldOr(doc, "agent_name", "Unknown").(string)
	startTime, _ := timeField(doc, "started_at", "start_time").(string)

	events := []AuditEvent{}
	if startTime != "" {
		events = append(events, AuditEvent{
			ID:        sessionID + "-start",
			Timestamp: startTime,
			EventType: auditSessionStart,
			SessionID: sessionID,
			AgentName: agent,
			Summary:   fmt.Sprintf("Session started – %s", truncateRunes(coerceTask(doc["task"]), 80)),
			Severity:  severityInfo,
		})
	}

	steps, _ := doc["steps"].([]any)
	for _, raw := range steps {
		step, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		events = append(events, stepEvent(step, sessionID, agent, startTime))
	}

	issues, _ := doc["issues"].([]any)
	for _, raw := range issues {
		issue, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		events = append(events, issueEvent(issue, sessionID, agent, startTime))
	}

	if endTime, _ := timeField(doc, "ended_at", "end_time").(string); endTime != "" {
		events = append(events, endEvent(doc, sessionID, agent, endTime))
	}
	return events
}

func stepEvent(step map[string]any, sessionID, agent, startTime string) AuditEvent {
	ts, _ := fieldOr(step, "timestamp", startTime).(string)
	if ts == "" {
		ts = startTime
	}
	tool, _ := fieldOr(step, "tool_name", "unknown").(string)
	status, _ := fieldOr(step, "status", string(models.StepStatusSuccess)).(string)
	sec := fieldOr(step, "security_score", 100)
	rel := fieldOr(step, "relevance_score", 100)

	severity := severityInfo
	secNum, secOK := scoreValue(sec)
	switch {
	case secOK && secNum < 70:
		severity = severityCritical
	case secOK && secNum < 90:
		severity = severityWarning
	case status == string(models.StepStatusIrrelevant) || status == string(models.StepStatusRedundant):
		severity = severityWarning
	case status == string(models.StepStatusFailed) || status == string(models.StepStatusBlocked):
		severity = severityCritical
	}

	id, _ := step["step_id"].(string)
	detail, _ := step["reasoning"].(string)
	return AuditEvent{
		ID:        id,
		Timestamp: ts,
		EventType: auditToolCall,
		SessionID: sessionID,
		AgentName: agent,
		Summary:   fmt.Sprintf("%s() → %s  |  Security: %s%%  Relevance: %s%%", tool, status, formatScore(sec), formatScore(rel)),
		Severity:  severity,
		Detail:    detail,
	}
}

func issueEvent(issue map[string]any, sessionID, agent, startTime string) AuditEvent {
	sevNum, _ := scoreValue(fieldOr(issue, "severity", 5))
	severity := severityInfo
	switch {
	case sevNum >= 8:
		severity = severityCritical
	case sevNum >= 5:
		severity = severityWarning
	}

	ts, _ := fieldOr(issue, "timestamp", startTime).(string)
	if ts == "" {
		ts = startTime
	}
	id, _ := issue["issue_id"].(string)
	issueType, _ := fieldOr(issue, "issue_type", "UNKNOWN").(string)
	description, _ := issue["description"].(string)
	detail, _ := issue["recommendation"].(string)
	return AuditEvent{
		ID:        id,
		Timestamp: ts,
		EventType: auditIssue,
		SessionID: sessionID,
		AgentName: agent,
		Summary:   fmt.Sprintf("[%s] %s", issueType, description),
		Severity:  severity,
		Detail:    detail,
	}
}

func endEvent(doc map[string]any, sessionID, agent, endTime string) AuditEvent {
	quality, _ := fieldOr(doc, "overall_quality", string(models.QualityGood)).(string)
	severity := severityCritical
	switch quality {
	case string(models.QualityExcellent), string(models.QualityGood):
		severity = severityInfo
	case string(models.QualityPoor):
		severity = severityWarning
	}

	eff, effOK := scoreValue(doc["efficiency_score"])
	if !effOK {
		eff = 0
	}
	sec := doc["security_score"]
	secSuffix := ""
	if _, ok := scoreValue(sec); ok {
		secSuffix = "%"
	}
	return AuditEvent{
		ID:        sessionID + "-end",
		Timestamp: endTime,
		EventType: auditSessionEnd,
		SessionID: sessionID,
		AgentName: agent,
		Summary: fmt.Sprintf("Session ended – Quality: %s, Efficiency: %s%%, Security: %s%s",
			quality, formatScore(eff), formatScore(sec), secSuffix),
		Severity: severity,
	}
}

// formatScore renders a score for an audit summary: numbers drop trailing
// zeros, anything non-numeric reads as N/A.
func formatScore(v any) string {
	if n, ok := scoreValue(v); ok {
		return trimFloat(n)
	}
	return "N/A"
}

// truncateRunes caps s at n characters.
func truncateRunes(s string, n int) string {
	if runes := []rune(s); len(runes) > n {
		return string(runes[:n])
	}
	return s
}
