package models

// AuditEventType classifies entries in the flattened audit log
type AuditEventType string

const (
	AuditEventSessionStart AuditEventType = "session_start"
	AuditEventToolCall     AuditEventType = "tool_call"
	AuditEventIssue        AuditEventType = "issue"
	AuditEventSessionEnd   AuditEventType = "session_end"
)

// AuditSeverity is the display severity of an audit event
type AuditSeverity string

const (
	AuditSeverityInfo     AuditSeverity = "info"
	AuditSeverityWarning  AuditSeverity = "warning"
	AuditSeverityCritical AuditSeverity = "critical"
)

// AuditEvent is one row of the chronological audit log assembled from
// stored sessions
type AuditEvent struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	EventType AuditEventType `json:"event_type"`
	SessionID string         `json:"session_id"`
	AgentName string         `json:"agent_name"`
	Summary   string         `json:"summary"`
	Severity  AuditSeverity  `json:"severity"`
	Detail    string         `json:"detail,omitempty"`
}
