package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAuditSessions(t *testing.T) *AuditService {
	t.Helper()
	st := newTestStore(t)

	require.NoError(t, st.ReplaceSession(map[string]any{
		"session_id":       "sess-audit",
		"agent_name":       "weather-bot",
		"task":             "Fetch weather",
		"started_at":       "2026-08-25T10:00:00Z",
		"ended_at":         "2026-08-25T10:01:00Z",
		"overall_quality":  "POOR",
		"efficiency_score": float64(55),
		"security_score":   float64(60),
		"steps": []any{
			map[string]any{
				"step_id": "step-1", "timestamp": "2026-08-25T10:00:10Z",
				"tool_name": "http_get", "status": "SUCCESS",
				"security_score": float64(95), "relevance_score": float64(90),
				"reasoning": "fetches the forecast",
			},
			map[string]any{
				"step_id": "step-2", "timestamp": "2026-08-25T10:00:20Z",
				"tool_name": "sendmail", "status": "SUCCESS",
				"security_score": float64(85), "relevance_score": float64(70),
			},
			map[string]any{
				"step_id": "step-3", "timestamp": "2026-08-25T10:00:30Z",
				"tool_name": "http_post", "status": "SUCCESS",
				"security_score": float64(40), "relevance_score": float64(60),
			},
			map[string]any{
				"step_id": "step-4", "timestamp": "2026-08-25T10:00:40Z",
				"tool_name": "browse", "status": "FAILED",
			},
			map[string]any{
				"step_id": "step-5", "timestamp": "2026-08-25T10:00:50Z",
				"tool_name": "browse", "status": "REDUNDANT",
				"security_score": nil,
			},
		},
		"issues": []any{
			map[string]any{
				"issue_id": "QI-1", "timestamp": "2026-08-25T10:00:35Z",
				"issue_type": "DATA_EXFILTRATION", "severity": float64(9),
				"description": "posted data to an unknown host", "recommendation": "rotate keys",
			},
			map[string]any{
				"issue_id": "QI-2", "timestamp": "2026-08-25T10:00:36Z",
				"issue_type": "INEFFICIENCY", "severity": float64(5),
				"description": "repeated lookups",
			},
			map[string]any{
				"issue_id": "QI-3", "timestamp": "2026-08-25T10:00:37Z",
				"issue_type": "NONE", "severity": float64(2),
				"description": "cosmetic",
			},
		},
	}))

	require.NoError(t, st.ReplaceSession(map[string]any{
		"session_id": "sess-open",
		"agent_name": "crawler",
		"task":       "Crawl docs",
		"started_at": "2026-08-25T10:05:00Z",
		"status":     "active",
	}))

	return NewAuditService(st)
}

func TestAuditService_Events(t *testing.T) {
	service := seedAuditSessions(t)
	events := service.Events(context.Background(), 0)

	byID := map[string]AuditEvent{}
	for _, e := range events {
		byID[e.ID] = e
	}

	t.Run("expands sessions into events", func(t *testing.T) {
		// 2 starts + 5 steps + 3 issues + 1 end; the open session has no end.
		assert.Len(t, events, 11)
		assert.Contains(t, byID, "sess-audit-start")
		assert.Contains(t, byID, "sess-audit-end")
		assert.Contains(t, byID, "sess-open-start")
		assert.NotContains(t, byID, "sess-open-end")
	})

	t.Run("orders newest first", func(t *testing.T) {
		assert.Equal(t, "sess-open-start", events[0].ID)
		assert.Equal(t, "sess-audit-end", events[1].ID)
		assert.Equal(t, "sess-audit-start", events[len(events)-1].ID)
	})

	t.Run("session start event", func(t *testing.T) {
		start := byID["sess-audit-start"]
		assert.Equal(t, "session_start", start.EventType)
		assert.Equal(t, "weather-bot", start.AgentName)
		assert.Equal(t, "info", start.Severity)
		assert.Equal(t, "Session started – Fetch weather", start.Summary)
	})

	t.Run("step severity mapping", func(t *testing.T) {
		assert.Equal(t, "info", byID["step-1"].Severity)
		assert.Equal(t, "warning", byID["step-2"].Severity)
		assert.Equal(t, "critical", byID["step-3"].Severity)
		// No security score recorded reads as secure; FAILED still escalates.
		assert.Equal(t, "critical", byID["step-4"].Severity)
		// A null score falls back to status severity.
		assert.Equal(t, "warning", byID["step-5"].Severity)
	})

	t.Run("step summaries", func(t *testing.T) {
		assert.Equal(t, "http_get() → SUCCESS  |  Security: 95%  Relevance: 90%", byID["step-1"].Summary)
		assert.Equal(t, "browse() → FAILED  |  Security: 100%  Relevance: 100%", byID["step-4"].Summary)
		assert.Equal(t, "browse() → REDUNDANT  |  Security: N/A%  Relevance: 100%", byID["step-5"].Summary)
		assert.Equal(t, "fetches the forecast", byID["step-1"].Detail)
	})

	t.Run("issue events", func(t *testing.T) {
		assert.Equal(t, "critical", byID["QI-1"].Severity)
		assert.Equal(t, "warning", byID["QI-2"].Severity)
		assert.Equal(t, "info", byID["QI-3"].Severity)
		assert.Equal(t, "[DATA_EXFILTRATION] posted data to an unknown host", byID["QI-1"].Summary)
		assert.Equal(t, "rotate keys", byID["QI-1"].Detail)
	})

	t.Run("session end event", func(t *testing.T) {
		end := byID["sess-audit-end"]
		assert.Equal(t, "session_end", end.EventType)
		assert.Equal(t, "warning", end.Severity)
		assert.Equal(t, "Session ended – Quality: POOR, Efficiency: 55%, Security: 60%", end.Summary)
	})
}

func TestAuditService_Limit(t *testing.T) {
	service := seedAuditSessions(t)

	events := service.Events(context.Background(), 3)
	require.Len(t, events, 3)
	assert.Equal(t, "sess-open-start", events[0].ID)
}

func TestAuditService_EmptyStore(t *testing.T) {
	service := NewAuditService(newTestStore(t))

	events := service.Events(context.Background(), 0)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}
