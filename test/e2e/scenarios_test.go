package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arguslabs/argus/pkg/dashboard"
	"github.com/arguslabs/argus/pkg/eval"
	"github.com/arguslabs/argus/pkg/models"
	"github.com/arguslabs/argus/pkg/monitor"
	"github.com/arguslabs/argus/pkg/store"
)

// --- Scenario: full hook lifecycle streamed to the server ---

func TestE2E_HookLifecycle(t *testing.T) {
	app := NewTestApp(t)
	ctx := context.Background()

	ws, err := WSConnect(ctx, app.WSURL)
	require.NoError(t, err)
	defer ws.Close()

	// The server greets every connection with a full snapshot.
	initial, err := ws.WaitForEventType("initial", 5*time.Second)
	require.NoError(t, err)
	assert.NotNil(t, initial.Parsed["sessions"])
	assert.NotNil(t, initial.Parsed["agents"])

	// The hook keeps its own local report store and streams live data to
	// the server, exactly as a monitored agent process would.
	hookStore, err := store.New(t.TempDir())
	require.NoError(t, err)

	hook, err := monitor.New(&monitor.Options{
		AgentName:    "Sales Reporter",
		Task:         "Summarize quarterly sales from the warehouse DB",
		SessionID:    "e2e-lifecycle",
		Store:        hookStore,
		Dashboard:    dashboard.New(app.BaseURL, app.APIKey),
		EnableAIEval: monitor.BoolPtr(false),
	})
	require.NoError(t, err)

	hook.OnSessionStart(ctx, &monitor.SessionStartEvent{Model: "gpt-4o"})

	// Session start registered the agent.
	agents := app.GetAgents(t)
	require.Len(t, agents, 1)
	entry := agents[0].(map[string]any)
	assert.Equal(t, "Sales Reporter", entry["name"])
	assert.Equal(t, "hook", entry["source"])
	assert.Equal(t, "analyzed", entry["status"])

	decision := hook.OnBeforeTool(ctx, &monitor.ToolCall{
		Name:  "query_db",
		Input: map[string]any{"table": "sales"},
	})
	require.False(t, decision.Cancel)
	hook.OnAfterTool(ctx, &monitor.ToolResult{
		Name:   "query_db",
		Input:  map[string]any{"table": "sales"},
		Result: "42 rows",
	})

	decision = hook.OnBeforeTool(ctx, &monitor.ToolCall{
		Name:  "write_report",
		Input: map[string]any{"path": "/tmp/q3.md"},
	})
	require.False(t, decision.Cancel)
	hook.OnAfterTool(ctx, &monitor.ToolResult{
		Name:   "write_report",
		Input:  map[string]any{"path": "/tmp/q3.md"},
		Result: map[string]any{"bytes": 2048},
	})

	// Every appended step is broadcast as a session_update.
	_, err = ws.WaitForSessionUpdate("e2e-lifecycle", 5*time.Second, func(session map[string]any) bool {
		return session["total_steps"] == float64(2)
	})
	require.NoError(t, err)

	hook.OnSessionEnd(ctx)

	_, err = ws.WaitForSessionUpdate("e2e-lifecycle", 5*time.Second, func(session map[string]any) bool {
		return session["status"] == "completed"
	})
	require.NoError(t, err)

	// The hook's own report is finalized.
	report := hook.Report()
	require.NotNil(t, report)
	assert.Equal(t, 2, report.TotalSteps)
	require.NotNil(t, report.EndedAt)

	// The server's normalized view matches what streamed in.
	session := app.GetSession(t, "e2e-lifecycle")
	assert.Equal(t, "Sales Reporter", session["agent_name"])
	assert.Equal(t, "gpt-4o", session["model"])
	assert.Equal(t, "Summarize quarterly sales from the warehouse DB", session["task"])
	assert.Equal(t, "completed", session["status"])
	assert.Equal(t, float64(2), session["total_steps"])
	assert.Equal(t, float64(100), session["efficiency_score"])

	steps, ok := session["steps"].([]any)
	require.True(t, ok)
	require.Len(t, steps, 2)
	first := steps[0].(map[string]any)
	assert.Equal(t, "query_db", first["tool_name"])
	assert.Equal(t, "table='sales'", first["tool_input"])
	assert.Equal(t, "42 rows", first["tool_result"])
	assert.Equal(t, "SUCCESS", first["status"])

	// The audit feed carries the whole lifecycle.
	types := map[string]int{}
	for _, raw := range app.GetAuditLogs(t, "") {
		ev := raw.(map[string]any)
		if ev["session_id"] == "e2e-lifecycle" {
			types[ev["event_type"].(string)]++
		}
	}
	assert.Equal(t, 1, types["session_start"])
	assert.Equal(t, 2, types["tool_call"])
	assert.Equal(t, 1, types["session_end"])
}

// --- Scenario: judge-backed evaluation ---

func TestE2E_JudgeEvaluation(t *testing.T) {
	app := NewTestApp(t)
	ctx := context.Background()

	judge := NewScriptedJudge()
	// One reply per recorded step, then the session verdict.
	judge.AddReply(`{"relevance_score": 90, "security_score": 100, "reasoning": "Queries the sales table the task asks about"}`)
	judge.AddReply(`{"relevance_score": 85, "security_score": 95, "reasoning": "Writes the summary the task requires"}`)
	judge.AddReply(`{
		"task_completed": true,
		"completion_confidence": 95,
		"efficiency_score": 88,
		"security_score": 97,
		"overall_quality": "EXCELLENT",
		"reasoning": "Two focused calls, no waste",
		"tool_analysis": [{"tool": "query_db", "assessment": "appropriate"}],
		"decision_observations": ["Went straight to the source table"],
		"efficiency_explanation": "Minimal step count for the task",
		"recommendations": ["None"]
	}`)

	hookStore, err := store.New(t.TempDir())
	require.NoError(t, err)

	hook, err := monitor.New(&monitor.Options{
		AgentName: "Research Assistant",
		Task:      "Summarize quarterly sales",
		SessionID: "e2e-judge",
		Store:     hookStore,
		Dashboard: dashboard.New(app.BaseURL, app.APIKey),
		Evaluator: eval.NewEvaluator(judge),
	})
	require.NoError(t, err)

	hook.OnSessionStart(ctx, nil)

	for _, call := range []monitor.ToolCall{
		{Name: "query_db", Input: map[string]any{"table": "sales"}},
		{Name: "write_report", Input: map[string]any{"path": "/tmp/summary.md"}},
	} {
		decision := hook.OnBeforeTool(ctx, &call)
		require.False(t, decision.Cancel)
		hook.OnAfterTool(ctx, &monitor.ToolResult{Name: call.Name, Input: call.Input, Result: "done"})
	}

	hook.OnSessionEnd(ctx)

	// Two step evaluations plus the session evaluation.
	assert.Equal(t, 3, judge.CallCount())

	report := hook.Report()
	assert.Equal(t, models.QualityExcellent, report.OverallQuality)
	require.NotNil(t, report.EfficiencyScore)
	assert.Equal(t, 88, *report.EfficiencyScore)
	require.NotNil(t, report.SecurityScore)
	assert.Equal(t, 97, *report.SecurityScore)
	require.NotNil(t, report.TaskCompletion)
	assert.True(t, *report.TaskCompletion)
	require.Len(t, report.Steps, 2)
	require.NotNil(t, report.Steps[0].RelevanceScore)
	assert.Equal(t, 90, *report.Steps[0].RelevanceScore)

	// The server received the judge verdict through the completion merge.
	session := app.GetSession(t, "e2e-judge")
	assert.Equal(t, "EXCELLENT", session["overall_quality"])
	assert.Equal(t, float64(88), session["efficiency_score"])
	assert.Equal(t, float64(97), session["security_score"])
	assert.Equal(t, true, session["task_completion"])
	assert.Equal(t, "Two focused calls, no waste", session["ai_evaluation"])
	assert.Equal(t, []any{"None"}, session["recommendations"])

	// Step scores live in the hook's report; steps were streamed before
	// evaluation ran, so the server copies keep their pre-evaluation nulls.
	steps := session["steps"].([]any)
	first := steps[0].(map[string]any)
	assert.Nil(t, first["relevance_score"])
}

// --- Scenario: loop detection and intervention ---

func TestE2E_LoopIntervention(t *testing.T) {
	app := NewTestApp(t)
	ctx := context.Background()

	hookStore, err := store.New(t.TempDir())
	require.NoError(t, err)

	hook, err := monitor.New(&monitor.Options{
		AgentName:    "Stuck Crawler",
		Task:         "Fetch the landing page once",
		SessionID:    "e2e-loop",
		Mode:         models.GuardModeIntervene,
		Store:        hookStore,
		Dashboard:    dashboard.New(app.BaseURL, app.APIKey),
		EnableAIEval: monitor.BoolPtr(false),
	})
	require.NoError(t, err)

	hook.OnSessionStart(ctx, nil)

	// Identical calls fill the pattern window; once it is full the monitor
	// cancels the call instead of letting the loop continue.
	call := &monitor.ToolCall{Name: "fetch_page", Input: map[string]any{"url": "https://example.com"}}
	var blocked *monitor.Decision
	executed := 0
	for i := 0; i < 5; i++ {
		decision := hook.OnBeforeTool(ctx, call)
		if decision.Cancel {
			blocked = decision
			break
		}
		executed++
		hook.OnAfterTool(ctx, &monitor.ToolResult{Name: call.Name, Input: call.Input, Result: "<html>ok</html>"})
	}
	require.NotNil(t, blocked, "expected the loop to be cancelled")
	assert.Equal(t, 4, executed)
	assert.Contains(t, blocked.Reason, "Loop detected")

	// Once blocked, every later call is cancelled with the same reason.
	again := hook.OnBeforeTool(ctx, call)
	assert.True(t, again.Cancel)
	assert.Equal(t, blocked.Reason, again.Reason)

	hook.OnSessionEnd(ctx)

	report := hook.Report()
	assert.True(t, report.LoopDetected)
	assert.Equal(t, models.QualityStuck, report.OverallQuality)
	require.Len(t, report.Steps, 5)
	assert.Equal(t, models.StepStatusBlocked, report.Steps[4].Status)

	issueTypes := map[models.IssueType]bool{}
	for _, issue := range report.Issues {
		issueTypes[issue.IssueType] = true
	}
	assert.True(t, issueTypes[models.IssueInfiniteLoop])

	// The dashboard shows the session as a terminated, stuck run.
	session := app.GetSession(t, "e2e-loop")
	assert.Equal(t, "terminated", session["status"])
	assert.Equal(t, "STUCK", session["overall_quality"])
	assert.Equal(t, true, session["loop_detected"])
	assert.Equal(t, float64(5), session["total_steps"])

	steps := session["steps"].([]any)
	require.Len(t, steps, 5)
	last := steps[4].(map[string]any)
	assert.Equal(t, "BLOCKED", last["status"])
}

// --- Scenario: crash and resume under one session ID ---

func TestE2E_SessionResume(t *testing.T) {
	app := NewTestApp(t)

	// First run: one step, then the agent dies without completing.
	app.IngestSession(t, map[string]any{
		"session_id": "e2e-resume",
		"agent_name": "Flaky Agent",
		"task":       "Index the archive",
	})
	app.AppendStep(t, "e2e-resume", map[string]any{
		"step_number": 1,
		"tool_name":   "list_files",
		"tool_input":  map[string]any{"dir": "/archive"},
		"tool_result": "120 files",
		"status":      "SUCCESS",
	})

	// Second run resumes under the same ID and picks up the history.
	doc := app.IngestSession(t, map[string]any{
		"session_id": "e2e-resume",
		"agent_name": "Flaky Agent",
	})
	steps, ok := doc["steps"].([]any)
	require.True(t, ok)
	require.Len(t, steps, 1)
	assert.Equal(t, "active", doc["status"])
	assert.Nil(t, doc["ended_at"])
	// The task from the first run survives a resume without one.
	assert.Equal(t, "Index the archive", doc["task"])

	resp := app.AppendStep(t, "e2e-resume", map[string]any{
		"step_number": 2,
		"tool_name":   "read_file",
		"tool_input":  map[string]any{"path": "/archive/0001.txt"},
		"tool_result": "ok",
		"status":      "SUCCESS",
	})
	assert.Equal(t, float64(2), resp["total_steps"])

	app.CompleteSession(t, "e2e-resume", map[string]any{
		"status":           "completed",
		"ended_at":         models.NowISO(),
		"overall_quality":  "GOOD",
		"efficiency_score": 80,
		"security_score":   100,
	})

	session := app.GetSession(t, "e2e-resume")
	assert.Equal(t, "completed", session["status"])
	assert.Equal(t, "GOOD", session["overall_quality"])
	// Both runs' steps survive the completion merge.
	assert.Equal(t, float64(2), session["total_steps"])
	require.Len(t, session["steps"].([]any), 2)
}
