// Package monitor implements the runtime interception hook that watches a
// tool-using agent session. The hook receives framework lifecycle events,
// records every tool call as a StepRecord, runs deterministic pattern
// analysis inline, and defers AI judge scoring to session finalization.
//
// A session moves through a fixed lifecycle:
//
//	IDLE -> SessionStart -> ACTIVE -> (BeforeTool -> AfterTool)* -> SessionEnd -> DONE
//
// MessageAdded events are only honored while ACTIVE. SessionEnd from any
// state short of DONE forces finalization, so an agent crash mid-tool-call
// still produces a persisted report.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/arguslabs/argus/pkg/analyzer"
	"github.com/arguslabs/argus/pkg/masking"
	"github.com/arguslabs/argus/pkg/models"
	"github.com/arguslabs/argus/pkg/store"
)

// maxTaskChars caps auto-detected task descriptions taken from user messages.
const maxTaskChars = 500

type phase int

const (
	phaseIdle phase = iota
	phaseActive
	phaseToolPending
	phaseFinalizing
	phaseDone
)

// SessionStartEvent carries what the framework knows when an agent
// invocation begins.
type SessionStartEvent struct {
	// SystemPrompt is scanned for malicious instruction families.
	SystemPrompt string
	// Model is the LLM backing the agent, when the framework reports it.
	Model string
}

// ContentBlock is one block of a conversation message. Text blocks carry
// prose; ToolUse is non-nil for tool invocation blocks.
type ContentBlock struct {
	Text    string
	ToolUse map[string]any
}

// Message is a conversation message observed by the hook.
type Message struct {
	Role    string
	Content []ContentBlock
}

// ToolCall describes a tool invocation about to execute.
type ToolCall struct {
	Name  string
	Input map[string]any
}

// ToolResult describes a finished tool invocation. Result may be a string,
// a map, or any JSON-encodable value; Err is set when the framework caught
// an exception from the tool.
type ToolResult struct {
	Name   string
	Input  map[string]any
	Result any
	Err    error
}

// Decision tells the framework what to do with a pending tool call.
// The zero value lets the call proceed.
type Decision struct {
	Cancel bool
	Reason string
}

// evalItem is a queued evaluation descriptor. Descriptors are plain data,
// not live tasks; they are drained once during finalization.
type evalItem struct {
	step       *models.StepRecord
	fullResult string
	relevance  bool
	shadow     bool
	toolName   string
	toolInput  map[string]any
	previous   []*models.StepRecord
}

// Hook observes one agent at a time. All event methods are safe for
// concurrent use; a mutex serializes the session state.
type Hook struct {
	opts     *Options
	store    *store.FileStore
	analyzer *analyzer.Analyzer
	masker   *masking.Service
	logger   *slog.Logger

	mu               sync.Mutex
	phase            phase
	report           *models.SessionReport
	task             *models.TaskDefinition
	explicitTask     bool
	stepCounter      int
	existingSteps    int
	loopDetected     bool
	loopReason       string
	blocked          *Decision
	pendingRedundant bool
	sessionStart     time.Time
	agentID          string
	evalQueue        []*evalItem
}

// New creates a monitoring hook. A nil opts uses all defaults; when no
// Store is provided, reports land in DefaultLogDir.
func New(userOpts *Options) (*Hook, error) {
	opts, err := resolveOptions(userOpts)
	if err != nil {
		return nil, err
	}

	st := opts.Store
	if st == nil {
		st, err = store.New(DefaultLogDir)
		if err != nil {
			return nil, fmt.Errorf("open hook store: %w", err)
		}
	}

	task := opts.resolveTask()
	return &Hook{
		opts:         opts,
		store:        st,
		analyzer:     analyzer.New(opts.LoopWindow, opts.LoopThreshold, opts.MaxSameTool),
		masker:       maskingService,
		logger:       slog.Default().With("component", "monitor-hook"),
		task:         task,
		explicitTask: task != nil,
	}, nil
}

// Report exposes the current session report. Nil before the first
// SessionStart.
func (h *Hook) Report() *models.SessionReport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.report
}

// SessionID returns the active session's ID, or "" before SessionStart.
func (h *Hook) SessionID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.report == nil {
		return ""
	}
	return h.report.SessionID
}

// OnSessionStart resets per-session state and opens a fresh report.
// Calling it again after a finished session starts the next one.
func (h *Hook) OnSessionStart(ctx context.Context, ev *SessionStartEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ev == nil {
		ev = &SessionStartEvent{}
	}

	// Auto-detected tasks are re-captured from this invocation's first
	// user message; explicit tasks persist as-is.
	if !h.explicitTask {
		h.task = nil
	}
	h.stepCounter = 0
	h.existingSteps = 0
	h.loopDetected = false
	h.loopReason = ""
	h.blocked = nil
	h.pendingRedundant = false
	h.evalQueue = nil
	h.analyzer.Reset()
	h.sessionStart = time.Now()

	report := models.NewSessionReport()
	if h.opts.AgentName != "" {
		report.AgentName = h.opts.AgentName
	}
	if id := h.deriveSessionID(); id != "" {
		report.SessionID = id
	}
	report.Model = ev.Model
	if report.Model == "" {
		report.Model = h.opts.Model
	}
	report.Task = h.task
	report.SwarmID = h.opts.SwarmID
	report.SwarmOrder = h.opts.SwarmOrder
	report.HandoffInput = h.opts.HandoffInput
	h.report = report
	h.phase = phaseActive

	h.logger.Info("Session started",
		"session_id", report.SessionID,
		"agent", report.AgentName)

	if ev.SystemPrompt != "" {
		if issue := scanSystemPrompt(ev.SystemPrompt); issue != nil {
			h.addIssue(issue)
			report.SecurityBreachDetected = true
			h.logger.Warn("System prompt security alert",
				"severity", issue.Severity,
				"description", cut(issue.Description, 120))
		}
	}

	if h.opts.Dashboard != nil {
		h.dashboardSessionStart(ctx)
	}
}

// OnMessageAdded captures the task from the first user message and records
// pure-reasoning assistant turns as synthetic steps.
func (h *Hook) OnMessageAdded(ctx context.Context, msg *Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if msg == nil || h.phase != phaseActive {
		return
	}

	if h.task == nil && msg.Role == "user" {
		for _, block := range msg.Content {
			text := strings.TrimSpace(block.Text)
			if text == "" {
				continue
			}
			task := models.NewTaskDefinition(cut(text, maxTaskChars))
			task.MaxSteps = h.opts.MaxSteps
			h.task = task
			if h.report.Task == nil {
				h.report.Task = task
			}
			h.logger.Debug("Task auto-set", "task", cut(text, 80))
			break
		}
	}

	// A text-only assistant turn before any tool call of this invocation is
	// the agent's work product itself; record it so pure-reasoning agents
	// don't finish with zero steps.
	if msg.Role != "assistant" || len(msg.Content) == 0 {
		return
	}
	for _, block := range msg.Content {
		if block.ToolUse != nil {
			return
		}
	}
	if h.stepCounter != h.existingSteps {
		return
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	reasoning := strings.TrimSpace(strings.Join(parts, "\n"))
	if reasoning == "" {
		return
	}

	h.stepCounter++
	taskDesc := ""
	if h.task != nil {
		taskDesc = cut(h.task.Description, 200)
	}
	step := models.NewStepRecord(h.stepCounter, "ai_reasoning", map[string]any{"task": taskDesc})
	step.ToolResult = ellipsize(reasoning, 800)
	relevance, security := 100, 100
	step.RelevanceScore = &relevance
	step.SecurityScore = &security
	h.report.Steps = append(h.report.Steps, step)
	h.journalStep(step)
	h.streamStep(ctx, step)
	h.logger.Debug("Reasoning step captured", "step", h.stepCounter, "chars", len(reasoning))
}

// OnBeforeTool analyzes a pending tool call and decides whether it may run.
// Once a call has been blocked, every later call is blocked with the same
// reason; a BLOCKED step is terminal for the attempt.
func (h *Hook) OnBeforeTool(ctx context.Context, call *ToolCall) *Decision {
	h.mu.Lock()
	defer h.mu.Unlock()
	if call == nil || h.report == nil || h.phase == phaseFinalizing || h.phase == phaseDone {
		return &Decision{}
	}
	if h.blocked != nil {
		return h.blocked
	}

	h.phase = phaseToolPending
	h.stepCounter++

	result := h.analyzer.AnalyzeStep(call.Name, call.Input, h.stepCounter)
	h.pendingRedundant = result.Redundant
	for _, issue := range result.Issues {
		h.addIssue(issue)
		if issue.IssueType == models.IssueInfiniteLoop && issue.Severity >= 8 {
			h.loopDetected = true
			h.loopReason = issue.Description
			h.report.LoopDetected = true
		}
		if issue.IssueType == models.IssueSecurityBypass && issue.Severity >= 7 {
			h.report.SecurityBreachDetected = true
		}
	}

	if h.loopDetected && (h.opts.Mode.Intervene() || h.opts.AutoInterveneOnLoop) {
		return h.block(ctx, call, "Loop detected: "+h.loopReason)
	}
	if h.stepCounter > h.opts.MaxSteps && h.opts.Mode.Intervene() {
		return h.block(ctx, call, fmt.Sprintf("Exceeded maximum steps (%d)", h.opts.MaxSteps))
	}
	return &Decision{}
}

// block cancels the pending call and records the terminal BLOCKED step.
func (h *Hook) block(ctx context.Context, call *ToolCall, reason string) *Decision {
	h.logger.Warn("Intervening: cancelling tool call",
		"step", h.stepCounter,
		"tool", call.Name,
		"reason", reason)

	step := models.NewStepRecord(h.stepCounter, call.Name, h.masker.RedactArgs(call.Input))
	step.Status = models.StepStatusBlocked
	step.ToolResult = reason
	h.report.Steps = append(h.report.Steps, step)
	h.journalStep(step)
	h.streamStep(ctx, step)

	h.pendingRedundant = false
	h.phase = phaseActive
	h.blocked = &Decision{Cancel: true, Reason: reason}
	return h.blocked
}

// OnAfterTool records the result of the tool call that OnBeforeTool let
// through. The stored result is redacted and truncated; the full text is
// kept on the evaluation descriptor for the judge.
func (h *Hook) OnAfterTool(ctx context.Context, result *ToolResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if result == nil || h.report == nil || h.blocked != nil || h.phase != phaseToolPending {
		return
	}
	h.phase = phaseActive
	redundant := h.pendingRedundant
	h.pendingRedundant = false

	fullResult := stringifyResult(result.Result)
	stored := "No result"
	if fullResult == "" {
		fullResult = "No result"
	} else {
		stored = ellipsize(h.masker.MaskText(fullResult), h.opts.TruncationLimit)
	}

	status := models.StepStatusSuccess
	switch {
	case result.Err != nil:
		status = models.StepStatusFailed
	case errorResult(result.Result):
		status = models.StepStatusFailed
	case redundant:
		status = models.StepStatusRedundant
	}

	step := models.NewStepRecord(h.stepCounter, result.Name, h.masker.RedactArgs(result.Input))
	step.Status = status
	step.ToolResult = stored
	h.report.Steps = append(h.report.Steps, step)
	h.journalStep(step)
	h.streamStep(ctx, step)

	wantRelevance := h.opts.aiEval() && h.task != nil
	wantShadow := h.opts.EnableShadowBrowser
	if wantRelevance || wantShadow {
		h.evalQueue = append(h.evalQueue, &evalItem{
			step:       step,
			fullResult: fullResult,
			relevance:  wantRelevance,
			shadow:     wantShadow,
			toolName:   result.Name,
			toolInput:  result.Input,
			previous:   slices.Clone(h.report.Steps[:len(h.report.Steps)-1]),
		})
	}
}

// OnSessionEnd closes the session: counts, heuristic scores, a first
// persisted report, then the synchronous evaluation drain and the final
// persisted report.
func (h *Hook) OnSessionEnd(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.report == nil || h.phase == phaseDone {
		return
	}
	h.phase = phaseFinalizing

	endedAt := models.NowISO()
	h.report.EndedAt = &endedAt
	h.report.CountSteps()
	h.report.LoopDetected = h.loopDetected
	h.report.TotalExecutionTimeMS = time.Since(h.sessionStart).Seconds() * 1000

	if h.task != nil {
		for _, issue := range h.analyzer.CheckEfficiency(len(h.report.Steps), h.task.MaxSteps) {
			h.addIssue(issue)
		}
		if h.task.MaxSteps > 0 {
			efficiency := 100 - (len(h.report.Steps)-h.task.MaxSteps)*10
			if efficiency > 100 {
				efficiency = 100
			}
			if efficiency < 0 {
				efficiency = 0
			}
			h.report.EfficiencyScore = &efficiency
		}
	}

	// Heuristic report first so the dashboard shows counts immediately,
	// even if the judge is slow or down.
	h.finalizeReport(ctx)

	if h.runEvaluation(ctx) {
		h.finalizeReport(ctx)
	}
	h.phase = phaseDone
}

// addIssue appends an issue to the report, persists it, and notifies the
// caller's issue callback.
func (h *Hook) addIssue(issue *models.QualityIssue) {
	h.report.Issues = append(h.report.Issues, issue)
	if err := h.store.WriteIssue(h.report.SessionID, issue); err != nil {
		h.logger.Warn("Issue write failed", "issue_id", issue.IssueID, "error", err)
	}
	if h.opts.OnIssue != nil {
		h.opts.OnIssue(issue)
	}
}

// journalStep appends the step to the per-day step journal.
func (h *Hook) journalStep(step *models.StepRecord) {
	if err := h.store.AppendStep(h.report.SessionID, step); err != nil {
		h.logger.Warn("Step journal write failed", "step", step.StepNumber, "error", err)
	}
}

// streamStep sends the step to the dashboard when streaming is up.
func (h *Hook) streamStep(ctx context.Context, step *models.StepRecord) {
	if h.opts.Dashboard != nil && h.agentID != "" {
		h.opts.Dashboard.SendStep(ctx, h.report.SessionID, step)
	}
}

// deriveSessionID builds a stable session identity. Swarm members share a
// per-run prefix; solo hook agents get a fresh timestamped ID each run.
func (h *Hook) deriveSessionID() string {
	if h.opts.SessionID != "" {
		return h.opts.SessionID
	}
	if h.opts.AgentName == "" {
		return ""
	}
	slug := safeChars(strings.ReplaceAll(strings.ToLower(h.opts.AgentName), " ", "_"))
	if h.opts.SwarmID != "" {
		return "swarm-" + safeChars(h.opts.SwarmID) + "-" + slug
	}
	return "hook-" + slug + "-" + time.Now().Format("20060102-150405")
}

// dashboardSessionStart registers the agent (idempotent) and creates or
// resumes the dashboard session. Resume picks up step numbering after the
// steps already on record.
func (h *Hook) dashboardSessionStart(ctx context.Context) {
	d := h.opts.Dashboard
	name := h.report.AgentName

	if h.agentID == "" {
		taskDesc := "Live monitoring"
		if h.task != nil {
			taskDesc = h.task.Description
		}
		h.agentID = d.RegisterAgent(ctx, name, taskDesc, filepath.Base(os.Args[0]))
		if h.agentID == "" {
			h.logger.Warn("Dashboard agent registration failed, streaming disabled",
				"dashboard_url", d.BaseURL())
			return
		}
	}

	taskText := ""
	if h.task != nil {
		taskText = h.task.Description
	}
	resp := d.IngestSession(ctx, map[string]any{
		"session_id":    h.report.SessionID,
		"agent_id":      h.agentID,
		"agent_name":    name,
		"task":          taskText,
		"started_at":    h.report.StartedAt,
		"model":         h.report.Model,
		"swarm_id":      h.report.SwarmID,
		"swarm_order":   h.report.SwarmOrder,
		"handoff_input": h.report.HandoffInput,
	})
	if resp == nil {
		return
	}
	if steps, ok := resp["steps"].([]any); ok && len(steps) > 0 {
		h.existingSteps = len(steps)
		h.stepCounter = len(steps)
		h.logger.Info("Resuming session", "existing_steps", h.existingSteps)
	}
}

// stringifyResult renders a framework tool result for storage and judging.
func stringifyResult(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprint(v)
	}
}

// errorResult detects tool frameworks that report failure through a result
// object instead of an exception.
func errorResult(v any) bool {
	m, ok := v.(map[string]any)
	return ok && m["status"] == "error"
}

// safeChars maps everything outside [A-Za-z0-9_] to underscores.
func safeChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// cut truncates s to at most n runes.
func cut(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// ellipsize truncates s to n runes and appends "..." when it was longer.
func ellipsize(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
