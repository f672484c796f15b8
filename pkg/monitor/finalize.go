package monitor

import (
	"context"
	"fmt"

	"github.com/arguslabs/argus/pkg/eval"
	"github.com/arguslabs/argus/pkg/models"
)

// securityConcernThreshold is the judge security score at or below which a
// step raises a security issue.
const securityConcernThreshold = 50

// runEvaluation drains queued step evaluations and runs the session-level
// judge, all inside one bounded window. Returns false when there was no
// evaluation work, so the caller can skip the second report write.
func (h *Hook) runEvaluation(ctx context.Context) bool {
	runJudge := h.opts.aiEval() && h.task != nil && h.opts.Evaluator != nil
	runShadow := h.opts.EnableShadowBrowser && h.opts.Verifier != nil
	if !runJudge && !runShadow {
		h.evalQueue = nil
		return false
	}

	evalCtx, cancel := context.WithTimeout(ctx, h.opts.FinalizeTimeout)
	defer cancel()

	if len(h.evalQueue) > 0 {
		h.logger.Info("Evaluating queued steps", "count", len(h.evalQueue))
	}
	for _, item := range h.evalQueue {
		if evalCtx.Err() != nil {
			break
		}
		if item.relevance && runJudge {
			h.evaluateStep(evalCtx, item)
		}
		if item.shadow && runShadow {
			h.shadowVerify(evalCtx, item)
		}
	}
	h.evalQueue = nil

	if evalCtx.Err() != nil {
		h.evaluationTimedOut(evalCtx.Err())
		return true
	}
	if runJudge {
		verdict := h.opts.Evaluator.EvaluateSession(evalCtx, h.task, h.report.Steps, h.report.TotalExecutionTimeMS)
		if evalCtx.Err() != nil {
			h.evaluationTimedOut(evalCtx.Err())
			return true
		}
		h.applySessionEvaluation(verdict)
	}
	return true
}

// evaluationTimedOut records that judge work was cut off. Heuristic scores
// written by the first report pass stay in place.
func (h *Hook) evaluationTimedOut(err error) {
	issue := models.NewQualityIssue(models.IssueIncomplete, 5,
		fmt.Sprintf("AI evaluation did not complete: %v", err))
	issue.Recommendation = "Check judge connectivity"
	h.addIssue(issue)
	h.logger.Warn("AI evaluation timed out, keeping heuristic scores", "error", err)
}

// evaluateStep runs the per-step judge and applies its consequences:
// relevance and security scores, drift and security issues, and the
// missing-config scan of the full result text.
func (h *Hook) evaluateStep(ctx context.Context, item *evalItem) {
	step := item.step
	relevance, security, reasoning := h.opts.Evaluator.EvaluateStep(
		ctx, h.task.Description, step.ToolName, step.ToolInput, item.fullResult, item.previous)
	step.RelevanceScore = relevance
	step.SecurityScore = security
	step.Reasoning = reasoning

	if relevance != nil && *relevance < h.opts.RelevanceThreshold {
		step.Status = models.StepStatusIrrelevant
		issue := models.NewQualityIssue(models.IssueTaskDrift, 6,
			fmt.Sprintf("Step %d (%s) not relevant to task", step.StepNumber, step.ToolName))
		issue.AffectedSteps = []string{step.StepID}
		issue.Recommendation = "Agent may be drifting from task objective"
		h.addIssue(issue)
	}

	if security != nil && *security <= securityConcernThreshold {
		severity := 8
		if *security < 20 {
			severity = 10
		}
		issue := models.NewQualityIssue(classifySecurityReasoning(reasoning), severity,
			fmt.Sprintf("Security concern in step %d: %s", step.StepNumber, reasoning))
		issue.AffectedSteps = []string{step.StepID}
		issue.Recommendation = "Review this action for security implications"
		h.addIssue(issue)
		h.report.SecurityBreachDetected = true
	}

	if pattern, hint, ok := scanConfigError(item.fullResult); ok {
		issue := models.NewQualityIssue(models.IssueMissingConfig, 7,
			fmt.Sprintf("Step %d (%s) failed due to missing configuration: %s",
				step.StepNumber, step.ToolName, hint))
		issue.AffectedSteps = []string{step.StepID}
		issue.Recommendation = fmt.Sprintf("Fix the missing configuration. Matched pattern: '%s'", pattern)
		h.addIssue(issue)
		// The tool reported an error in its result text even though the
		// framework saw a clean return.
		step.Status = models.StepStatusFailed
	}
}

// browserActions maps tool names to the shadow verification flavor they need.
var browserActions = map[string]string{
	"navigate_to":  "navigation",
	"open_url":     "navigation",
	"browse":       "navigation",
	"scrape_page":  "scraping",
	"extract_data": "scraping",
	"get_content":  "scraping",
	"fill_form":    "form",
	"submit_form":  "form",
	"click_button": "interaction",
}

// shadowVerify replays a browser step through the shadow verifier and
// merges the outcome into the step and issue list.
func (h *Hook) shadowVerify(ctx context.Context, item *evalItem) {
	action, ok := browserActions[item.toolName]
	if !ok {
		return
	}
	url := firstString(item.toolInput, "url", "page", "link")
	if url == "" {
		return
	}

	var verification *eval.ShadowVerification
	switch action {
	case "navigation":
		verification = h.opts.Verifier.VerifyNavigation(ctx, url, cut(item.fullResult, 200))
	case "scraping":
		verification = h.opts.Verifier.VerifyScraping(ctx, url, item.fullResult, "text")
	case "form":
		verification = h.opts.Verifier.VerifyFormSubmission(ctx, url, item.toolInput, item.fullResult)
	default:
		verification = h.opts.Verifier.VerifyNavigation(ctx, url, "")
	}
	if verification == nil {
		return
	}

	step := item.step
	step.Metadata["shadow_verification"] = verification
	if verification.SecurityScore != nil {
		if step.SecurityScore == nil || *verification.SecurityScore < *step.SecurityScore {
			step.SecurityScore = verification.SecurityScore
		}
	}

	if verification.VerificationResult != eval.VerificationUnavailable && !verification.Verified {
		details := verification.Details
		if details == "" {
			details = "Content mismatch"
		}
		issue := models.NewQualityIssue(models.IssueSuspiciousBehavior, 7,
			fmt.Sprintf("Shadow Browser detected discrepancy in %s: %s", item.toolName, details))
		issue.AffectedSteps = []string{step.StepID}
		issue.Recommendation = "Verify agent's browser actions manually"
		h.addIssue(issue)
	}

	if len(verification.SecurityIssues) > 0 {
		for _, finding := range verification.SecurityIssues {
			issue := models.NewQualityIssue(classifyShadowIssue(finding), 9,
				fmt.Sprintf("Shadow Browser security alert: %s", finding))
			issue.AffectedSteps = []string{step.StepID}
			issue.Recommendation = "Review page security before proceeding"
			h.addIssue(issue)
		}
		h.report.SecurityBreachDetected = true
	}
}

// securityThreatTypes are the issue categories counted as threats on the
// final report.
var securityThreatTypes = map[models.IssueType]bool{
	models.IssueDataExfiltration:   true,
	models.IssuePromptInjection:    true,
	models.IssueUnauthorizedAccess: true,
	models.IssueSuspiciousBehavior: true,
	models.IssueCredentialLeak:     true,
}

// applySessionEvaluation merges the judge's session verdict into the
// report. Nil scores never clobber heuristic values.
func (h *Hook) applySessionEvaluation(verdict *eval.SessionEvaluation) {
	report := h.report
	report.TaskCompletion = verdict.TaskCompleted
	report.CompletionConfidence = verdict.CompletionConfidence
	if verdict.EfficiencyScore != nil {
		report.EfficiencyScore = verdict.EfficiencyScore
	}
	if verdict.SecurityScore != nil {
		report.SecurityScore = verdict.SecurityScore
	}
	report.OverallQuality = verdict.OverallQuality
	report.AIEvaluation = verdict.Reasoning
	report.ToolAnalysis = verdict.ToolAnalysis
	report.DecisionObservations = verdict.DecisionObservations
	report.EfficiencyExplanation = verdict.EfficiencyExplanation
	report.Recommendations = verdict.Recommendations

	threats := 0
	for _, issue := range report.Issues {
		if securityThreatTypes[issue.IssueType] {
			threats++
		}
	}
	report.SecurityThreatsDetected = threats
}

// hardSecurityTypes force a FAILED verdict at severity 8+ regardless of
// what the judge concluded. The judge only sees observable behavior and
// misses implementation-level threats; deterministic rules are ground truth.
var hardSecurityTypes = map[models.IssueType]bool{
	models.IssueSecurityBypass:   true,
	models.IssuePromptInjection:  true,
	models.IssueDataExfiltration: true,
}

// finalizeReport applies deterministic overrides, persists the report, and
// notifies the dashboard. Runs once with heuristic scores and, when
// evaluation is on, again with judge scores.
func (h *Hook) finalizeReport(ctx context.Context) {
	report := h.report

	hardSecurity := false
	criticalSecurity := false
	loopIssue := false
	for _, issue := range report.Issues {
		if issue.Severity < 8 {
			continue
		}
		if hardSecurityTypes[issue.IssueType] {
			hardSecurity = true
			if issue.IssueType == models.IssuePromptInjection || issue.IssueType == models.IssueDataExfiltration {
				criticalSecurity = true
			}
		}
		if issue.IssueType == models.IssueInfiniteLoop {
			loopIssue = true
		}
	}

	if h.loopDetected || loopIssue {
		report.OverallQuality = models.QualityStuck
	} else if hardSecurity {
		report.OverallQuality = models.QualityFailed
	}

	if hardSecurity {
		ceiling := 40
		if criticalSecurity {
			ceiling = 20
		}
		if report.SecurityScore == nil || *report.SecurityScore > ceiling {
			report.SecurityScore = &ceiling
		}
	}

	if err := h.store.SaveSessionReport(report); err != nil {
		h.logger.Error("Session report write failed", "session_id", report.SessionID, "error", err)
	}

	if h.opts.Dashboard != nil && h.agentID != "" {
		h.opts.Dashboard.CompleteSession(ctx, report.SessionID, h.completionPayload())
	}

	h.logger.Info("Session complete",
		"session_id", report.SessionID,
		"steps", report.TotalSteps,
		"quality", report.OverallQuality)
}

// completionPayload is the final session state sent to the dashboard.
// Total steps include any steps recorded by earlier runs of a resumed
// session.
func (h *Hook) completionPayload() map[string]any {
	report := h.report
	issues := make([]map[string]any, 0, len(report.Issues))
	for _, issue := range report.Issues {
		issues = append(issues, map[string]any{
			"issue_type":     issue.IssueType,
			"severity":       issue.Severity,
			"description":    issue.Description,
			"recommendation": issue.Recommendation,
		})
	}

	endedAt := models.NowISO()
	if report.EndedAt != nil {
		endedAt = *report.EndedAt
	}
	return map[string]any{
		"ended_at":                 endedAt,
		"status":                   "completed",
		"total_steps":              h.existingSteps + report.TotalSteps,
		"overall_quality":          report.OverallQuality,
		"efficiency_score":         report.EfficiencyScore,
		"security_score":           report.SecurityScore,
		"task_completion":          report.TaskCompletion,
		"completion_confidence":    report.CompletionConfidence,
		"loop_detected":            report.LoopDetected,
		"security_breach_detected": report.SecurityBreachDetected,
		"total_execution_time_ms":  report.TotalExecutionTimeMS,
		"issues":                   issues,
		"ai_evaluation":            report.AIEvaluation,
		"recommendations":          report.Recommendations,
		"tool_analysis":            report.ToolAnalysis,
		"decision_observations":    report.DecisionObservations,
		"efficiency_explanation":   report.EfficiencyExplanation,
		"swarm_id":                 report.SwarmID,
		"swarm_order":              report.SwarmOrder,
		"handoff_input":            report.HandoffInput,
	}
}

// firstString returns the first non-empty string value among keys.
func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
