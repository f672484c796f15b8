package eval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arguslabs/argus/pkg/metrics"
	"github.com/arguslabs/argus/pkg/models"
)

// SessionEvaluation is the judge's verdict on a whole session. Nil score
// pointers mean the judge could not produce that score; the caller keeps
// its heuristic values in that case.
type SessionEvaluation struct {
	TaskCompleted         *bool
	CompletionConfidence  *int
	EfficiencyScore       *int
	SecurityScore         *int
	OverallQuality        models.SessionQuality
	Reasoning             string
	ToolAnalysis          []map[string]any
	DecisionObservations  []string
	EfficiencyExplanation string
	Recommendations       []string
}

// Evaluator runs step and session evaluations against a Judge.
type Evaluator struct {
	judge Judge
}

// NewEvaluator creates an evaluator bound to one judge.
func NewEvaluator(judge Judge) *Evaluator {
	return &Evaluator{judge: judge}
}

// EvaluateStep scores one tool call for relevance and security against the
// task. Nil scores with a failure reasoning mean the judge call failed and
// the step should keep its placeholder scores.
func (e *Evaluator) EvaluateStep(ctx context.Context, taskDescription, toolName string, toolInput map[string]any, toolResult string, previous []*models.StepRecord) (relevance, security *int, reasoning string) {
	prompt := buildStepPrompt(taskDescription, toolName, toolInput, toolResult, previous)

	start := time.Now()
	reply, err := e.judge.Complete(ctx, stepSystemPrompt, prompt)
	metrics.ObserveJudge("step", start, err)
	if err != nil {
		slog.Warn("Step evaluation failed", "tool", toolName, "error", err)
		return nil, nil, fmt.Sprintf("Evaluation failed: %v", err)
	}
	result, err := parseJSONResponse(reply)
	if err != nil {
		slog.Warn("Step evaluation failed", "tool", toolName, "error", err)
		return nil, nil, fmt.Sprintf("Evaluation failed: %v", err)
	}

	rel := intField(result, "relevance_score", 50)
	sec := intField(result, "security_score", 100)
	return &rel, &sec, stringField(result, "reasoning", "")
}

// EvaluateSession scores a finished session. It always returns a usable
// evaluation: sessions without a task come back PENDING, zero-step sessions
// are treated as pure reasoning agents, and judge failures come back POOR
// with nil scores.
func (e *Evaluator) EvaluateSession(ctx context.Context, task *models.TaskDefinition, steps []*models.StepRecord, executionTimeMS float64) *SessionEvaluation {
	if task == nil {
		return &SessionEvaluation{
			OverallQuality:  models.QualityPending,
			Reasoning:       "No task definition provided - cannot evaluate",
			Recommendations: []string{"Define clear task objectives for accurate evaluation"},
		}
	}

	// Pure-reasoning agents produce output directly, with no tool calls to
	// score. Nothing for the judge to look at.
	if len(steps) == 0 {
		completed := true
		confidence := 80
		efficiency, security := 100, 100
		return &SessionEvaluation{
			TaskCompleted:         &completed,
			CompletionConfidence:  &confidence,
			EfficiencyScore:       &efficiency,
			SecurityScore:         &security,
			OverallQuality:        models.QualityGood,
			Reasoning:             "Pure reasoning agent — produces decisions directly without tool calls. Evaluation based on output quality rather than step count.",
			ToolAnalysis:          []map[string]any{},
			DecisionObservations:  []string{"Agent operates through direct AI reasoning without external tool calls"},
			EfficiencyExplanation: "Step count is 0 by design — this agent type generates structured output directly.",
			Recommendations:       []string{},
		}
	}

	prompt := buildSessionPrompt(task, steps, executionTimeMS)

	start := time.Now()
	reply, err := e.judge.Complete(ctx, sessionSystemPrompt, prompt)
	metrics.ObserveJudge("session", start, err)
	if err == nil {
		var result map[string]any
		if result, err = parseJSONResponse(reply); err == nil {
			return sessionEvaluationFromResult(result)
		}
	}

	slog.Error("Session evaluation failed", "error", err)
	return &SessionEvaluation{
		OverallQuality:  models.QualityPoor,
		Reasoning:       fmt.Sprintf("Evaluation error: %v - scores unavailable", err),
		Recommendations: []string{"Review agent logs", "Check AI model connectivity"},
	}
}

// sessionEvaluationFromResult normalizes a parsed judge reply: scores are
// clamped to [0, 100] and an unrecognized quality falls back to GOOD.
func sessionEvaluationFromResult(result map[string]any) *SessionEvaluation {
	quality := models.SessionQuality(strings.ToUpper(stringField(result, "overall_quality", "GOOD")))
	if !quality.IsValid() {
		quality = models.QualityGood
	}

	completed := boolField(result, "task_completed", false)
	confidence := clamp(intField(result, "completion_confidence", 50))
	efficiency := clamp(intField(result, "efficiency_score", 50))
	security := clamp(intField(result, "security_score", 100))

	return &SessionEvaluation{
		TaskCompleted:         &completed,
		CompletionConfidence:  &confidence,
		EfficiencyScore:       &efficiency,
		SecurityScore:         &security,
		OverallQuality:        quality,
		Reasoning:             stringField(result, "reasoning", ""),
		ToolAnalysis:          mapListField(result, "tool_analysis"),
		DecisionObservations:  stringListField(result, "decision_observations"),
		EfficiencyExplanation: stringField(result, "efficiency_explanation", ""),
		Recommendations:       stringListField(result, "recommendations"),
	}
}
