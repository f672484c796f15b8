package models

import "github.com/google/uuid"

// SessionReport is the complete record of one monitored agent session.
//
// AgentID and Status are owned by the dashboard ingest path and never set by
// the monitor hook; they are tagged omitempty so the hook's writes leave them
// untouched during the store merge.
type SessionReport struct {
	SessionID string          `json:"session_id"`
	AgentID   string          `json:"agent_id,omitempty"`
	AgentName string          `json:"agent_name"`
	Model     string          `json:"model"`
	Task      *TaskDefinition `json:"task"`
	StartedAt string          `json:"started_at"`
	EndedAt   *string         `json:"ended_at"`
	Status    string          `json:"status,omitempty"`

	SwarmID      string `json:"swarm_id,omitempty"`
	SwarmOrder   int    `json:"swarm_order,omitempty"`
	HandoffInput string `json:"handoff_input,omitempty"`

	TotalSteps      int `json:"total_steps"`
	SuccessfulSteps int `json:"successful_steps"`
	FailedSteps     int `json:"failed_steps"`
	IrrelevantSteps int `json:"irrelevant_steps"`
	RedundantSteps  int `json:"redundant_steps"`
	BlockedSteps    int `json:"blocked_steps"`

	OverallQuality       SessionQuality `json:"overall_quality"`
	EfficiencyScore      *int           `json:"efficiency_score"`
	TaskCompletion       *bool          `json:"task_completion"`
	CompletionConfidence *int           `json:"completion_confidence"`

	SecurityScore            *int `json:"security_score"`
	SecurityThreatsDetected  int  `json:"security_threats_detected"`
	DataExfiltrationAttempts int  `json:"data_exfiltration_attempts"`
	InjectionAttempts        int  `json:"injection_attempts"`

	Issues                 []*QualityIssue `json:"issues"`
	LoopDetected           bool            `json:"loop_detected"`
	DriftDetected          bool            `json:"drift_detected"`
	SecurityBreachDetected bool            `json:"security_breach_detected"`

	Steps                []*StepRecord `json:"steps"`
	TotalExecutionTimeMS float64       `json:"total_execution_time_ms"`

	AIEvaluation          string           `json:"ai_evaluation"`
	ToolAnalysis          []map[string]any `json:"tool_analysis"`
	DecisionObservations  []string         `json:"decision_observations"`
	EfficiencyExplanation string           `json:"efficiency_explanation"`
	Recommendations       []string         `json:"recommendations"`
}

// NewSessionReport creates a report with a generated session ID and the
// current start timestamp.
func NewSessionReport() *SessionReport {
	return &SessionReport{
		SessionID:            uuid.New().String()[:12],
		AgentName:            "unknown",
		StartedAt:            NowISO(),
		OverallQuality:       QualityPending,
		Issues:               []*QualityIssue{},
		Steps:                []*StepRecord{},
		ToolAnalysis:         []map[string]any{},
		DecisionObservations: []string{},
		Recommendations:      []string{},
	}
}

// CountSteps recomputes the per-status step counters from Steps.
func (r *SessionReport) CountSteps() {
	r.TotalSteps = len(r.Steps)
	r.SuccessfulSteps = 0
	r.FailedSteps = 0
	r.IrrelevantSteps = 0
	r.RedundantSteps = 0
	r.BlockedSteps = 0
	for _, s := range r.Steps {
		switch s.Status {
		case StepStatusSuccess:
			r.SuccessfulSteps++
		case StepStatusFailed:
			r.FailedSteps++
		case StepStatusIrrelevant:
			r.IrrelevantSteps++
		case StepStatusRedundant:
			r.RedundantSteps++
		case StepStatusBlocked:
			r.BlockedSteps++
		}
	}
}
