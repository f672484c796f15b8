package models

import "github.com/google/uuid"

// StepRecord captures one tool invocation made by a monitored agent.
// Relevance and security scores stay nil until the AI judge fills them in;
// the store merge relies on that to avoid clobbering evaluated scores with
// placeholder nulls.
type StepRecord struct {
	StepID          string         `json:"step_id"`
	StepNumber      int            `json:"step_number"`
	Timestamp       string         `json:"timestamp"`
	ToolName        string         `json:"tool_name"`
	ToolInput       map[string]any `json:"tool_input"`
	ToolResult      string         `json:"tool_result"`
	Status          StepStatus     `json:"status"`
	RelevanceScore  *int           `json:"relevance_score"`
	SecurityScore   *int           `json:"security_score"`
	Reasoning       string         `json:"reasoning"`
	ExecutionTimeMS float64        `json:"execution_time_ms"`
	Metadata        map[string]any `json:"metadata"`
}

// NewStepRecord creates a step with a generated ID and the current timestamp.
func NewStepRecord(number int, toolName string, toolInput map[string]any) *StepRecord {
	if toolInput == nil {
		toolInput = map[string]any{}
	}
	return &StepRecord{
		StepID:     uuid.New().String()[:8],
		StepNumber: number,
		Timestamp:  NowISO(),
		ToolName:   toolName,
		ToolInput:  toolInput,
		Status:     StepStatusSuccess,
		Metadata:   map[string]any{},
	}
}
