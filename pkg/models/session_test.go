package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountSteps(t *testing.T) {
	r := NewSessionReport()
	r.Steps = []*StepRecord{
		{StepID: "a", Status: StepStatusSuccess},
		{StepID: "b", Status: StepStatusSuccess},
		{StepID: "c", Status: StepStatusFailed},
		{StepID: "d", Status: StepStatusRedundant},
		{StepID: "e", Status: StepStatusBlocked},
		{StepID: "f", Status: StepStatusIrrelevant},
	}

	r.CountSteps()

	assert.Equal(t, 6, r.TotalSteps)
	assert.Equal(t, 2, r.SuccessfulSteps)
	assert.Equal(t, 1, r.FailedSteps)
	assert.Equal(t, 1, r.IrrelevantSteps)
	assert.Equal(t, 1, r.RedundantSteps)
	assert.Equal(t, 1, r.BlockedSteps)
}

func TestTaskString(t *testing.T) {
	tests := []struct {
		name     string
		task     any
		expected string
	}{
		{
			name:     "nil task",
			task:     nil,
			expected: "",
		},
		{
			name:     "plain string",
			task:     "fetch BTC price",
			expected: "fetch BTC price",
		},
		{
			name:     "task definition",
			task:     &TaskDefinition{Description: "check inbox"},
			expected: "check inbox",
		},
		{
			name:     "decoded JSON object",
			task:     map[string]any{"description": "summarize logs", "max_steps": float64(20)},
			expected: "summarize logs",
		},
		{
			name:     "object without description",
			task:     map[string]any{"max_steps": float64(20)},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TaskString(tt.task))
		})
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"rfc3339", "2026-01-15T10:30:00Z"},
		{"rfc3339 nano", "2026-01-15T10:30:00.123456789+02:00"},
		{"naive with micros", "2026-01-15T10:30:00.123456"},
		{"naive seconds", "2026-01-15T10:30:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := ParseTime(tt.input)
			require.NoError(t, err)
			assert.Equal(t, 2026, ts.Year())
			assert.Equal(t, 30, ts.Minute())
		})
	}

	_, err := ParseTime("not a time")
	assert.Error(t, err)
}

func TestNewHookAgentEntry(t *testing.T) {
	entry := NewHookAgentEntry("My Trading Agent With A Very Long Name", "", "")

	assert.Equal(t, AgentSourceHook, entry.Source)
	assert.Equal(t, "analyzed", entry.Status)
	assert.Equal(t, "unknown", entry.SourceFile)
	assert.Equal(t, "Live monitoring: My Trading Agent With A Very Long Name", entry.TaskDescription)
	require.NotNil(t, entry.Discovery)
	assert.Equal(t, "Hook Agent", entry.Discovery.AgentType)

	// ID slug is lowercased, underscored, and capped at 20 chars.
	require.True(t, strings.HasPrefix(entry.ID, "hook-"))
	parts := strings.SplitN(entry.ID, "-", 3)
	require.Len(t, parts, 3)
	assert.Equal(t, "my_trading_agent_wit", parts[2])
}

func TestNewStepRecordDefaults(t *testing.T) {
	step := NewStepRecord(3, "web_search", nil)

	assert.Len(t, step.StepID, 8)
	assert.Equal(t, 3, step.StepNumber)
	assert.Equal(t, StepStatusSuccess, step.Status)
	assert.NotNil(t, step.ToolInput)
	assert.Nil(t, step.RelevanceScore)
	assert.Nil(t, step.SecurityScore)
}
