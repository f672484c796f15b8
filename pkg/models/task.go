package models

import (
	"fmt"

	"github.com/google/uuid"
)

// TaskDefinition describes what the monitored agent is supposed to accomplish
type TaskDefinition struct {
	TaskID          string         `json:"task_id"`
	Description     string         `json:"description"`
	ExpectedTools   []string       `json:"expected_tools"`
	MaxSteps        int            `json:"max_steps"`
	SuccessCriteria string         `json:"success_criteria"`
	Metadata        map[string]any `json:"metadata"`
}

// NewTaskDefinition creates a task with a generated ID and default step budget.
func NewTaskDefinition(description string) *TaskDefinition {
	return &TaskDefinition{
		TaskID:      uuid.New().String()[:8],
		Description: description,
		MaxSteps:    20,
		Metadata:    map[string]any{},
	}
}

// TaskString coerces the loosely typed task field of a stored session to a
// display string. Tasks arrive as plain strings from hook clients and as
// TaskDefinition objects from finalized reports.
func TaskString(task any) string {
	switch t := task.(type) {
	case nil:
		return ""
	case string:
		return t
	case *TaskDefinition:
		if t == nil {
			return ""
		}
		return t.Description
	case TaskDefinition:
		return t.Description
	case map[string]any:
		if d, ok := t["description"].(string); ok {
			return d
		}
		return ""
	default:
		return fmt.Sprint(t)
	}
}
