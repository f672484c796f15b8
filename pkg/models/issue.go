package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QualityIssue is a single quality or security finding attached to a session
type QualityIssue struct {
	IssueID        string    `json:"issue_id"`
	Timestamp      string    `json:"timestamp"`
	IssueType      IssueType `json:"issue_type"`
	Severity       int       `json:"severity"` // 1 (cosmetic) to 10 (critical)
	Description    string    `json:"description"`
	AffectedSteps  []string  `json:"affected_steps"`
	Recommendation string    `json:"recommendation"`
	AutoResolved   bool      `json:"auto_resolved"`
}

// NewQualityIssue creates an issue with a generated time-prefixed ID.
func NewQualityIssue(issueType IssueType, severity int, description string) *QualityIssue {
	return &QualityIssue{
		IssueID:       fmt.Sprintf("QI-%s-%s", time.Now().Format("20060102150405"), uuid.New().String()[:4]),
		Timestamp:     NowISO(),
		IssueType:     issueType,
		Severity:      severity,
		Description:   description,
		AffectedSteps: []string{},
	}
}
