package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arguslabs/argus/pkg/models"
)

// stepLine is one journal entry: the step record tagged with its session.
// Sessions share day files, so every line carries its own session ID.
type stepLine struct {
	SessionID string `json:"session_id"`
	*models.StepRecord
}

// issueDoc mirrors stepLine for persisted quality issues.
type issueDoc struct {
	SessionID string `json:"session_id"`
	*models.QualityIssue
}

// AppendStep appends one step record to the per-day JSONL journal. The day
// is taken from the record's own timestamp so late writes land in the file
// of the day they happened.
func (s *FileStore) AppendStep(sessionID string, record *models.StepRecord) error {
	day := time.Now()
	if ts, err := models.ParseTime(record.Timestamp); err == nil {
		day = ts
	}
	path := filepath.Join(s.stepsDir, day.Format("20060102")+".jsonl")

	line, err := json.Marshal(stepLine{SessionID: sessionID, StepRecord: record})
	if err != nil {
		return fmt.Errorf("failed to encode step: %w", err)
	}

	s.journalMu.Lock()
	defer s.journalMu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open step journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append step: %w", err)
	}
	return nil
}

// WriteIssue writes one quality issue to its own file under issues/.
func (s *FileStore) WriteIssue(sessionID string, issue *models.QualityIssue) error {
	s.issueMu.Lock()
	defer s.issueMu.Unlock()
	path := filepath.Join(s.issuesDir, issue.IssueID+".json")
	return writeJSONAtomic(path, issueDoc{SessionID: sessionID, QualityIssue: issue})
}
