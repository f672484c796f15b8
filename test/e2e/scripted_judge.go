package e2e

import (
	"context"
	"fmt"
	"sync"
)

// JudgeScriptEntry defines a single scripted judge reply.
type JudgeScriptEntry struct {
	Reply string // Raw text returned to the evaluator
	Error error  // Return error from Complete()
}

// JudgeCall captures one Complete() invocation for assertions.
type JudgeCall struct {
	SystemPrompt string
	UserPrompt   string
}

// ScriptedJudge implements eval.Judge with canned replies consumed in
// order. The hook drains step evaluations sequentially and then runs the
// session evaluation, so a script is N step replies followed by one
// session reply.
type ScriptedJudge struct {
	mu      sync.Mutex
	entries []JudgeScriptEntry
	index   int
	calls   []JudgeCall
}

// NewScriptedJudge creates an empty scripted judge.
func NewScriptedJudge() *ScriptedJudge {
	return &ScriptedJudge{}
}

// Add appends a reply consumed in call order.
func (j *ScriptedJudge) Add(entry JudgeScriptEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

// AddReply appends a plain text reply.
func (j *ScriptedJudge) AddReply(reply string) {
	j.Add(JudgeScriptEntry{Reply: reply})
}

// Complete implements eval.Judge.
func (j *ScriptedJudge) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.calls = append(j.calls, JudgeCall{SystemPrompt: systemPrompt, UserPrompt: userPrompt})

	if j.index >= len(j.entries) {
		return "", fmt.Errorf("ScriptedJudge: no more entries (%d consumed)", j.index)
	}
	entry := j.entries[j.index]
	j.index++

	if entry.Error != nil {
		return "", entry.Error
	}
	return entry.Reply, nil
}

// CallCount returns the total number of Complete() calls made.
func (j *ScriptedJudge) CallCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.calls)
}

// Calls returns a snapshot of all captured invocations.
func (j *ScriptedJudge) Calls() []JudgeCall {
	j.mu.Lock()
	defer j.mu.Unlock()
	result := make([]JudgeCall, len(j.calls))
	copy(result, j.calls)
	return result
}
