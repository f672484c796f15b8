package models

// StepStatus defines the outcome classification of a single tool step
type StepStatus string

const (
	// StepStatusSuccess is a step that executed and returned a usable result
	StepStatusSuccess StepStatus = "SUCCESS"
	// StepStatusFailed is a step that raised an error or returned an error result
	StepStatusFailed StepStatus = "FAILED"
	// StepStatusIrrelevant is a step judged unrelated to the session task
	StepStatusIrrelevant StepStatus = "IRRELEVANT"
	// StepStatusRedundant is a repeated call with inputs already seen
	StepStatusRedundant StepStatus = "REDUNDANT"
	// StepStatusBlocked is a step cancelled by the monitor before execution
	StepStatusBlocked StepStatus = "BLOCKED"
)

// IsValid checks if the step status is valid
func (s StepStatus) IsValid() bool {
	switch s {
	case StepStatusSuccess,
		StepStatusFailed,
		StepStatusIrrelevant,
		StepStatusRedundant,
		StepStatusBlocked:
		return true
	default:
		return false
	}
}

// SessionQuality defines the overall grade assigned to a finished session
type SessionQuality string

const (
	// QualityExcellent indicates near-perfect task execution
	QualityExcellent SessionQuality = "EXCELLENT"
	// QualityGood indicates solid execution with minor inefficiencies
	QualityGood SessionQuality = "GOOD"
	// QualityPoor indicates significant waste or drift
	QualityPoor SessionQuality = "POOR"
	// QualityFailed indicates the task was not accomplished or a breach occurred
	QualityFailed SessionQuality = "FAILED"
	// QualityStuck indicates the agent looped without making progress
	QualityStuck SessionQuality = "STUCK"
	// QualityPending indicates evaluation has not completed yet
	QualityPending SessionQuality = "PENDING"
)

// IsValid checks if the session quality is valid
func (q SessionQuality) IsValid() bool {
	switch q {
	case QualityExcellent,
		QualityGood,
		QualityPoor,
		QualityFailed,
		QualityStuck,
		QualityPending:
		return true
	default:
		return false
	}
}

// IssueType defines categories of quality and security findings
type IssueType string

const (
	// IssueInfiniteLoop is repeated identical or near-identical tool calls
	IssueInfiniteLoop IssueType = "INFINITE_LOOP"
	// IssueTaskDrift is activity unrelated to the declared task
	IssueTaskDrift IssueType = "TASK_DRIFT"
	// IssueInefficiency is wasted steps or duplicate work
	IssueInefficiency IssueType = "INEFFICIENCY"
	// IssueIncomplete is a session that ended without finishing its task
	IssueIncomplete IssueType = "INCOMPLETE"
	// IssueToolMisuse is a tool invoked with unsafe or wrong arguments
	IssueToolMisuse IssueType = "TOOL_MISUSE"
	// IssueErrorHandling is repeated unhandled tool failures
	IssueErrorHandling IssueType = "ERROR_HANDLING"
	// IssueDataExfiltration is data being sent to an external destination
	IssueDataExfiltration IssueType = "DATA_EXFILTRATION"
	// IssuePromptInjection is injected instructions steering the agent
	IssuePromptInjection IssueType = "PROMPT_INJECTION"
	// IssueUnauthorizedAccess is access to resources outside the task scope
	IssueUnauthorizedAccess IssueType = "UNAUTHORIZED_ACCESS"
	// IssueSuspiciousBehavior is activity that warrants human review
	IssueSuspiciousBehavior IssueType = "SUSPICIOUS_BEHAVIOR"
	// IssueCredentialLeak is credentials appearing in tool arguments or results
	IssueCredentialLeak IssueType = "CREDENTIAL_LEAK"
	// IssueSecurityBypass is a disabled safety mechanism such as SSL verification
	IssueSecurityBypass IssueType = "SECURITY_BYPASS"
	// IssueMissingConfig is a failure caused by absent credentials or env vars
	IssueMissingConfig IssueType = "MISSING_CONFIG"
)

// IsValid checks if the issue type is valid
func (t IssueType) IsValid() bool {
	switch t {
	case IssueInfiniteLoop,
		IssueTaskDrift,
		IssueInefficiency,
		IssueIncomplete,
		IssueToolMisuse,
		IssueErrorHandling,
		IssueDataExfiltration,
		IssuePromptInjection,
		IssueUnauthorizedAccess,
		IssueSuspiciousBehavior,
		IssueCredentialLeak,
		IssueSecurityBypass,
		IssueMissingConfig:
		return true
	default:
		return false
	}
}

// GuardMode defines how the monitor reacts to detected problems
type GuardMode string

const (
	// GuardModeMonitor observes and records without interfering
	GuardModeMonitor GuardMode = "monitor"
	// GuardModeIntervene cancels tool calls when loops or step limits are hit
	GuardModeIntervene GuardMode = "intervene"
	// GuardModeEnforce reserves stricter enforcement (treated as intervene)
	GuardModeEnforce GuardMode = "enforce"
)

// IsValid checks if the guard mode is valid
func (m GuardMode) IsValid() bool {
	return m == GuardModeMonitor || m == GuardModeIntervene || m == GuardModeEnforce
}

// Intervene reports whether this mode permits cancelling tool calls.
func (m GuardMode) Intervene() bool {
	return m == GuardModeIntervene || m == GuardModeEnforce
}

// AgentSource defines where a registered agent came from
type AgentSource string

const (
	// AgentSourceGit is an agent imported from a git repository
	AgentSourceGit AgentSource = "git"
	// AgentSourceZip is an agent imported from an uploaded archive
	AgentSourceZip AgentSource = "zip"
	// AgentSourceHook is an agent that self-registered through the monitor hook
	AgentSourceHook AgentSource = "hook"
)

// IsValid checks if the agent source is valid
func (s AgentSource) IsValid() bool {
	return s == AgentSourceGit || s == AgentSourceZip || s == AgentSourceHook
}
