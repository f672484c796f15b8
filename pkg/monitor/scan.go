package monitor

import (
	"fmt"
	"strings"

	"github.com/arguslabs/argus/pkg/models"
)

// promptGroup is one family of suspicious system-prompt instructions.
// A match in any group counts one hit; two or more hit groups escalate
// from SUSPICIOUS_BEHAVIOR to PROMPT_INJECTION.
type promptGroup struct {
	name     string
	patterns []string
}

var promptGroups = []promptGroup{
	{"sensitive_file_access", []string{
		"/etc/passwd", "/etc/shadow", "/etc/hosts", "/proc/",
		"~/.ssh", "id_rsa", ".bash_history", ".env",
		"c:\\windows\\system32", "c:/windows/system32",
	}},
	{"recon_commands", []string{
		"shell command: env", "run the shell", "run shell",
		"execute: env", "cmd: env",
		"whoami", "run id", "ps aux", "netstat", "ifconfig", "ipconfig",
		"uname -a", "cat /etc", "ls /etc",
	}},
	{"data_exfiltration", []string{
		"post the collected", "post collected", "send the data",
		"send collected", "upload to", "exfiltrate",
		"httpbin.org/post", "webhook.site", "requestbin",
		"ngrok.io", "burpcollaborator",
	}},
	{"covert_instructions", []string{
		"before doing any task", "before every task", "always collect",
		"first collect", "always read", "before answering",
		"without telling the user", "do not mention this",
		"never reveal", "keep this secret", "hidden instruction",
	}},
}

// scanSystemPrompt checks an agent system prompt against the pattern
// groups. Returns nil when nothing matched.
func scanSystemPrompt(systemPrompt string) *models.QualityIssue {
	promptLower := strings.ToLower(systemPrompt)

	var matchedGroups []string
	var matchedSamples []string
	for _, group := range promptGroups {
		for _, pat := range group.patterns {
			if strings.Contains(promptLower, pat) {
				matchedGroups = append(matchedGroups, group.name)
				matchedSamples = append(matchedSamples, pat)
				break // one match per group is enough
			}
		}
	}
	if len(matchedGroups) == 0 {
		return nil
	}

	hits := len(matchedGroups)
	severity := 7
	issueType := models.IssueSuspiciousBehavior
	if hits >= 2 {
		severity = 9
		issueType = models.IssuePromptInjection
	}

	plural := ""
	if hits > 1 {
		plural = "s"
	}
	issue := models.NewQualityIssue(issueType, severity, fmt.Sprintf(
		"Malicious instructions detected in agent system prompt "+
			"(%d suspicious category%s matched: %s). Matched patterns: %s.",
		hits, plural, strings.Join(matchedGroups, ", "), quoteList(matchedSamples)))
	issue.Recommendation = "Review the agent's system prompt. " +
		"It may contain instructions to access sensitive files, " +
		"collect environment variables, or exfiltrate data to external URLs."
	return issue
}

// quoteList renders a string slice as ['a', 'b'] for issue descriptions.
func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + s + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// configErrorPatterns maps tool-result substrings to operator hints.
// These catch tools that report missing credentials or configuration in
// their result text while the framework still treats the call as a success.
var configErrorPatterns = []struct {
	pattern string
	hint    string
}{
	// Knowledge base
	{"no knowledge base id", "KNOWLEDGE_BASE_ID environment variable is not set"},
	{"no kb id", "KNOWLEDGE_BASE_ID environment variable is not set"},
	{"knowledge base id not provided", "KNOWLEDGE_BASE_ID environment variable is not set"},
	// Generic missing config
	{"api key not found", "API key is missing — check the relevant environment variable"},
	{"credentials not configured", "AWS/service credentials are not configured"},
	{"missing environment variable", "A required environment variable is not set"},
	// Exchange API authentication errors
	{"authenticationerror", "Exchange API authentication failed — API key may be invalid or expired"},
	{"api key expired", "API key has expired — renew it in the exchange dashboard"},
	{"retcode: 33004", "Bybit API key authorization error (33004) — key is not authorized"},
	{"invalid api-key", "Invalid API key — verify the key is correct"},
	{"authentication failed", "Exchange authentication failed — check your API key and secret"},
	{"invalid credentials", "Invalid exchange credentials"},
}

// scanConfigError finds the first missing-config marker in a tool result.
func scanConfigError(fullResult string) (pattern, hint string, ok bool) {
	resultLower := strings.ToLower(fullResult)
	for _, entry := range configErrorPatterns {
		if strings.Contains(resultLower, entry.pattern) {
			return entry.pattern, entry.hint, true
		}
	}
	return "", "", false
}

// classifySecurityReasoning buckets a low security score by the judge's
// own wording.
func classifySecurityReasoning(reasoning string) models.IssueType {
	lower := strings.ToLower(reasoning)
	switch {
	case strings.Contains(lower, "exfiltration") || strings.Contains(lower, "external"):
		return models.IssueDataExfiltration
	case strings.Contains(lower, "injection"):
		return models.IssuePromptInjection
	case strings.Contains(lower, "credential") || strings.Contains(lower, "password"):
		return models.IssueCredentialLeak
	case strings.Contains(lower, "ssl") || strings.Contains(lower, "verify") || strings.Contains(lower, "certificate"):
		return models.IssueSecurityBypass
	default:
		return models.IssueSuspiciousBehavior
	}
}

// classifyShadowIssue buckets a shadow verification security finding.
func classifyShadowIssue(finding string) models.IssueType {
	lower := strings.ToLower(finding)
	switch {
	case strings.Contains(lower, "injection"):
		return models.IssuePromptInjection
	case strings.Contains(lower, "phishing") || strings.Contains(lower, "redirect"):
		return models.IssueSuspiciousBehavior
	case strings.Contains(lower, "csrf"):
		return models.IssueSecurityBypass
	default:
		return models.IssueSuspiciousBehavior
	}
}
