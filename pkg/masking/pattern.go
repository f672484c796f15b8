package masking

import (
	"log/slog"
	"regexp"
)

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// builtinPatterns cover secrets that commonly leak through tool results:
// cloud keys, bearer tokens, PEM blocks, and connection strings.
var builtinPatterns = []struct {
	name        string
	pattern     string
	replacement string
	description string
}{
	{
		name:        "aws_access_key",
		pattern:     `\b(AKIA|ASIA)[0-9A-Z]{16}\b`,
		replacement: "***AWS_ACCESS_KEY***",
		description: "AWS access key ID",
	},
	{
		name:        "bearer_token",
		pattern:     `(?i)\bbearer\s+[A-Za-z0-9\-._~+/]{16,}=*`,
		replacement: "Bearer " + Redacted,
		description: "HTTP bearer token",
	},
	{
		name:        "basic_auth_url",
		pattern:     `(?i)\b([a-z][a-z0-9+.-]*://)[^/\s:@]+:[^/\s:@]+@`,
		replacement: "${1}" + Redacted + "@",
		description: "Credentials embedded in a URL",
	},
	{
		name:        "private_key_block",
		pattern:     `-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`,
		replacement: "***PRIVATE_KEY***",
		description: "PEM private key block",
	},
	{
		name:        "openai_api_key",
		pattern:     `\bsk-[A-Za-z0-9_-]{20,}\b`,
		replacement: "***API_KEY***",
		description: "OpenAI-style secret key",
	},
	{
		name:        "github_token",
		pattern:     `\bgh[pousr]_[A-Za-z0-9]{36,}\b`,
		replacement: "***GITHUB_TOKEN***",
		description: "GitHub personal access token",
	},
	{
		name:        "slack_token",
		pattern:     `\bxox[baprs]-[A-Za-z0-9-]{10,}\b`,
		replacement: "***SLACK_TOKEN***",
		description: "Slack API token",
	},
}

// compileBuiltinPatterns compiles the built-in patterns. Invalid patterns
// are logged and skipped.
func compileBuiltinPatterns() []*CompiledPattern {
	compiled := make([]*CompiledPattern, 0, len(builtinPatterns))
	for _, p := range builtinPatterns {
		re, err := regexp.Compile(p.pattern)
		if err != nil {
			slog.Error("Failed to compile built-in masking pattern, skipping",
				"pattern", p.name, "error", err)
			continue
		}
		compiled = append(compiled, &CompiledPattern{
			Name:        p.name,
			Regex:       re,
			Replacement: p.replacement,
			Description: p.description,
		})
	}
	return compiled
}
