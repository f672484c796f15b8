// Package masking redacts credentials from tool inputs and results before
// they are persisted, broadcast, or sent to the AI judge.
package masking

import (
	"log/slog"
	"strings"
)

// Redacted replaces values whose key marks them as sensitive.
const Redacted = "***REDACTED***"

// sensitiveKeys are argument names whose values are always redacted,
// matched case-insensitively on the exact key.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"passwd":        {},
	"secret":        {},
	"api_key":       {},
	"apikey":        {},
	"token":         {},
	"access_token":  {},
	"refresh_token": {},
	"id_token":      {},
	"private_key":   {},
	"access_key":    {},
	"auth_key":      {},
	"authorization": {},
	"credential":    {},
	"credentials":   {},
	"client_secret": {},
}

// Service applies credential redaction to structured tool arguments and
// regex-based masking to free-form result text. Created once at startup;
// thread-safe and stateless aside from compiled patterns.
type Service struct {
	patterns []*CompiledPattern
}

// NewService creates a masking service with all built-in patterns compiled
// eagerly. Invalid patterns are logged and skipped.
func NewService() *Service {
	s := &Service{
		patterns: compileBuiltinPatterns(),
	}

	slog.Info("Masking service initialized",
		"sensitive_keys", len(sensitiveKeys),
		"compiled_patterns", len(s.patterns))

	return s
}

// SensitiveKey reports whether an argument name marks its value as a secret.
func (s *Service) SensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// RedactArgs returns a copy of tool arguments with sensitive values replaced
// at any nesting depth. The input map is never mutated; monitored agents
// still need their real credentials to run.
func (s *Service) RedactArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if s.SensitiveKey(k) {
			out[k] = Redacted
			continue
		}
		out[k] = s.redactValue(v)
	}
	return out
}

func (s *Service) redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return s.RedactArgs(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = s.redactValue(item)
		}
		return out
	default:
		return v
	}
}

// MaskText applies the compiled secret patterns to free-form text such as
// tool results. Keys embedded in prose or JSON blobs get replaced even when
// no argument name gives them away.
func (s *Service) MaskText(text string) string {
	if text == "" {
		return text
	}
	masked := text
	for _, p := range s.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}
