// Package eval scores agent sessions and individual steps with an LLM
// judge. The heuristic fallbacks live with the monitor hook; everything
// here assumes a reachable model and reports failure explicitly so the
// caller can fall back.
package eval

import (
	"context"
	"fmt"
	"os"

	"dario.cat/mergo"
)

// Judge is the LLM boundary. Implementations send one system+user exchange
// and return the raw text reply.
type Judge interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// JudgeConfig configures the OpenAI-compatible judge client.
type JudgeConfig struct {
	// APIKey authenticates against the judge endpoint. Required.
	APIKey string
	// BaseURL overrides the API endpoint for OpenAI-compatible gateways
	// (Bedrock proxies, Ollama, vLLM). Empty uses the OpenAI default.
	BaseURL string
	// Model is the judged model ID.
	Model string
	// Temperature keeps scoring near-deterministic.
	Temperature float32
	// MaxTokens caps the reply length. Zero lets the endpoint decide.
	MaxTokens int
}

// DefaultJudgeConfig returns the built-in judge settings.
func DefaultJudgeConfig() *JudgeConfig {
	return &JudgeConfig{
		Model:       "gpt-4o-mini",
		Temperature: 0.1,
	}
}

// JudgeConfigFromEnv reads judge settings from ARGUS_JUDGE_API_KEY,
// ARGUS_JUDGE_BASE_URL and ARGUS_JUDGE_MODEL. Returns nil when no key is
// set, so callers can tell "judge configured" from "judge absent".
func JudgeConfigFromEnv() *JudgeConfig {
	key := os.Getenv("ARGUS_JUDGE_API_KEY")
	if key == "" {
		return nil
	}
	return &JudgeConfig{
		APIKey:  key,
		BaseURL: os.Getenv("ARGUS_JUDGE_BASE_URL"),
		Model:   os.Getenv("ARGUS_JUDGE_MODEL"),
	}
}

// ResolveJudgeConfig merges user-provided settings over the defaults.
// Zero values in user keep the default.
func ResolveJudgeConfig(user *JudgeConfig) (*JudgeConfig, error) {
	resolved := DefaultJudgeConfig()
	if user != nil {
		if err := mergo.Merge(resolved, user, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge judge config: %w", err)
		}
	}
	return resolved, nil
}
