package eval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// OpenAIJudge talks to any OpenAI-compatible chat completion endpoint.
type OpenAIJudge struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIJudge creates a judge from resolved config.
func NewOpenAIJudge(cfg *JudgeConfig) (*OpenAIJudge, error) {
	resolved, err := ResolveJudgeConfig(cfg)
	if err != nil {
		return nil, err
	}
	if resolved.APIKey == "" {
		return nil, fmt.Errorf("judge API key is not set")
	}

	clientCfg := openai.DefaultConfig(resolved.APIKey)
	if resolved.BaseURL != "" {
		clientCfg.BaseURL = resolved.BaseURL
	}

	slog.Info("Initializing AI judge", "model", resolved.Model, "base_url", resolved.BaseURL)
	return &OpenAIJudge{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       resolved.Model,
		temperature: resolved.Temperature,
		maxTokens:   resolved.MaxTokens,
	}, nil
}

// Complete implements Judge.
func (j *OpenAIJudge) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: j.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: j.temperature,
	}
	if j.maxTokens > 0 {
		req.MaxCompletionTokens = j.maxTokens
	}

	resp, err := j.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("judge call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("judge returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
