package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/logger"
)

// Completion is one chat request sent to a Backend.
type Completion struct {
	System    string
	User      string
	MaxTokens int
	JSON      bool
}

// Backend produces a chat reply. Any error makes the advisor fall back to
// its static pools.
type Backend interface {
	Complete(ctx context.Context, c Completion) (string, error)
}

// OpenAIBackend talks to any OpenAI-compatible chat completions endpoint.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

func NewOpenAIBackend(apiKey, baseURL, model string) *OpenAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = constants.DefaultAdvisorModel
	}
	logger.Debug("Initializing advisor backend", "base_url", cfg.BaseURL, "model", model)
	return &OpenAIBackend{client: openai.NewClientWithConfig(cfg), model: model}
}

func (b *OpenAIBackend) Complete(ctx context.Context, c Completion) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.System},
			{Role: openai.ChatMessageRoleUser, Content: c.User},
		},
		MaxTokens:   c.MaxTokens,
		Temperature: constants.AdvisorTemperature,
	}
	if c.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("advisor API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("advisor returned no choices")
	}
	logger.Debug("Received advisor reply", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
