package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// summaryMaxTokens keeps a reply well inside a photo caption.
const summaryMaxTokens = 256

var ErrFiltered = errors.New("summary withheld by content filter")

type OpenAISummarizer struct {
	client  *openai.Client
	prompt  string
	model   string
	timeout time.Duration
}

// NewOpenAISummarizer creates a summarizer backed by any OpenAI-compatible API.
// Set baseURL to a non-empty string to point at a local server (LM Studio,
// llama.cpp, Ollama's /v1 endpoint, etc.); leave empty for api.openai.com.
func NewOpenAISummarizer(baseURL, apiKey, prompt, model string, timeout time.Duration) *OpenAISummarizer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAISummarizer{
		client:  openai.NewClientWithConfig(cfg),
		prompt:  prompt,
		model:   model,
		timeout: timeout,
	}
}

func (o *OpenAISummarizer) Summarize(ctx context.Context, article string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		MaxTokens:   summaryMaxTokens,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.prompt},
			{Role: openai.ChatMessageRoleUser, Content: article},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai %s: chat completion: %w", o.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai %s: empty response", o.model)
	}

	choice := resp.Choices[0]
	switch choice.FinishReason {
	case openai.FinishReasonContentFilter:
		return "", fmt.Errorf("openai %s: %w", o.model, ErrFiltered)
	case openai.FinishReasonLength:
		slog.Warn("summary cut at token limit", "model", o.model, "max_tokens", summaryMaxTokens)
	}

	summary := clean(choice.Message.Content)
	if summary == "" {
		return "", fmt.Errorf("openai %s: empty response", o.model)
	}
	return summary, nil
}
