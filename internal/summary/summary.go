// Package summary rewrites scraped article text into a short channel-ready
// summary using a language model.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	TypeNone   = "none"
	TypeOllama = "ollama"
	TypeOpenAI = "openai"
)

// DefaultPrompt is used when no prompt is configured.
const DefaultPrompt = "You write summaries for an anime news channel. " +
	"Summarize the text in at most three sentences, in plain text without markdown. " +
	"Keep titles, dates and studio names exactly as written."

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type Options struct {
	Type    string
	BaseURL string
	Key     string
	Prompt  string
	Model   string
	Timeout time.Duration
}

// New returns the summarizer selected by opts.Type, or nil for TypeNone.
func New(opts Options) (Summarizer, error) {
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}

	switch opts.Type {
	case "", TypeNone:
		return nil, nil
	case TypeOpenAI:
		if opts.Key == "" {
			return nil, fmt.Errorf("ai_key is required when ai_type is %q", TypeOpenAI)
		}
		return NewOpenAISummarizer(opts.BaseURL, opts.Key, opts.Prompt, opts.Model, opts.Timeout), nil
	case TypeOllama:
		if opts.BaseURL == "" {
			return nil, fmt.Errorf("ai_base_url is required when ai_type is %q", TypeOllama)
		}
		s, err := NewOllamaSummarizer(opts.BaseURL, opts.Prompt, opts.Model, opts.Timeout)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown ai_type %q", opts.Type)
	}
}

// clean trims a model reply and drops a leading "Summary:" label some models
// add despite the prompt.
func clean(reply string) string {
	reply = strings.TrimSpace(reply)
	if len(reply) >= len("summary:") && strings.EqualFold(reply[:len("summary:")], "summary:") {
		reply = strings.TrimSpace(reply[len("summary:"):])
	}
	return reply
}
