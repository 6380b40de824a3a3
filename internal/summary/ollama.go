package summary

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
)

type OllamaSummarizer struct {
	client  *api.Client
	prompt  string
	model   string
	timeout time.Duration
	mu      sync.Mutex
}

// NewOllamaSummarizer accepts either a bare host:port or a full base URL.
func NewOllamaSummarizer(baseURL, prompt, model string, timeout time.Duration) (*OllamaSummarizer, error) {
	u, err := parseOllamaURL(baseURL)
	if err != nil {
		return nil, err
	}

	return &OllamaSummarizer{
		client:  api.NewClient(u, &http.Client{}),
		prompt:  prompt,
		model:   model,
		timeout: timeout,
	}, nil
}

func parseOllamaURL(baseURL string) (*url.URL, error) {
	if !strings.Contains(baseURL, "://") {
		return &url.URL{Scheme: "http", Host: baseURL, Path: "/"}, nil
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url: %w", err)
	}
	return u, nil
}

// Summarize runs one generation at a time; a local model serves requests serially anyway.
func (o *OllamaSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	req := &api.GenerateRequest{
		Model:  o.model,
		System: o.prompt,
		Prompt: text,
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var responseFlow []string
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		responseFlow = append(responseFlow, resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama %s: generate: %w", o.model, err)
	}

	summary := clean(strings.Join(responseFlow, ""))
	if summary == "" {
		return "", fmt.Errorf("ollama %s: empty response", o.model)
	}
	return summary, nil
}
