package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	s, err := New(Options{Type: TypeNone})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = New(Options{})
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = New(Options{Type: TypeOpenAI})
	assert.ErrorContains(t, err, "ai_key")

	_, err = New(Options{Type: TypeOllama})
	assert.ErrorContains(t, err, "ai_base_url")

	_, err = New(Options{Type: "gemini"})
	assert.Error(t, err)

	s, err = New(Options{Type: TypeOllama, BaseURL: "localhost:11434", Model: "llama3", Timeout: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &OllamaSummarizer{}, s)
}

func TestParseOllamaURL(t *testing.T) {
	u, err := parseOllamaURL("localhost:11434")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434/", u.String())

	u, err = parseOllamaURL("https://ollama.internal:8443")
	require.NoError(t, err)
	assert.Equal(t, "https://ollama.internal:8443", u.String())
}

func TestOpenAISummarizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "long article", req.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","model":"gpt-test","choices":[{"index":0,"message":{"role":"assistant","content":"  short summary \n"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	s := NewOpenAISummarizer(srv.URL, "key", DefaultPrompt, "gpt-test", 5*time.Second)

	got, err := s.Summarize(context.Background(), "long article")
	require.NoError(t, err)
	assert.Equal(t, "short summary", got)
}

func TestOpenAISummarizer_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","choices":[]}`)
	}))
	defer srv.Close()

	s := NewOpenAISummarizer(srv.URL, "key", DefaultPrompt, "gpt-test", 5*time.Second)

	_, err := s.Summarize(context.Background(), "text")
	assert.ErrorContains(t, err, "empty response")
}

func TestOpenAISummarizer_Replies(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    string
		wantErr string
	}{
		{name: "label", reply: `{"index":0,"message":{"role":"assistant","content":"Summary: Dandadan returns in July."},"finish_reason":"stop"}`, want: "Dandadan returns in July."},
		{name: "cut", reply: `{"index":0,"message":{"role":"assistant","content":"Dandadan returns"},"finish_reason":"length"}`, want: "Dandadan returns"},
		{name: "blank", reply: `{"index":0,"message":{"role":"assistant","content":" \n "},"finish_reason":"stop"}`, wantErr: "openai gpt-test: empty response"},
		{name: "filtered", reply: `{"index":0,"message":{"role":"assistant","content":""},"finish_reason":"content_filter"}`, wantErr: "content filter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprintf(w, `{"id":"1","object":"chat.completion","choices":[%s]}`, tt.reply)
			}))
			defer srv.Close()

			s := NewOpenAISummarizer(srv.URL, "key", DefaultPrompt, "gpt-test", 5*time.Second)

			got, err := s.Summarize(context.Background(), "text")
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenAISummarizer_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"model overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewOpenAISummarizer(srv.URL, "key", DefaultPrompt, "gpt-test", 5*time.Second)

	_, err := s.Summarize(context.Background(), "text")
	assert.ErrorContains(t, err, "openai gpt-test: chat completion")
}

func TestNewOpenAISummarizer_DefaultModel(t *testing.T) {
	s := NewOpenAISummarizer("", "key", DefaultPrompt, "", time.Second)
	assert.Equal(t, "gpt-4o-mini", s.model)
}

func TestClean(t *testing.T) {
	assert.Equal(t, "Short.", clean("  Short.\n"))
	assert.Equal(t, "Short.", clean("SUMMARY: Short."))
	assert.Equal(t, "Summaries of the week.", clean("Summaries of the week."))
	assert.Empty(t, clean("summary:"))
}

func TestOllamaSummarizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"model":"llama3","response":"Short ","done":false}`)
		fmt.Fprintln(w, `{"model":"llama3","response":"summary.","done":true}`)
	}))
	defer srv.Close()

	s, err := NewOllamaSummarizer(srv.URL, DefaultPrompt, "llama3", 5*time.Second)
	require.NoError(t, err)

	got, err := s.Summarize(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "Short summary.", got)
}
