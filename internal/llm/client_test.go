package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"lecture-pipeline/internal/config"
)

// TestNewSelectsProvider verifies factory dispatch and key validation.
func TestNewSelectsProvider(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{"anthropic with key", config.Config{Provider: config.ProviderAnthropic, AnthropicKey: "k", AnthropicModel: "m"}, false},
		{"anthropic missing key", config.Config{Provider: config.ProviderAnthropic}, true},
		{"openai with key", config.Config{Provider: config.ProviderOpenAI, OpenAIKey: "k", OpenAIModel: "m"}, false},
		{"openai missing key", config.Config{Provider: config.ProviderOpenAI}, true},
		{"unknown", config.Config{Provider: "bard"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := New(&tc.cfg)
			if (err != nil) != tc.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && client == nil {
				t.Fatal("New() returned nil client")
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// TestIsTransient verifies the retryable-failure classification.
func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", &openai.APIError{HTTPStatusCode: 429}, true},
		{"server error", &openai.APIError{HTTPStatusCode: 503}, true},
		{"bad request", &openai.APIError{HTTPStatusCode: 400}, false},
		{"auth failure", &openai.APIError{HTTPStatusCode: 401}, false},
		{"http 500", &HTTPError{StatusCode: 500}, true},
		{"http 404", &HTTPError{StatusCode: 404}, false},
		{"network timeout", timeoutErr{}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

// TestAnthropicClientCall verifies request shape and text extraction.
func TestAnthropicClientCall(t *testing.T) {
	var gotPath, gotKey, gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"corrected text"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("secret", "claude-sonnet-4-5")
	c.url = srv.URL + "/v1/messages"
	c.httpClient = &http.Client{Timeout: 5 * time.Second}

	got, err := c.Call(context.Background(), Request{System: "sys", User: "user", MaxTokens: 4096, Temperature: 0.2})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != "corrected text" {
		t.Fatalf("text = %q", got)
	}
	if gotPath != "/v1/messages" || gotKey != "secret" || gotVersion == "" {
		t.Fatalf("request: path=%q key=%q version=%q", gotPath, gotKey, gotVersion)
	}
}

// TestAnthropicClientCallServerError verifies a retryable HTTPError surfaces.
func TestAnthropicClientCallServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewAnthropicClient("secret", "claude-sonnet-4-5")
	c.url = srv.URL

	_, err := c.Call(context.Background(), Request{User: "hello"})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", httpErr.StatusCode)
	}
	if !IsTransient(err) {
		t.Fatal("503 should classify as transient")
	}
}

// TestPromptsEmbedded verifies both pass prompts ship non-empty.
func TestPromptsEmbedded(t *testing.T) {
	if CleanupPrompt == "" || StructurePrompt == "" {
		t.Fatal("embedded prompts must not be empty")
	}
}
