// Package llm provides the text-generation capability used by the clean and
// structure passes: given a system instruction and input text, return output
// text. Providers are selected by configuration at startup.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sashabaranov/go-openai"

	"lecture-pipeline/internal/config"
)

// Client sends one prompt to a language model and returns the text response.
type Client interface {
	Call(ctx context.Context, req Request) (string, error)
}

// Request carries one model invocation.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// New returns the client for the configured provider.
func New(cfg *config.Config) (Client, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		if cfg.AnthropicKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is not set")
		}
		return NewAnthropicClient(cfg.AnthropicKey, cfg.AnthropicModel), nil
	case config.ProviderOpenAI:
		if cfg.OpenAIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is not set")
		}
		return NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}

// IsTransient reports whether an external-call failure is worth retrying:
// connectivity errors, timeouts, rate limits, and server-side 5xx responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.HTTPStatusCode)
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return transientStatus(httpErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}

// transientStatus classifies HTTP status codes worth retrying.
func transientStatus(code int) bool {
	switch {
	case code == 408, code == 429:
		return true
	case code >= 500 && code <= 599:
		return true
	default:
		return false
	}
}

// HTTPError is a non-2xx response from a provider spoken to over raw HTTP.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error formats the status and a body excerpt.
func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("llm http %d: %s", e.StatusCode, body)
}
