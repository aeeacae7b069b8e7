// Package llm provides language-model client interfaces and implementations.
package llm

import (
	"context"
	"errors"
	"strings"
)

// Typed generation failures. The composer never surfaces these to the end
// user; they degrade to canned fallbacks.
var (
	ErrTimeout       = errors.New("llm request timed out")
	ErrRateLimited   = errors.New("llm rate limited")
	ErrContentPolicy = errors.New("llm content policy rejection")
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for the LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	default:
		return NewAnthropicClient(apiKey)
	}
}

// splitSystem separates system-role messages from the conversational ones.
// Providers whose APIs carry the system prompt out of band use it to keep
// only user/assistant roles in the message list.
func splitSystem(msgs []ChatMessage) (system []string, chat []ChatMessage) {
	for _, m := range msgs {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		chat = append(chat, m)
	}
	return system, chat
}

// classifyErr maps raw backend errors onto the typed failure set, keeping
// the original error wrapped for logs.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return errors.Join(ErrTimeout, err)
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return errors.Join(ErrRateLimited, err)
	case strings.Contains(msg, "content policy") || strings.Contains(msg, "content_policy"):
		return errors.Join(ErrContentPolicy, err)
	}
	return err
}
