// Package llm provides LLM provider abstractions.
//
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific error handling

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
// The model is treated as an opaque oracle: ordered messages in, text out.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Chat sends a chat completion request. A leading system message,
	// if present, is passed as the provider's system prompt.
	Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error)
}
