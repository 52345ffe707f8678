package llm

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned by MockProvider when no replies remain.
var ErrScriptExhausted = errors.New("mock provider: no scripted replies left")

// MockProvider replays scripted replies in order and records every request.
type MockProvider struct {
	mu       sync.Mutex
	replies  []string
	errs     map[int]error
	requests [][]ChatMessage
}

// NewMockProvider creates a provider that answers with replies in order.
func NewMockProvider(replies ...string) *MockProvider {
	return &MockProvider{replies: replies, errs: make(map[int]error)}
}

// FailAt makes the call with the given zero-based index return err.
func (m *MockProvider) FailAt(call int, err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[call] = err
	return m
}

// Name returns the provider name.
func (m *MockProvider) Name() string { return "mock" }

// Model returns the mock model name.
func (m *MockProvider) Model() string { return "mock-model" }

// Chat returns the next scripted reply.
func (m *MockProvider) Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := len(m.requests)
	m.requests = append(m.requests, append([]ChatMessage(nil), messages...))

	if err := ctx.Err(); err != nil {
		return LLMResponse{}, err
	}
	if err, ok := m.errs[call]; ok {
		return LLMResponse{}, err
	}
	if len(m.replies) == 0 {
		return LLMResponse{}, ErrScriptExhausted
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return LLMResponse{Content: reply}, nil
}

// Requests returns a copy of every request received so far.
func (m *MockProvider) Requests() [][]ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]ChatMessage, len(m.requests))
	copy(out, m.requests)
	return out
}

// Verify MockProvider implements Provider
var _ Provider = (*MockProvider)(nil)
