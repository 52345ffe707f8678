// Package session drives one conversation: it relays user input to the model,
// dispatches the actions in each reply and records the history.
//
// Information Hiding:
// - Turn state machine and history coalescing hidden
// - Pending context from GETTING_INFO carried between turns internally
// - Persistence after every turn hidden behind ConversationStorage
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/richinex/coda/action"
	"github.com/richinex/coda/dispatch"
	"github.com/richinex/coda/llm"
	"github.com/richinex/coda/storage"
)

// ErrModelCall wraps every failure of the model collaborator.
var ErrModelCall = errors.New("model call failed")

// DefaultModelTimeout bounds one model call.
const DefaultModelTimeout = 120 * time.Second

// State is the position of a conversation in its turn cycle.
type State int

const (
	Idle State = iota
	AwaitingModelReply
	DispatchingActions
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingModelReply:
		return "awaiting_model_reply"
	case DispatchingActions:
		return "dispatching_actions"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Executor runs parsed actions.
type Executor interface {
	ExecuteAll(ctx context.Context, actions []action.Action) dispatch.Results
}

// Conversation holds the history of one session. It is safe for concurrent
// use, but turns are serialised.
type Conversation struct {
	provider     llm.Provider
	executor     Executor
	store        storage.ConversationStorage
	parser       action.Parser
	sessionID    string
	systemPrompt string
	timeout      time.Duration
	logger       *zap.Logger

	mu      sync.Mutex
	state   State
	history []llm.ChatMessage
	pending string
}

// New creates a conversation using the tag grammar and the default session.
func New(provider llm.Provider, executor Executor, store storage.ConversationStorage) *Conversation {
	return &Conversation{
		provider:     provider,
		executor:     executor,
		store:        store,
		parser:       action.ParseDetailed,
		sessionID:    storage.DefaultSessionID,
		systemPrompt: SystemPrompt("tags", nil),
		timeout:      DefaultModelTimeout,
		logger:       zap.NewNop(),
	}
}

// WithParser sets the reply grammar.
func (c *Conversation) WithParser(p action.Parser) *Conversation {
	if p != nil {
		c.parser = p
	}
	return c
}

// WithSessionID sets the storage key.
func (c *Conversation) WithSessionID(id string) *Conversation {
	if id != "" {
		c.sessionID = id
	}
	return c
}

// WithSystemPrompt sets the system prompt.
func (c *Conversation) WithSystemPrompt(prompt string) *Conversation {
	c.systemPrompt = prompt
	return c
}

// WithTimeout sets the per-call model timeout.
func (c *Conversation) WithTimeout(d time.Duration) *Conversation {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// WithLogger sets the logger.
func (c *Conversation) WithLogger(l *zap.Logger) *Conversation {
	if l != nil {
		c.logger = l
	}
	return c
}

// SessionID returns the storage key.
func (c *Conversation) SessionID() string {
	return c.sessionID
}

// Load replaces the in-memory history with the stored one.
func (c *Conversation) Load(ctx context.Context) error {
	history, err := c.store.Load(ctx, c.sessionID)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	c.mu.Lock()
	c.history = history
	c.mu.Unlock()
	c.logger.Debug("history loaded", zap.String("session", c.sessionID), zap.Int("turns", len(history)))
	return nil
}

// State returns the current state.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns a copy of the history.
func (c *Conversation) History() []llm.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.ChatMessage(nil), c.history...)
}

// Reset clears history and pending context and persists the empty history.
func (c *Conversation) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
	c.pending = ""
	c.state = Idle
	if err := c.store.Save(ctx, c.sessionID, []llm.ChatMessage{}); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Turn processes one user input. In commandOnly mode it returns the action
// output without asking the model to explain it and ends in Done. Otherwise
// the output is appended to the user turn, the model's second reply is
// returned and recorded, and the conversation is Idle again.
func (c *Conversation) Turn(ctx context.Context, input string, commandOnly bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = AwaitingModelReply
	c.appendUser(input)

	reply, err := c.call(ctx)
	if err != nil {
		c.persist(ctx)
		c.state = Idle
		return "", err
	}

	c.state = DispatchingActions
	parsed := c.parser(reply)
	if len(parsed.Skipped) > 0 {
		c.logger.Warn("ignored unknown action tags", zap.Strings("tags", parsed.Skipped))
	}
	results := c.executor.ExecuteAll(ctx, parsed.Actions)
	c.recordActions(ctx, parsed.Actions, results)
	output := results.Text()

	// Context gathered here reaches the model only through the next input.
	if commandOnly {
		c.pending = results.ContextText()
		c.persist(ctx)
		c.state = Done
		return output, nil
	}

	c.state = AwaitingModelReply
	last := len(c.history) - 1
	c.history[last].Content += "\n\nCommand output:\n" + output

	final, err := c.call(ctx)
	if err != nil {
		c.persist(ctx)
		c.state = Idle
		return "", err
	}

	c.history = append(c.history, llm.AssistantMessage(final))
	c.persist(ctx)
	c.state = Idle
	return final, nil
}

// appendUser adds input as a user turn, prefixed with pending context.
// An unanswered user turn absorbs the new input instead.
func (c *Conversation) appendUser(input string) {
	text := input
	if c.pending != "" {
		text = c.pending + "\n\n" + input
		c.pending = ""
	}

	if n := len(c.history); n > 0 && c.history[n-1].Role == llm.RoleUser {
		c.history[n-1].Content += "\n\n" + text
		return
	}
	c.history = append(c.history, llm.UserMessage(text))
}

func (c *Conversation) call(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]llm.ChatMessage, 0, len(c.history)+1)
	if c.systemPrompt != "" {
		messages = append(messages, llm.SystemMessage(c.systemPrompt))
	}
	messages = append(messages, c.history...)

	start := time.Now()
	resp, err := c.provider.Chat(ctx, messages)
	if err != nil {
		c.logger.Error("model call failed",
			zap.String("provider", c.provider.Name()),
			zap.String("model", c.provider.Model()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrModelCall, err)
	}

	fields := []zap.Field{
		zap.String("provider", c.provider.Name()),
		zap.String("model", c.provider.Model()),
		zap.Duration("elapsed", time.Since(start)),
	}
	if resp.Usage != nil {
		fields = append(fields,
			zap.Uint32("prompt_tokens", resp.Usage.PromptTokens),
			zap.Uint32("completion_tokens", resp.Usage.CompletionTokens))
	}
	c.logger.Info("model call", fields...)
	return resp.Content, nil
}

func (c *Conversation) persist(ctx context.Context) {
	if err := c.store.Save(ctx, c.sessionID, c.history); err != nil {
		c.logger.Warn("failed to persist history", zap.String("session", c.sessionID), zap.Error(err))
	}
}

func (c *Conversation) recordActions(ctx context.Context, actions []action.Action, results dispatch.Results) {
	log, ok := c.store.(storage.ActionLog)
	if !ok {
		return
	}
	for i, a := range actions {
		if a.Kind == action.KindNone || i >= len(results) {
			continue
		}
		input := a.Content
		if a.Kind == action.KindModify && a.Err == nil {
			input = a.FilePath
		}
		rec := storage.ActionRecord{
			SessionID: c.sessionID,
			Kind:      a.Kind.String(),
			Input:     input,
			Output:    results[i].Output,
			Succeeded: results[i].Succeeded(),
		}
		if err := log.RecordAction(ctx, rec); err != nil {
			c.logger.Warn("failed to record action", zap.Error(err))
		}
	}
}
