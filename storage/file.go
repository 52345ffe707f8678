// Package storage provides a single-file JSON conversation store.
//
// Information Hiding:
// - File format and atomic replacement hidden
// - One history per file; the session ID only labels it

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/richinex/coda/llm"
)

// historyFile is the on-disk layout: {"turns":[{"role":"user","text":"..."}]}.
type historyFile struct {
	Turns []historyTurn `json:"turns"`
}

type historyTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// FileStorage keeps one conversation in a JSON file, overwritten wholesale
// on every Save. It is safe for concurrent use within one process only.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

// NewFileStorage creates a store backed by path. The file is created on first Save.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Path returns the backing file path.
func (f *FileStorage) Path() string {
	return f.path
}

// Save writes history, replacing the previous file atomically.
func (f *FileStorage) Save(ctx context.Context, sessionID string, history []llm.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc := historyFile{Turns: make([]historyTurn, 0, len(history))}
	for _, msg := range history {
		doc.Turns = append(doc.Turns, historyTurn{Role: msg.Role, Text: msg.Content})
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp history file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	return nil
}

// Load reads the whole history. A missing file yields an empty history.
func (f *FileStorage) Load(ctx context.Context, sessionID string) ([]llm.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return []llm.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var doc historyFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse history file %s: %w", f.path, err)
	}

	history := make([]llm.ChatMessage, 0, len(doc.Turns))
	for _, turn := range doc.Turns {
		if turn.Role != llm.RoleUser && turn.Role != llm.RoleAssistant {
			return nil, fmt.Errorf("history file %s: unknown role %q", f.path, turn.Role)
		}
		history = append(history, llm.ChatMessage{Role: turn.Role, Content: turn.Text})
	}
	return history, nil
}

// Delete removes the file.
func (f *FileStorage) Delete(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete history file: %w", err)
	}
	return nil
}

// ListSessions returns DefaultSessionID when the file exists.
func (f *FileStorage) ListSessions(ctx context.Context) ([]string, error) {
	ok, err := f.Exists(ctx, DefaultSessionID)
	if err != nil || !ok {
		return []string{}, err
	}
	return []string{DefaultSessionID}, nil
}

// Exists reports whether the file exists.
func (f *FileStorage) Exists(ctx context.Context, sessionID string) (bool, error) {
	_, err := os.Stat(f.path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat history file: %w", err)
	}
}

var _ ConversationStorage = (*FileStorage)(nil)
