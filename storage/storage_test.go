package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/coda/llm"
)

// backends returns a fresh instance of every multi-session implementation.
func backends(t *testing.T) map[string]ConversationStorage {
	t.Helper()
	return map[string]ConversationStorage{
		"memory": NewInMemoryStorage(),
		"sqlite": newTestSqlite(t),
	}
}

func TestConversationStorageContract(t *testing.T) {
	ctx := context.Background()
	history := []llm.ChatMessage{llm.UserMessage("Hello"), llm.AssistantMessage("Hi there")}

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			loaded, err := s.Load(ctx, "missing")
			require.NoError(t, err)
			assert.NotNil(t, loaded)
			assert.Empty(t, loaded)

			require.NoError(t, s.Save(ctx, "s1", history))
			require.NoError(t, s.Save(ctx, "s2", history[:1]))

			loaded, err = s.Load(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, history, loaded)

			// Overwrite replaces, never appends.
			require.NoError(t, s.Save(ctx, "s1", history[1:]))
			loaded, err = s.Load(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, history[1:], loaded)

			sessions, err := s.ListSessions(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"s1", "s2"}, sessions)

			require.NoError(t, s.Delete(ctx, "s1"))
			exists, err := s.Exists(ctx, "s1")
			require.NoError(t, err)
			assert.False(t, exists)

			exists, err = s.Exists(ctx, "s2")
			require.NoError(t, err)
			assert.True(t, exists)
		})
	}
}

func TestInMemoryStorageCopiesHistory(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStorage()
	history := []llm.ChatMessage{llm.UserMessage("original")}

	require.NoError(t, s.Save(ctx, "s", history))
	history[0].Content = "mutated"

	loaded, err := s.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "original", loaded[0].Content)
}

func TestInMemoryActionLog(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStorage()

	require.NoError(t, s.RecordAction(ctx, ActionRecord{SessionID: "s", Kind: "bash", Input: "ls"}))
	require.NoError(t, s.RecordAction(ctx, ActionRecord{SessionID: "s", Kind: "info", Input: "x"}))

	recs, err := s.ListActions(ctx, "s", 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "info", recs[0].Kind)
	assert.NotEmpty(t, recs[0].ID)
	assert.False(t, recs[0].CreatedAt.IsZero())
}

func TestFileStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sub", "history.json")
	s := NewFileStorage(path)

	loaded, err := s.Load(ctx, DefaultSessionID)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	history := []llm.ChatMessage{llm.UserMessage("line one\nline two"), llm.AssistantMessage("ok")}
	require.NoError(t, s.Save(ctx, DefaultSessionID, history))

	// A fresh store reads what the first one wrote.
	loaded, err = NewFileStorage(path).Load(ctx, DefaultSessionID)
	require.NoError(t, err)
	assert.Equal(t, history, loaded)

	sessions, err = s.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultSessionID}, sessions)

	require.NoError(t, s.Delete(ctx, DefaultSessionID))
	exists, err := s.Exists(ctx, DefaultSessionID)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, s.Delete(ctx, DefaultSessionID))
}

func TestFileStorageFormat(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, NewFileStorage(path).Save(ctx, DefaultSessionID, []llm.ChatMessage{llm.UserMessage("hi")}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"turns":[{"role":"user","text":"hi"}]}`, string(data))
}

func TestFileStorageRejectsBadFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0644))
	_, err := NewFileStorage(corrupt).Load(ctx, DefaultSessionID)
	assert.Error(t, err)

	badRole := filepath.Join(dir, "role.json")
	require.NoError(t, os.WriteFile(badRole, []byte(`{"turns":[{"role":"system","text":"x"}]}`), 0644))
	_, err = NewFileStorage(badRole).Load(ctx, DefaultSessionID)
	assert.ErrorContains(t, err, "unknown role")
}
