package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/coda/llm"
	"github.com/richinex/coda/storage"
)

func TestListSessionsEmpty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, ListSessions(context.Background(), storage.NewInMemoryStorage(), &out))
	assert.Equal(t, "No sessions.\n", out.String())
}

func TestShowAndDeleteSession(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemoryStorage()
	require.NoError(t, store.Save(ctx, "work", []llm.ChatMessage{
		llm.UserMessage("list files"),
		llm.AssistantMessage("[BASH]\nls\n[/BASH]"),
	}))
	require.NoError(t, store.RecordAction(ctx, storage.ActionRecord{
		SessionID: "work",
		Kind:      "bash",
		Input:     "ls\nwc -l a.txt",
		Output:    "a.txt",
		Succeeded: true,
	}))

	var out bytes.Buffer
	require.NoError(t, ListSessions(ctx, store, &out))
	assert.Equal(t, "work\n", out.String())

	out.Reset()
	require.NoError(t, ShowSession(ctx, store, "work", 10, &out))
	shown := out.String()
	assert.Contains(t, shown, "[user]\nlist files")
	assert.Contains(t, shown, "Actions:")
	assert.Contains(t, shown, "ls ...")

	out.Reset()
	require.NoError(t, DeleteSession(ctx, store, "work", &out))
	assert.Equal(t, "Deleted session work\n", out.String())

	exists, err := store.Exists(ctx, "work")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSessionNotFound(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemoryStorage()
	var out bytes.Buffer
	assert.Error(t, ShowSession(ctx, store, "ghost", 10, &out))
	assert.Error(t, DeleteSession(ctx, store, "ghost", &out))
}
