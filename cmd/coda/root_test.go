package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/coda/cli"
)

type calls struct {
	runOnce  [][]string
	chat     int
	sessions []sessionsRequest
	opts     cli.Options
}

func recordingHandlers(c *calls) handlers {
	return handlers{
		runOnce: func(_ context.Context, opts cli.Options, args []string) error {
			c.opts = opts
			c.runOnce = append(c.runOnce, args)
			return nil
		},
		chat: func(_ context.Context, opts cli.Options) error {
			c.opts = opts
			c.chat++
			return nil
		},
		sessions: func(_ context.Context, opts cli.Options, req sessionsRequest) error {
			c.opts = opts
			c.sessions = append(c.sessions, req)
			return nil
		},
	}
}

func execute(t *testing.T, args ...string) (*calls, string) {
	t.Helper()
	c := &calls{}
	cmd := newRootCmd(recordingHandlers(c))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return c, out.String()
}

func TestRootRunsRequest(t *testing.T) {
	c, _ := execute(t, "list", "the", "files")
	assert.Equal(t, [][]string{{"list", "the", "files"}}, c.runOnce)
	assert.Zero(t, c.chat)
}

func TestRootCommandOnlyMarker(t *testing.T) {
	c, _ := execute(t, "@", "show", "files")
	assert.Equal(t, [][]string{{"@", "show", "files"}}, c.runOnce)
}

func TestRootWithoutArgsStartsChat(t *testing.T) {
	c, _ := execute(t)
	assert.Equal(t, 1, c.chat)
	assert.Empty(t, c.runOnce)
}

func TestRequestsStartingWithCommandNames(t *testing.T) {
	cases := map[string][]string{
		"help":       {"help", "me", "fix", "main.py"},
		"chat":       {"chat", "about", "the", "parser"},
		"sessions":   {"sessions", "are", "broken,", "why?"},
		"completion": {"completion", "for", "this", "loop"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := execute(t, args...)
			assert.Equal(t, [][]string{args}, c.runOnce)
			assert.Zero(t, c.chat)
			assert.Empty(t, c.sessions)
		})
	}
}

func TestRequestWordsThatLookLikeFlags(t *testing.T) {
	c, _ := execute(t, "help", "me", "-x", "this")
	assert.Equal(t, [][]string{{"help", "me", "-x", "this"}}, c.runOnce)
}

func TestBareHelpPrintsUsage(t *testing.T) {
	c, out := execute(t, "help")
	assert.Empty(t, c.runOnce)
	assert.Contains(t, out, "coda [@] [request...]")
}

func TestChatSubcommand(t *testing.T) {
	c, _ := execute(t, "chat")
	assert.Equal(t, 1, c.chat)
}

func TestSessionsSubcommand(t *testing.T) {
	c, _ := execute(t, "sessions", "--show", "work", "--limit", "5")
	require.Len(t, c.sessions, 1)
	assert.Equal(t, sessionsRequest{Show: "work", Limit: 5}, c.sessions[0])
	assert.Empty(t, c.runOnce)
}

func TestPersistentFlagsReachOptions(t *testing.T) {
	c, _ := execute(t, "-p", "openai", "--timeout", "5s", "--git", "--session", "s1", "chat", "about", "it")
	assert.Equal(t, [][]string{{"chat", "about", "it"}}, c.runOnce)
	assert.Equal(t, "openai", c.opts.Provider)
	assert.Equal(t, 5*time.Second, c.opts.Timeout)
	assert.True(t, c.opts.Git)
	assert.Equal(t, "s1", c.opts.SessionID)
}
