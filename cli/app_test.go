package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/coda/config"
	"github.com/richinex/coda/llm"
	"github.com/richinex/coda/storage"
)

type testApp struct {
	*App
	dir      string
	provider *llm.MockProvider
	store    *storage.InMemoryStorage
	out      *bytes.Buffer
}

func newTestApp(t *testing.T, input string, edit func(*config.Settings), replies ...string) *testApp {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello\n"), 0644))

	settings := config.Defaults()
	settings.Storage.HistoryFile = filepath.Join(dir, "history.json")
	if edit != nil {
		edit(&settings)
	}

	provider := llm.NewMockProvider(replies...)
	store := storage.NewInMemoryStorage()
	out := &bytes.Buffer{}

	app, err := NewApp(settings, provider, store, dir, strings.NewReader(input), out, nil)
	require.NoError(t, err)
	return &testApp{App: app, dir: dir, provider: provider, store: store, out: out}
}

func TestParseArgs(t *testing.T) {
	input, commandOnly, err := ParseArgs([]string{"list", "the", "files"})
	require.NoError(t, err)
	assert.Equal(t, "list the files", input)
	assert.False(t, commandOnly)

	input, commandOnly, err = ParseArgs([]string{"@", "show", "files"})
	require.NoError(t, err)
	assert.Equal(t, "show files", input)
	assert.True(t, commandOnly)

	_, _, err = ParseArgs([]string{"@"})
	assert.ErrorIs(t, err, ErrMissingInput)

	_, _, err = ParseArgs(nil)
	assert.Error(t, err)
}

func TestOptionsApply(t *testing.T) {
	settings := config.Defaults()
	Options{
		Model:    "gpt-4o-mini",
		DBPath:   "/tmp/x.db",
		Timeout:  5 * time.Second,
		Git:      true,
		TestFile: "main.py",
		Grammar:  config.GrammarFenced,
	}.Apply(&settings)

	assert.Equal(t, "gpt-4o-mini", settings.LLM.Model)
	assert.Equal(t, "/tmp/x.db", settings.Storage.DBPath)
	assert.Equal(t, 5*time.Second, settings.LLM.Timeout)
	assert.True(t, settings.Git.Enabled)
	assert.True(t, settings.Test.Enabled)
	assert.Equal(t, "main.py", settings.Test.File)
	assert.Equal(t, config.GrammarFenced, settings.Parser.Grammar)
}

func TestOptionsApplyZeroKeepsSettings(t *testing.T) {
	settings := config.Defaults()
	before := settings
	Options{}.Apply(&settings)
	assert.Equal(t, before, settings)
}

func TestRunOnceExplainsCommandOutput(t *testing.T) {
	app := newTestApp(t, "", nil, "[BASH]\nls\n[/BASH]", "There is one file.")

	require.NoError(t, app.RunOnce(context.Background(), []string{"what", "is", "here"}))

	out := app.out.String()
	assert.Contains(t, out, "ls\n")
	assert.Contains(t, out, "There is one file.")

	requests := app.provider.Requests()
	require.Len(t, requests, 2)
	last := requests[1][len(requests[1])-1]
	assert.Contains(t, last.Content, "Command output:\na.txt")
}

func TestRunOnceCommandOnly(t *testing.T) {
	app := newTestApp(t, "", nil, "[BASH]\nls\n[/BASH]")

	require.NoError(t, app.RunOnce(context.Background(), []string{"@", "list", "files"}))

	assert.Contains(t, app.out.String(), "a.txt")
	assert.Len(t, app.provider.Requests(), 1)
}

func TestRunOnceModelError(t *testing.T) {
	app := newTestApp(t, "", nil)

	err := app.RunOnce(context.Background(), []string{"hi"})
	assert.ErrorIs(t, err, llm.ErrScriptExhausted)
}

func TestNewAppRejectsUnknownGrammar(t *testing.T) {
	settings := config.Defaults()
	settings.Parser.Grammar = "xml"
	_, err := NewApp(settings, llm.NewMockProvider(), storage.NewInMemoryStorage(), t.TempDir(),
		strings.NewReader(""), &bytes.Buffer{}, nil)
	assert.Error(t, err)
}

func TestCloseRunsClosersInReverse(t *testing.T) {
	app := newTestApp(t, "", nil)
	var order []int
	app.closers = append(app.closers,
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return nil },
	)
	require.NoError(t, app.Close())
	assert.Equal(t, []int{2, 1}, order)
}

func TestRendererPlainWhenNotTerminal(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{})
	assert.Equal(t, "u@h:/srv# ", r.Prompt("u", "h", "/srv"))
	assert.Equal(t, "**bold**", r.Markdown("**bold**"))
}

func TestJoinArgs(t *testing.T) {
	assert.Equal(t, "a b", joinArgs([]string{" a", "b "}))
	assert.Empty(t, joinArgs(nil))
}
