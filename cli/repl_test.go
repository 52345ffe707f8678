package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/coda/config"
	"github.com/richinex/coda/llm"
	"github.com/richinex/coda/storage"
)

func TestREPLExitsOnEOF(t *testing.T) {
	app := newTestApp(t, "", nil)
	require.NoError(t, app.REPL(context.Background()))
	assert.Empty(t, app.provider.Requests())
}

func TestREPLExitCommands(t *testing.T) {
	for _, cmd := range []string{"exit", "quit", "bye", "q"} {
		t.Run(cmd, func(t *testing.T) {
			app := newTestApp(t, cmd+"\nls\n", nil)
			require.NoError(t, app.REPL(context.Background()))
			assert.NotContains(t, app.out.String(), "a.txt")
		})
	}
}

func TestREPLBannerNamesSession(t *testing.T) {
	app := newTestApp(t, "", nil)
	require.NoError(t, app.REPL(context.Background()))
	assert.Contains(t, app.out.String(), "Using session default.")
}

func TestREPLBannerNamesHistoryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	out := &bytes.Buffer{}
	app, err := NewApp(config.Defaults(), llm.NewMockProvider(), storage.NewFileStorage(path), dir,
		strings.NewReader(""), out, nil)
	require.NoError(t, err)

	require.NoError(t, app.REPL(context.Background()))
	assert.Contains(t, out.String(), "Using history file "+path+".")
}

func TestREPLHelp(t *testing.T) {
	app := newTestApp(t, "help\n", nil)
	require.NoError(t, app.REPL(context.Background()))
	assert.Contains(t, app.out.String(), "load_file <path>")
}

func TestREPLRunsAllowedCommandDirectly(t *testing.T) {
	app := newTestApp(t, "ls\n", nil)
	require.NoError(t, app.REPL(context.Background()))

	assert.Contains(t, app.out.String(), "a.txt")
	assert.Empty(t, app.provider.Requests(), "allowed commands never reach the model")
}

func TestREPLFallsBackToModel(t *testing.T) {
	app := newTestApp(t, "touch b.txt\n", nil, "I cannot do that.", "Nothing ran.")
	require.NoError(t, app.REPL(context.Background()))

	assert.Contains(t, app.out.String(), "Nothing ran.")
	assert.NoFileExists(t, filepath.Join(app.dir, "b.txt"))
	require.NotEmpty(t, app.provider.Requests())
	first := app.provider.Requests()[0]
	assert.Equal(t, "touch b.txt", first[len(first)-1].Content)
}

func TestREPLCommandOnlyMarker(t *testing.T) {
	app := newTestApp(t, "@ list files\n", nil, "[BASH]\nls\n[/BASH]")
	require.NoError(t, app.REPL(context.Background()))

	assert.Contains(t, app.out.String(), "a.txt")
	assert.Len(t, app.provider.Requests(), 1)
}

func TestREPLEmptyCommandOnly(t *testing.T) {
	app := newTestApp(t, "@\n", nil)
	require.NoError(t, app.REPL(context.Background()))
	assert.Contains(t, app.out.String(), "Error: "+ErrMissingInput.Error())
}

func TestREPLChangeDirectory(t *testing.T) {
	app := newTestApp(t, "cd sub\nls\n", nil)
	require.NoError(t, os.Mkdir(filepath.Join(app.dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(app.dir, "sub", "inner.txt"), nil, 0644))

	require.NoError(t, app.REPL(context.Background()))

	assert.Equal(t, "sub", filepath.Base(app.workspace.Dir()))
	assert.Contains(t, app.out.String(), "inner.txt")
}

func TestREPLChangeDirectoryMissing(t *testing.T) {
	app := newTestApp(t, "cd nowhere\n", nil)
	require.NoError(t, app.REPL(context.Background()))
	assert.Contains(t, app.out.String(), "Error: ")
}

func TestREPLLoadFile(t *testing.T) {
	app := newTestApp(t, "load_file a.txt\n", nil, "Looks fine.", "Still fine.")
	require.NoError(t, app.REPL(context.Background()))

	requests := app.provider.Requests()
	require.NotEmpty(t, requests)
	first := requests[0]
	assert.Equal(t, "Content of a.txt:\nhello\n", first[len(first)-1].Content)
}

func TestREPLLoadFileOutsideWorkdir(t *testing.T) {
	app := newTestApp(t, "load_file ../../etc/passwd\n", nil)
	require.NoError(t, app.REPL(context.Background()))

	assert.Contains(t, app.out.String(), "Error: ")
	assert.Empty(t, app.provider.Requests())
}

func TestREPLClear(t *testing.T) {
	app := newTestApp(t, "hello there\nclear\n", nil, "Hi.", "Hi again.")
	require.NoError(t, app.REPL(context.Background()))

	assert.Contains(t, app.out.String(), "Conversation cleared.")
	assert.Empty(t, app.Conversation().History())
}

func TestREPLTestRunHookPromptsForPath(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("sh not available")
	}
	input := "please update a.txt\nrun.sh\n"
	app := newTestApp(t, input, func(s *config.Settings) {
		s.Test.Enabled = true
	}, "[MODIFY]\nFILE: a.txt\n---\nupdated\n[/MODIFY]", "Updated.")
	require.NoError(t, os.WriteFile(filepath.Join(app.dir, "run.sh"), []byte("echo ran\n"), 0644))

	require.NoError(t, app.REPL(context.Background()))

	out := app.out.String()
	assert.Contains(t, out, "Enter the path to the main file to test: ")
	data, err := os.ReadFile(filepath.Join(app.dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "updated", string(data))

	requests := app.provider.Requests()
	require.Len(t, requests, 2)
	last := requests[1][len(requests[1])-1]
	assert.Contains(t, last.Content, "Test result:\nran")
}
