package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

var baseCommands = []string{"ls", "cat", "grep", "head", "tail", "wc", "diff", "find", "sort", "uniq"}

// newTestWorkspace returns a workspace in a temp dir holding a.txt.
func newTestWorkspace(t *testing.T) (*Workspace, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello\n"), 0644))
	ws, err := NewWorkspace(dir)
	require.NoError(t, err)
	return ws, ws.Dir()
}

func TestRunAllowedCommandOutput(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	r := NewCommandRunner(ws, baseCommands)

	out, err := r.Run(context.Background(), "cat a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	out, err = r.Run(context.Background(), "ls")
	require.NoError(t, err)
	assert.Equal(t, "a.txt\n", out)
}

func TestRunDisallowedCommandHasNoEffect(t *testing.T) {
	ws, dir := newTestWorkspace(t)
	r := NewCommandRunner(ws, baseCommands)

	_, err := r.Run(context.Background(), "touch created.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAllowed))

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, NotAllowed, cmdErr.Kind)
	assert.Equal(t, "touch", cmdErr.Name)
	assert.Equal(t, "command not allowed: touch", err.Error())

	assert.NoFileExists(t, filepath.Join(dir, "created.txt"))
}

func TestRunEmptyCommand(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	r := NewCommandRunner(ws, baseCommands)

	_, err := r.Run(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestRunNonZeroExit(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	r := NewCommandRunner(ws, baseCommands)

	_, err := r.Run(context.Background(), "cat missing.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutionFailed)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 1, cmdErr.ExitCode)
	assert.Contains(t, cmdErr.Stderr, "missing.txt")
}

func TestRunFirstTokenPolicyIgnoresChainedCommands(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	r := NewCommandRunner(ws, []string{"cat"})

	// Only "cat" is checked; the chained wc runs although it is not allowed.
	out, err := r.Run(context.Background(), "cat a.txt && wc -c a.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "hello\n")
	assert.Contains(t, out, "6 a.txt")
}

func TestRunEveryCommandPolicyBlocksChainedCommands(t *testing.T) {
	ws, dir := newTestWorkspace(t)
	r := NewCommandRunner(ws, baseCommands).WithPolicy(PolicyEveryCommand)

	_, err := r.Run(context.Background(), "ls; rm a.txt")
	require.Error(t, err)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, NotAllowed, cmdErr.Kind)
	assert.Equal(t, "rm", cmdErr.Name)
	assert.FileExists(t, filepath.Join(dir, "a.txt"))
}

func TestRunEveryCommandPolicyAllowsPipelines(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	r := NewCommandRunner(ws, baseCommands).WithPolicy(PolicyEveryCommand)

	out, err := r.Run(context.Background(), "cat a.txt | grep hel | wc -l")
	require.NoError(t, err)
	assert.Contains(t, out, "1")
}

func TestCheckEveryCommandInspectsSubstitutionsAndKeywords(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	r := NewCommandRunner(ws, baseCommands).WithPolicy(PolicyEveryCommand)

	tests := []struct {
		command string
		name    string
	}{
		{"cat $(rm a.txt)", "rm"},
		{"ls && for f in *; do cat $f; done", "for"},
		{"ls | $CMD", "$CMD"},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			var cmdErr *CommandError
			require.True(t, errors.As(r.Check(tt.command), &cmdErr))
			assert.Equal(t, tt.name, cmdErr.Name)
		})
	}

	extended := NewCommandRunner(ws, append([]string{"for"}, baseCommands...)).WithPolicy(PolicyEveryCommand)
	assert.NoError(t, extended.Check("for f in *; do cat $f; done"))
}

func TestRunTimeout(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	r := NewCommandRunner(ws, []string{"sleep"}).WithTimeout(100 * time.Millisecond)

	start := time.Now()
	_, err := r.Run(context.Background(), "sleep 5")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutionFailed)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestRunUsesWorkspaceDir(t *testing.T) {
	ws, dir := newTestWorkspace(t)
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.txt"), []byte("b"), 0644))
	r := NewCommandRunner(ws, baseCommands)

	require.NoError(t, ws.Chdir("sub"))
	out, err := r.Run(context.Background(), "ls")
	require.NoError(t, err)
	assert.Equal(t, "b.txt\n", out)
}
