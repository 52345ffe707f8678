package dispatch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/richinex/coda/tools"
)

// PostModifyHook runs after a successful modify and returns text to append.
type PostModifyHook interface {
	AfterModify(ctx context.Context, path string) (string, error)
}

// Committer commits a single file on a new branch.
type Committer interface {
	Commit(ctx context.Context, repoPath, branch, filePath, message string) error
}

// GitCommitHook commits each modified file on its own branch.
type GitCommitHook struct {
	committer Committer
	resolve   func(path string) string
	message   string
}

// NewGitCommitHook creates the hook. resolve turns the action's path into an
// absolute one, usually tools.Workspace.Abs.
func NewGitCommitHook(c Committer, resolve func(string) string, message string) *GitCommitHook {
	return &GitCommitHook{committer: c, resolve: resolve, message: message}
}

// AfterModify implements PostModifyHook.
func (h *GitCommitHook) AfterModify(ctx context.Context, path string) (string, error) {
	abs := h.resolve(path)
	branch := tools.BranchName(abs)
	if err := h.committer.Commit(ctx, filepath.Dir(abs), branch, filepath.Base(abs), h.message); err != nil {
		return "", err
	}
	return "Changes committed to new branch: " + branch, nil
}

// PathPrompter supplies the file to run after a modification.
type PathPrompter interface {
	PromptPath(ctx context.Context, prompt string) (string, error)
}

// FixedPath always answers with the same path.
type FixedPath string

// PromptPath implements PathPrompter.
func (p FixedPath) PromptPath(context.Context, string) (string, error) {
	return string(p), nil
}

// LinePrompter asks on out and reads one line from in.
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLinePrompter creates a prompter over the given streams.
func NewLinePrompter(in *bufio.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: in, out: out}
}

// PromptPath implements PathPrompter.
func (p *LinePrompter) PromptPath(_ context.Context, prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read path: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// FileRunner runs a script and returns its output.
type FileRunner interface {
	Run(ctx context.Context, path string) (string, error)
}

// TestRunPrompt is shown when asking for the file to run.
const TestRunPrompt = "Enter the path to the main file to test: "

// TestRunHook runs a user-chosen file after each modification.
type TestRunHook struct {
	prompter PathPrompter
	runner   FileRunner
}

// NewTestRunHook creates the hook.
func NewTestRunHook(p PathPrompter, r FileRunner) *TestRunHook {
	return &TestRunHook{prompter: p, runner: r}
}

// AfterModify implements PostModifyHook. An empty answer skips the run.
func (h *TestRunHook) AfterModify(ctx context.Context, _ string) (string, error) {
	path, err := h.prompter.PromptPath(ctx, TestRunPrompt)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", nil
	}
	out, err := h.runner.Run(ctx, path)
	if err != nil {
		return "", err
	}
	return "Test result:\n" + out, nil
}
