// Git Committer - commits a single modified file on a fresh branch.
//
// Information Hiding:
// - git CLI invocation hidden
// - Branch restoration on failure hidden

package tools

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultGitTimeout bounds each git invocation.
const DefaultGitTimeout = 30 * time.Second

// BranchPrefix prefixes branches created for modifications.
const BranchPrefix = "claude_modification_"

// BranchName returns the branch used for a modification of path.
func BranchName(path string) string {
	return BranchPrefix + filepath.Base(path)
}

// GitCommitter runs git in a repository directory.
type GitCommitter struct {
	binary  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewGitCommitter creates a committer using the git binary on PATH.
func NewGitCommitter() *GitCommitter {
	return &GitCommitter{binary: "git", timeout: DefaultGitTimeout, logger: zap.NewNop()}
}

// WithLogger sets the logger.
func (g *GitCommitter) WithLogger(l *zap.Logger) *GitCommitter {
	if l != nil {
		g.logger = l
	}
	return g
}

// WithTimeout sets the per-invocation timeout.
func (g *GitCommitter) WithTimeout(d time.Duration) *GitCommitter {
	if d > 0 {
		g.timeout = d
	}
	return g
}

// Commit creates branch from HEAD in repoPath, stages exactly filePath,
// commits it with message and switches back to the original branch.
// The original branch is restored even when staging or committing fails.
func (g *GitCommitter) Commit(ctx context.Context, repoPath, branch, filePath, message string) (err error) {
	original, err := g.git(ctx, repoPath, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return err
	}
	original = strings.TrimSpace(original)

	if _, err := g.git(ctx, repoPath, "checkout", "-b", branch); err != nil {
		return err
	}
	defer func() {
		if _, restoreErr := g.git(ctx, repoPath, "checkout", original); restoreErr != nil && err == nil {
			err = restoreErr
		}
	}()

	if _, err := g.git(ctx, repoPath, "add", "--", filePath); err != nil {
		return err
	}
	if _, err := g.git(ctx, repoPath, "commit", "-m", message); err != nil {
		return err
	}

	g.logger.Info("committed modification",
		zap.String("repo", repoPath),
		zap.String("branch", branch),
		zap.String("file", filePath))
	return nil
}

func (g *GitCommitter) git(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.binary, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	g.logger.Debug("git", zap.Strings("args", args), zap.String("dir", dir))
	if err := cmd.Run(); err != nil {
		return out.String(), &GitError{Args: args, Output: out.String(), Err: err}
	}
	return out.String(), nil
}
