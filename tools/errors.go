package tools

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Match with errors.Is.
var (
	ErrEmptyCommand     = errors.New("command cannot be empty")
	ErrNotAllowed       = errors.New("command not allowed")
	ErrExecutionFailed  = errors.New("command execution failed")
	ErrOutsideWorkdir   = errors.New("path is outside the working directory")
	ErrNotFound         = errors.New("file does not exist")
	ErrNotRegularFile   = errors.New("not a regular file")
	ErrPermissionDenied = errors.New("permission denied")
	ErrGit              = errors.New("git operation failed")
)

// CommandErrorKind classifies a CommandError.
type CommandErrorKind int

const (
	// NotAllowed means the command was rejected before any process started.
	NotAllowed CommandErrorKind = iota + 1
	// ExecutionFailed means the command ran and failed, or timed out.
	ExecutionFailed
)

// CommandError reports a rejected or failed shell command.
type CommandError struct {
	Kind     CommandErrorKind
	Command  string
	Name     string // offending command name for NotAllowed
	Stderr   string
	ExitCode int
	Err      error // underlying cause, if any
}

func (e *CommandError) Error() string {
	if e.Kind == NotAllowed {
		return fmt.Sprintf("command not allowed: %s", e.Name)
	}
	var b strings.Builder
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, "command failed with exit code %d", e.ExitCode)
	} else if e.Err != nil {
		fmt.Fprintf(&b, "command failed: %v", e.Err)
	} else {
		b.WriteString("command failed")
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		b.WriteString(": ")
		b.WriteString(stderr)
	}
	return b.String()
}

// Is maps the kind onto ErrNotAllowed or ErrExecutionFailed.
func (e *CommandError) Is(target error) bool {
	switch e.Kind {
	case NotAllowed:
		return target == ErrNotAllowed
	case ExecutionFailed:
		return target == ErrExecutionFailed
	}
	return false
}

func (e *CommandError) Unwrap() error { return e.Err }

// GitError reports a failed git invocation.
type GitError struct {
	Args   []string
	Output string
	Err    error
}

func (e *GitError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *GitError) Is(target error) bool { return target == ErrGit }

func (e *GitError) Unwrap() error { return e.Err }
