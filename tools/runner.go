// File Runner - executes a script from the workspace after a modification.
//
// Information Hiding:
// - Interpreter selection by extension hidden
// - Confinement and timeout hidden

package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultRunTimeout bounds a single script run.
const DefaultRunTimeout = 60 * time.Second

var interpreters = map[string]string{
	".py": "python",
	".sh": "sh",
	".js": "node",
	".rb": "ruby",
}

// FileRunner runs workspace files with an interpreter picked by extension.
type FileRunner struct {
	workspace *Workspace
	fallback  string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewFileRunner creates a runner whose fallback interpreter is python.
func NewFileRunner(ws *Workspace) *FileRunner {
	return &FileRunner{
		workspace: ws,
		fallback:  "python",
		timeout:   DefaultRunTimeout,
		logger:    zap.NewNop(),
	}
}

// WithInterpreter sets the interpreter for unknown extensions.
func (f *FileRunner) WithInterpreter(name string) *FileRunner {
	if name != "" {
		f.fallback = name
	}
	return f
}

// WithTimeout sets the run timeout.
func (f *FileRunner) WithTimeout(d time.Duration) *FileRunner {
	if d > 0 {
		f.timeout = d
	}
	return f
}

// WithLogger sets the logger.
func (f *FileRunner) WithLogger(l *zap.Logger) *FileRunner {
	if l != nil {
		f.logger = l
	}
	return f
}

// InterpreterFor returns the interpreter used for path.
func (f *FileRunner) InterpreterFor(path string) string {
	if name, ok := interpreters[strings.ToLower(filepath.Ext(path))]; ok {
		return name
	}
	return f.fallback
}

// Run executes path, which must be an existing file inside the workspace.
// It returns standard output on success and "Error: <stderr>" when the
// script exits non-zero; err is reserved for confinement, start and
// timeout failures.
func (f *FileRunner) Run(ctx context.Context, path string) (string, error) {
	abs, _, err := f.workspace.ConfineExisting(path)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	interpreter := f.InterpreterFor(abs)
	cmd := exec.CommandContext(ctx, interpreter, abs)
	cmd.Dir = f.workspace.Dir()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	f.logger.Info("running file", zap.String("path", abs), zap.String("interpreter", interpreter))
	err = cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: %s timed out after %s", ErrExecutionFailed, path, f.timeout)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return stdout.String(), nil
	case errors.As(err, &exitErr):
		return "Error: " + stderr.String(), nil
	default:
		return "", fmt.Errorf("%w: failed to start %s: %v", ErrExecutionFailed, interpreter, err)
	}
}
