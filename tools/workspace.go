// Package tools provides the local side effects an assistant reply may request:
// shell commands, file rewrites, git commits and script runs.
//
// Information Hiding:
// - Path confinement and symlink resolution hidden behind Workspace
// - Shell parsing and interpretation hidden behind CommandRunner
// - Process and git plumbing hidden behind GitCommitter and FileRunner
package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Workspace is the session working directory shared by all tools.
// It is safe for concurrent use.
type Workspace struct {
	mu  sync.RWMutex
	dir string
}

// NewWorkspace creates a workspace rooted at dir (made absolute).
func NewWorkspace(dir string) (*Workspace, error) {
	abs, err := canonicalDir(dir)
	if err != nil {
		return nil, err
	}
	return &Workspace{dir: abs}, nil
}

// Dir returns the current working directory.
func (w *Workspace) Dir() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dir
}

// Chdir moves the workspace. Relative paths resolve against the current dir.
func (w *Workspace) Chdir(dir string) error {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(w.Dir(), dir)
	}
	abs, err := canonicalDir(dir)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.dir = abs
	w.mu.Unlock()
	return nil
}

// Abs resolves path against the working directory without any checks.
func (w *Workspace) Abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(w.Dir(), path)
}

// Confine resolves path and fails with ErrOutsideWorkdir when the result,
// after following symlinks, is not inside the working directory.
func (w *Workspace) Confine(path string) (string, error) {
	abs := w.Abs(path)
	if !pathWithin(realPath(abs), w.Dir()) {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkdir, path)
	}
	return abs, nil
}

// ConfineExisting is Confine plus a regular-file existence check.
func (w *Workspace) ConfineExisting(path string) (string, os.FileInfo, error) {
	abs, err := w.Confine(path)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", nil, mapFSError(err, path)
	}
	if !info.Mode().IsRegular() {
		return "", nil, fmt.Errorf("%w: %s", ErrNotRegularFile, path)
	}
	return abs, info, nil
}

// pathWithin reports whether path equals root or lies beneath it.
func pathWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// realPath follows symlinks for the longest existing prefix of path.
func realPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	parent := filepath.Dir(path)
	if parent == path {
		return path
	}
	return filepath.Join(realPath(parent), filepath.Base(path))
}

func canonicalDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	abs = realPath(abs)
	info, err := os.Stat(abs)
	if err != nil {
		return "", mapFSError(err, dir)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", dir)
	}
	return abs, nil
}

func mapFSError(err error, path string) error {
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case os.IsPermission(err):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	default:
		return fmt.Errorf("failed to access %s: %w", path, err)
	}
}
