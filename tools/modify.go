// File Modifier - whole-file rewrites.
//
// Information Hiding:
// - Confinement and existence checks hidden
// - Mode preservation hidden

package tools

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// FileModifier overwrites files in the workspace.
type FileModifier struct {
	workspace *Workspace
	strict    bool
	logger    *zap.Logger
}

// NewFileModifier creates a modifier in strict mode.
func NewFileModifier(ws *Workspace) *FileModifier {
	return &FileModifier{workspace: ws, strict: true, logger: zap.NewNop()}
}

// WithStrict toggles strict mode. Strict mode requires the target to be an
// existing regular file inside the workspace; loose mode skips both checks.
func (m *FileModifier) WithStrict(strict bool) *FileModifier {
	m.strict = strict
	return m
}

// WithLogger sets the logger.
func (m *FileModifier) WithLogger(l *zap.Logger) *FileModifier {
	if l != nil {
		m.logger = l
	}
	return m
}

// Modify replaces the entire content of path. Nothing is written when a
// check fails.
func (m *FileModifier) Modify(path, content string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrNotFound)
	}

	abs, perm, err := m.target(path)
	if err != nil {
		m.logger.Warn("modify rejected", zap.String("path", path), zap.Error(err))
		return err
	}

	if err := os.WriteFile(abs, []byte(content), perm); err != nil {
		return mapFSError(err, path)
	}

	m.logger.Info("file modified",
		zap.String("path", abs),
		zap.Int("bytes", len(content)),
		zap.Bool("strict", m.strict))
	return nil
}

func (m *FileModifier) target(path string) (string, os.FileMode, error) {
	if m.strict {
		abs, info, err := m.workspace.ConfineExisting(path)
		if err != nil {
			return "", 0, err
		}
		return abs, info.Mode().Perm(), nil
	}

	abs := m.workspace.Abs(path)
	info, err := os.Stat(abs)
	switch {
	case err == nil && info.IsDir():
		return "", 0, fmt.Errorf("%w: %s is a directory", ErrNotRegularFile, path)
	case err == nil:
		return abs, info.Mode().Perm(), nil
	case os.IsNotExist(err):
		return abs, 0644, nil
	default:
		return "", 0, mapFSError(err, path)
	}
}

// ReadConfined reads a regular file inside the workspace.
func (m *FileModifier) ReadConfined(path string) (string, error) {
	abs, _, err := m.workspace.ConfineExisting(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", mapFSError(err, path)
	}
	return string(data), nil
}
