// Package dispatch executes parsed actions against the local tools.
//
// Information Hiding:
// - Per-kind handler table hidden
// - Error and panic to text conversion hidden
// - Post-modify hook sequencing hidden
package dispatch

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/richinex/coda/action"
)

// CommandRunner runs one allow-listed shell command.
type CommandRunner interface {
	Run(ctx context.Context, command string) (string, error)
}

// FileModifier overwrites a file.
type FileModifier interface {
	Modify(path, content string) error
}

// Handler executes one action kind.
type Handler func(ctx context.Context, a action.Action) (Result, error)

// Dispatcher maps each action kind to its handler.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[action.Kind]Handler

	runner   CommandRunner
	modifier FileModifier
	hooks    []PostModifyHook
	echo     io.Writer
	logger   *zap.Logger
}

// New creates a dispatcher with handlers for every built-in kind.
func New(runner CommandRunner, modifier FileModifier) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[action.Kind]Handler),
		runner:   runner,
		modifier: modifier,
		echo:     io.Discard,
		logger:   zap.NewNop(),
	}
	d.handlers[action.KindNone] = d.handleNone
	d.handlers[action.KindBash] = d.handleBash
	d.handlers[action.KindModify] = d.handleModify
	d.handlers[action.KindAnalyze] = d.handleAnalyze
	d.handlers[action.KindInfo] = d.handleInfo
	d.handlers[action.KindGettingInfo] = d.handleGettingInfo
	return d
}

// WithHooks appends post-modify hooks, run in order after each successful modify.
func (d *Dispatcher) WithHooks(hooks ...PostModifyHook) *Dispatcher {
	d.hooks = append(d.hooks, hooks...)
	return d
}

// WithEcho sets where bash commands are echoed before they run.
func (d *Dispatcher) WithEcho(w io.Writer) *Dispatcher {
	if w != nil {
		d.echo = w
	}
	return d
}

// WithLogger sets the logger.
func (d *Dispatcher) WithLogger(l *zap.Logger) *Dispatcher {
	if l != nil {
		d.logger = l
	}
	return d
}

// Register replaces the handler for kind.
func (d *Dispatcher) Register(kind action.Kind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = h
}

// Execute runs a single action. It never returns an error or panics:
// failures are rendered into the result text.
func (d *Dispatcher) Execute(ctx context.Context, a action.Action) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			d.logger.Error("action panicked", zap.Stringer("action", a), zap.Any("panic", r))
			res = failureResult(a.Kind, "", err)
		}
	}()

	if a.Err != nil {
		d.logger.Warn("unusable action", zap.Stringer("action", a))
		return failureResult(a.Kind, "", a.Err)
	}

	d.mu.RLock()
	h, ok := d.handlers[a.Kind]
	d.mu.RUnlock()
	if !ok {
		return failureResult(a.Kind, "", fmt.Errorf("no handler registered"))
	}

	res, err := h(ctx, a)
	if err != nil {
		d.logger.Warn("action failed", zap.Stringer("action", a), zap.Error(err))
		return failureResult(a.Kind, res.Output, err)
	}
	res.Kind = a.Kind
	d.logger.Debug("action done", zap.Stringer("action", a))
	return res
}

// ExecuteAll runs actions sequentially in order.
func (d *Dispatcher) ExecuteAll(ctx context.Context, actions []action.Action) Results {
	results := make(Results, 0, len(actions))
	for _, a := range actions {
		results = append(results, d.Execute(ctx, a))
	}
	return results
}

func (d *Dispatcher) handleNone(_ context.Context, a action.Action) (Result, error) {
	return successResult(a.Kind, ""), nil
}

func (d *Dispatcher) handleBash(ctx context.Context, a action.Action) (Result, error) {
	d.logger.Info("bash action", zap.String("command", a.Content))
	fmt.Fprintln(d.echo, a.Content)

	out, err := d.runner.Run(ctx, a.Content)
	if err != nil {
		return Result{}, err
	}
	return successResult(a.Kind, out), nil
}

func (d *Dispatcher) handleModify(ctx context.Context, a action.Action) (Result, error) {
	if err := d.modifier.Modify(a.FilePath, a.Content); err != nil {
		return Result{}, err
	}
	lines := []string{fmt.Sprintf("File %s has been modified.", a.FilePath)}

	for _, hook := range d.hooks {
		text, err := hook.AfterModify(ctx, a.FilePath)
		if err != nil {
			return Result{Output: strings.Join(lines, "\n")}, err
		}
		if text != "" {
			lines = append(lines, text)
		}
	}
	return successResult(a.Kind, strings.Join(lines, "\n")), nil
}

func (d *Dispatcher) handleAnalyze(_ context.Context, a action.Action) (Result, error) {
	return successResult(a.Kind, "Analysis:\n"+a.Content), nil
}

func (d *Dispatcher) handleInfo(_ context.Context, a action.Action) (Result, error) {
	return successResult(a.Kind, a.Content), nil
}

// handleGettingInfo runs each line as its own command. A failing line
// contributes its error text and the rest still run.
func (d *Dispatcher) handleGettingInfo(ctx context.Context, a action.Action) (Result, error) {
	var b strings.Builder
	b.WriteString("Additional info:")
	for _, cmd := range a.Commands() {
		out, err := d.runner.Run(ctx, cmd)
		if err != nil {
			d.logger.Info("info command failed", zap.String("command", cmd), zap.Error(err))
			out = err.Error()
		}
		fmt.Fprintf(&b, "\n$ %s\n%s", cmd, strings.TrimRight(out, "\n"))
	}
	return Result{Kind: a.Kind, Output: b.String(), Context: true}, nil
}
