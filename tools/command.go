// Command Runner - allow-listed shell execution.
//
// Information Hiding:
// - Allow-list policy hidden behind Check
// - Shell parsing and interpretation via mvdan.cc/sh hidden
// - Timeout and exit status mapping hidden behind CommandError

package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Policy selects how much of a command line the allow-list inspects.
type Policy string

const (
	// PolicyFirstToken checks only the first whitespace-separated token.
	// Anything after it, including ";", "|" and "&&", is not inspected.
	PolicyFirstToken Policy = "first_token"
	// PolicyEveryCommand requires every command name in the script to be allowed.
	PolicyEveryCommand Policy = "every_command"
)

// DefaultCommandTimeout bounds a single Run.
const DefaultCommandTimeout = 30 * time.Second

// CommandRunner executes allow-listed shell commands in the workspace.
type CommandRunner struct {
	workspace *Workspace
	allowed   map[string]struct{}
	policy    Policy
	timeout   time.Duration
	logger    *zap.Logger
}

// NewCommandRunner creates a runner that accepts only the given command names.
func NewCommandRunner(ws *Workspace, allowed []string) *CommandRunner {
	set := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		set[name] = struct{}{}
	}
	return &CommandRunner{
		workspace: ws,
		allowed:   set,
		policy:    PolicyFirstToken,
		timeout:   DefaultCommandTimeout,
		logger:    zap.NewNop(),
	}
}

// WithPolicy sets the allow-list policy.
func (r *CommandRunner) WithPolicy(p Policy) *CommandRunner {
	r.policy = p
	return r
}

// WithTimeout sets the per-command timeout. Non-positive values are ignored.
func (r *CommandRunner) WithTimeout(d time.Duration) *CommandRunner {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// WithLogger sets the logger.
func (r *CommandRunner) WithLogger(l *zap.Logger) *CommandRunner {
	if l != nil {
		r.logger = l
	}
	return r
}

// Allowed reports whether name is on the allow-list.
func (r *CommandRunner) Allowed(name string) bool {
	_, ok := r.allowed[name]
	return ok
}

// Check validates command against the allow-list without running anything.
func (r *CommandRunner) Check(command string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return ErrEmptyCommand
	}

	first := strings.Fields(command)[0]
	if !r.Allowed(first) {
		return &CommandError{Kind: NotAllowed, Command: command, Name: first}
	}
	if r.policy != PolicyEveryCommand {
		return nil
	}

	prog, err := parseScript(command)
	if err != nil {
		return &CommandError{Kind: ExecutionFailed, Command: command, Err: err}
	}
	for _, name := range commandNames(prog) {
		if !r.Allowed(name) {
			return &CommandError{Kind: NotAllowed, Command: command, Name: name}
		}
	}
	return nil
}

// Run checks and executes command, returning its standard output.
// A rejected command never starts a process.
func (r *CommandRunner) Run(ctx context.Context, command string) (string, error) {
	command = strings.TrimSpace(command)
	if err := r.Check(command); err != nil {
		r.logger.Warn("command rejected", zap.String("command", command), zap.Error(err))
		return "", err
	}

	prog, err := parseScript(command)
	if err != nil {
		return "", &CommandError{Kind: ExecutionFailed, Command: command, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	opts := []interp.RunnerOption{
		interp.Dir(r.workspace.Dir()),
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.StdIO(nil, &stdout, &stderr),
	}
	if r.policy == PolicyEveryCommand {
		opts = append(opts, interp.ExecHandlers(r.allowListHandler(command)))
	}
	runner, err := interp.New(opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create shell runner: %w", err)
	}

	start := time.Now()
	r.logger.Info("running command",
		zap.String("command", command),
		zap.String("dir", r.workspace.Dir()))

	err = runner.Run(ctx, prog)
	if err != nil {
		cmdErr := r.classify(ctx, command, stderr.String(), err)
		r.logger.Warn("command failed",
			zap.String("command", command),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(cmdErr))
		return stdout.String(), cmdErr
	}

	r.logger.Debug("command finished",
		zap.String("command", command),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("stdout_bytes", stdout.Len()))
	return stdout.String(), nil
}

func (r *CommandRunner) classify(ctx context.Context, command, stderr string, err error) error {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &CommandError{
			Kind:    ExecutionFailed,
			Command: command,
			Stderr:  stderr,
			Err:     fmt.Errorf("timed out after %s", r.timeout),
		}
	}
	var status interp.ExitStatus
	if errors.As(err, &status) {
		return &CommandError{Kind: ExecutionFailed, Command: command, Stderr: stderr, ExitCode: int(status)}
	}
	return &CommandError{Kind: ExecutionFailed, Command: command, Stderr: stderr, Err: err}
}

// allowListHandler rejects external commands whose expanded name is not
// allowed, catching names that were not literal at parse time.
func (r *CommandRunner) allowListHandler(command string) func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			if len(args) > 0 && !r.Allowed(args[0]) {
				return &CommandError{Kind: NotAllowed, Command: command, Name: args[0]}
			}
			return next(ctx, args)
		}
	}
}

func parseScript(command string) (*syntax.File, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}
	return prog, nil
}

// commandNames lists every command name and compound keyword in prog,
// including those inside substitutions. Non-literal names are reported
// in their printed form, e.g. "$CMD".
func commandNames(prog *syntax.File) []string {
	var names []string
	syntax.Walk(prog, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.CallExpr:
			if len(n.Args) > 0 {
				names = append(names, wordName(n.Args[0]))
			}
		case *syntax.ForClause:
			names = append(names, "for")
		case *syntax.WhileClause:
			if n.Until {
				names = append(names, "until")
			} else {
				names = append(names, "while")
			}
		case *syntax.IfClause:
			names = append(names, "if")
		case *syntax.CaseClause:
			names = append(names, "case")
		case *syntax.FuncDecl:
			names = append(names, "function")
		case *syntax.DeclClause:
			names = append(names, n.Variant.Value)
		case *syntax.LetClause:
			names = append(names, "let")
		case *syntax.TestClause:
			names = append(names, "[[")
		case *syntax.ArithmCmd:
			names = append(names, "((")
		}
		return true
	})
	return names
}

func wordName(w *syntax.Word) string {
	if lit := w.Lit(); lit != "" {
		return lit
	}
	var buf bytes.Buffer
	if err := syntax.NewPrinter().Print(&buf, w); err != nil {
		return "?"
	}
	return buf.String()
}
