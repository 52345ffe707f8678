// Package cli wires settings, tools and the conversation into the one-shot
// and interactive front ends.
//
// Information Hiding:
// - Component construction and storage selection hidden
// - Prompt rendering and markdown output hidden behind Renderer
// - REPL command dispatch hidden
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/richinex/coda/action"
	"github.com/richinex/coda/config"
	"github.com/richinex/coda/dispatch"
	"github.com/richinex/coda/internal/logging"
	"github.com/richinex/coda/llm"
	"github.com/richinex/coda/session"
	"github.com/richinex/coda/storage"
	"github.com/richinex/coda/tools"
)

// ErrMissingInput is returned for "coda @" without text.
var ErrMissingInput = errors.New("no input given after @")

// Options holds command-line overrides. Zero values leave settings untouched.
type Options struct {
	Provider    string
	Model       string
	SessionID   string
	DBPath      string
	HistoryFile string
	ConfigPath  string
	Timeout     time.Duration
	Git         bool
	TestFile    string
	Grammar     string
	Verbose     bool
}

// Apply overlays the options onto s.
func (o Options) Apply(s *config.Settings) {
	if o.Model != "" {
		s.LLM.Model = o.Model
	}
	if o.DBPath != "" {
		s.Storage.DBPath = o.DBPath
	}
	if o.HistoryFile != "" {
		s.Storage.HistoryFile = o.HistoryFile
	}
	if o.Timeout > 0 {
		s.LLM.Timeout = o.Timeout
	}
	if o.Git {
		s.Git.Enabled = true
	}
	if o.TestFile != "" {
		s.Test.Enabled = true
		s.Test.File = o.TestFile
	}
	if o.Grammar != "" {
		s.Parser.Grammar = o.Grammar
	}
}

// App is a fully wired assistant bound to one working directory.
type App struct {
	settings  config.Settings
	workspace *tools.Workspace
	runner    *tools.CommandRunner
	modifier  *tools.FileModifier
	conv      *session.Conversation
	store     storage.ConversationStorage
	logger    *zap.Logger
	render    *Renderer

	in          *bufio.Reader
	out         io.Writer
	interactive bool
	closers     []func() error
}

// Setup loads settings, opens storage and builds the provider for opts.
func Setup(ctx context.Context, opts Options, in io.Reader, out io.Writer) (*App, error) {
	settings, err := config.Load(opts.ConfigPath, opts.Provider)
	if err != nil {
		return nil, err
	}
	opts.Apply(&settings)
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:   settings.Log.Level,
		File:    settings.Log.File,
		Verbose: opts.Verbose,
	})
	if err != nil {
		return nil, err
	}

	provider, err := createProvider(settings)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := openStorage(settings, opts.SessionID)
	if err != nil {
		return nil, err
	}

	wd, err := os.Getwd()
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	app, err := NewApp(settings, provider, store, wd, in, out, logger)
	if err != nil {
		closeStore()
		return nil, err
	}
	app.closers = append(app.closers, closeStore, func() error {
		_ = logger.Sync()
		return nil
	})

	if opts.SessionID != "" {
		app.conv.WithSessionID(opts.SessionID)
	}
	if err := app.conv.Load(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// NewApp wires the components around an already built provider and store.
func NewApp(settings config.Settings, provider llm.Provider, store storage.ConversationStorage,
	workdir string, in io.Reader, out io.Writer, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ws, err := tools.NewWorkspace(workdir)
	if err != nil {
		return nil, err
	}

	parser, err := action.ForGrammar(settings.Parser.Grammar)
	if err != nil {
		return nil, err
	}

	allowed := settings.Commands.AllowList()
	app := &App{
		settings:  settings,
		workspace: ws,
		runner: tools.NewCommandRunner(ws, allowed).
			WithPolicy(tools.Policy(settings.Commands.Policy)).
			WithTimeout(settings.Commands.Timeout).
			WithLogger(logger.Named("commands")),
		modifier: tools.NewFileModifier(ws).
			WithStrict(settings.Files.Strict).
			WithLogger(logger.Named("files")),
		store:  store,
		logger: logger,
		render: NewRenderer(out),
		in:     bufio.NewReader(in),
		out:    out,
	}

	d := dispatch.New(app.runner, app.modifier).
		WithEcho(out).
		WithLogger(logger.Named("dispatch"))
	if settings.Git.Enabled {
		committer := tools.NewGitCommitter().WithLogger(logger.Named("git"))
		d.WithHooks(dispatch.NewGitCommitHook(committer, ws.Abs, settings.Git.Message))
	}
	if settings.Test.Enabled {
		fileRunner := tools.NewFileRunner(ws).
			WithInterpreter(settings.Test.Interpreter).
			WithTimeout(settings.Test.Timeout).
			WithLogger(logger.Named("run"))
		d.WithHooks(dispatch.NewTestRunHook(appPrompter{app}, fileRunner))
	}

	app.conv = session.New(provider, d, store).
		WithParser(parser).
		WithSystemPrompt(session.SystemPrompt(settings.Parser.Grammar, allowed)).
		WithTimeout(settings.LLM.Timeout).
		WithLogger(logger.Named("session"))
	return app, nil
}

// Conversation exposes the underlying conversation.
func (a *App) Conversation() *session.Conversation {
	return a.conv
}

// Close releases storage and flushes logs.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// RunOnce handles one invocation: args joined with spaces, a leading "@"
// selects command-only mode.
func (a *App) RunOnce(ctx context.Context, args []string) error {
	input, commandOnly, err := ParseArgs(args)
	if err != nil {
		return err
	}
	reply, err := a.conv.Turn(ctx, input, commandOnly)
	if err != nil {
		return err
	}
	if commandOnly {
		fmt.Fprintln(a.out, reply)
		return nil
	}
	fmt.Fprintln(a.out, a.render.Markdown(reply))
	return nil
}

// ParseArgs splits the "@" marker from the input text.
func ParseArgs(args []string) (string, bool, error) {
	commandOnly := len(args) > 0 && args[0] == "@"
	if commandOnly {
		args = args[1:]
	}
	input := joinArgs(args)
	if input == "" {
		if commandOnly {
			return "", false, ErrMissingInput
		}
		return "", false, errors.New("no input given")
	}
	return input, commandOnly, nil
}

// appPrompter asks on the terminal in the REPL and answers with the
// configured file otherwise.
type appPrompter struct{ app *App }

func (p appPrompter) PromptPath(ctx context.Context, prompt string) (string, error) {
	if p.app.interactive {
		return dispatch.NewLinePrompter(p.app.in, p.app.out).PromptPath(ctx, prompt)
	}
	return dispatch.FixedPath(p.app.settings.Test.File).PromptPath(ctx, prompt)
}

func openStorage(settings config.Settings, sessionID string) (storage.ConversationStorage, func() error, error) {
	if sessionID == "" {
		return storage.NewFileStorage(settings.Storage.HistoryFile), func() error { return nil }, nil
	}
	db, err := storage.OpenSqlite(settings.Storage.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, db.Close, nil
}

func createProvider(settings config.Settings) (llm.Provider, error) {
	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	apiKey, err := config.APIKeyFor(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	return providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		APIKey(apiKey)
}
