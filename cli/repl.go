package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/richinex/coda/storage"
)

const replHelp = `Commands:
  exit, quit, bye, q   leave
  help                 show this help
  clear                forget the conversation
  cd <dir>             change the working directory
  load_file <path>     send a file to the assistant
  @ <text>             run the reply's actions without a follow-up explanation
Any other line is tried as a shell command first and sent to the assistant
when the command is not allowed or fails.`

// REPL reads lines until EOF or an exit command.
func (a *App) REPL(ctx context.Context) error {
	a.interactive = true
	defer func() { a.interactive = false }()

	username, host := currentIdentity()
	fmt.Fprintf(a.out, "Using %s. Type 'help' for commands, 'exit' to quit.\n", a.storageLabel())

	for {
		fmt.Fprint(a.out, a.render.Prompt(username, host, a.workspace.Dir()))

		line, err := a.in.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(a.out)
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		if done := a.handleLine(ctx, strings.TrimSpace(line)); done {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// handleLine processes one REPL line and reports whether the loop should end.
func (a *App) handleLine(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "exit", "quit", "bye", "q":
		return true
	case "help":
		fmt.Fprintln(a.out, replHelp)
	case "clear":
		if err := a.conv.Reset(ctx); err != nil {
			a.printError(err)
			return false
		}
		fmt.Fprintln(a.out, "Conversation cleared.")
	case "cd":
		if arg == "" {
			fmt.Fprintln(a.out, "usage: cd <dir>")
			return false
		}
		if err := a.workspace.Chdir(arg); err != nil {
			a.printError(err)
		}
	case "load_file":
		if arg == "" {
			fmt.Fprintln(a.out, "usage: load_file <path>")
			return false
		}
		content, err := a.modifier.ReadConfined(arg)
		if err != nil {
			a.printError(err)
			return false
		}
		a.ask(ctx, fmt.Sprintf("Content of %s:\n%s", arg, content), false)
	case "@":
		if arg == "" {
			a.printError(ErrMissingInput)
			return false
		}
		a.ask(ctx, arg, true)
	default:
		if out, err := a.runner.Run(ctx, line); err == nil {
			fmt.Fprint(a.out, out)
			return false
		}
		a.ask(ctx, line, false)
	}
	return false
}

func (a *App) ask(ctx context.Context, input string, commandOnly bool) {
	reply, err := a.conv.Turn(ctx, input, commandOnly)
	if err != nil {
		a.printError(err)
		return
	}
	if commandOnly {
		fmt.Fprintln(a.out, reply)
		return
	}
	fmt.Fprintln(a.out, a.render.Markdown(reply))
}

// storageLabel names where the conversation is kept.
func (a *App) storageLabel() string {
	if fs, ok := a.store.(*storage.FileStorage); ok {
		return "history file " + fs.Path()
	}
	return "session " + a.conv.SessionID()
}

func (a *App) printError(err error) {
	fmt.Fprintf(a.out, "Error: %v\n", err)
}
