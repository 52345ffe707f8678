package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/richinex/coda/cli"
	"github.com/richinex/coda/config"
	"github.com/spf13/cobra"
)

// sessionsRequest selects what the sessions command does.
type sessionsRequest struct {
	Delete string
	Show   string
	Limit  int
}

// handlers are the actions the command tree dispatches to.
type handlers struct {
	runOnce  func(ctx context.Context, opts cli.Options, args []string) error
	chat     func(ctx context.Context, opts cli.Options) error
	sessions func(ctx context.Context, opts cli.Options, req sessionsRequest) error
}

func defaultHandlers() handlers {
	return handlers{
		runOnce: func(ctx context.Context, opts cli.Options, args []string) error {
			app, err := cli.Setup(ctx, opts, os.Stdin, os.Stdout)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.RunOnce(ctx, args)
		},
		chat: func(ctx context.Context, opts cli.Options) error {
			app, err := cli.Setup(ctx, opts, os.Stdin, os.Stdout)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.REPL(ctx)
		},
		sessions: func(ctx context.Context, opts cli.Options, req sessionsRequest) error {
			db, err := cli.OpenSessions(opts)
			if err != nil {
				return err
			}
			defer db.Close()

			switch {
			case req.Delete != "":
				return cli.DeleteSession(ctx, db, req.Delete, os.Stdout)
			case req.Show != "":
				return cli.ShowSession(ctx, db, req.Show, req.Limit, os.Stdout)
			default:
				return cli.ListSessions(ctx, db, os.Stdout)
			}
		},
	}
}

// newRootCmd builds the command tree. Subcommand names are ordinary words in
// a request, so "chat", "sessions" and "help" followed by more words are sent
// to the model as text starting with that word.
func newRootCmd(h handlers) *cobra.Command {
	var opts cli.Options

	rootCmd := &cobra.Command{
		Use:   "coda [@] [request...]",
		Short: "A terminal assistant that runs allow-listed commands and edits files",
		Long: `coda sends your request to an LLM and carries out the actions in its reply:
shell commands from an allow-list, file rewrites inside the working directory,
analysis and information blocks.

With no arguments coda starts an interactive session. A leading "@" returns
the action output without asking the model to explain it.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return h.chat(cmd.Context(), opts)
			}
			return h.runOnce(cmd.Context(), opts, args)
		},
	}
	rootCmd.Flags().SetInterspersed(false)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.Provider, "provider", "p", "",
		fmt.Sprintf("LLM provider (%s)", strings.Join(config.SupportedProviders(), ", ")))
	flags.StringVar(&opts.Model, "model", "", "Model name (defaults to the provider's model)")
	flags.StringVar(&opts.SessionID, "session", "", "Session ID; stores history in the session database")
	flags.StringVar(&opts.DBPath, "db", "", "Session database path")
	flags.StringVar(&opts.HistoryFile, "history-file", "", "History file used when no session is given")
	flags.StringVar(&opts.ConfigPath, "config", "", "Path to a YAML config file")
	flags.DurationVar(&opts.Timeout, "timeout", time.Duration(0), "Timeout for each model call")
	flags.BoolVar(&opts.Git, "git", false, "Commit each modified file on a new branch")
	flags.StringVar(&opts.TestFile, "test-file", "", "Run this file after each modification")
	flags.StringVar(&opts.Grammar, "grammar", "", "Reply grammar (tags, fenced)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Show verbose output")

	// forward sends "<name> args..." to the model when words follow a subcommand.
	forward := func(cmd *cobra.Command, args []string) error {
		return h.runOnce(cmd.Context(), opts, append([]string{cmd.Name()}, args...))
	}

	helpCmd := &cobra.Command{
		Use:    "help",
		Short:  "Show help",
		Hidden: true,
		Args:   cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Root().Help()
			}
			return forward(cmd, args)
		},
	}
	helpCmd.Flags().SetInterspersed(false)
	rootCmd.SetHelpCommand(helpCmd)
	rootCmd.AddCommand(chatCmd(h, &opts, forward))
	rootCmd.AddCommand(sessionsCmd(h, &opts, forward))

	return rootCmd
}

func chatCmd(h handlers, opts *cli.Options, forward func(*cobra.Command, []string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return forward(cmd, args)
			}
			return h.chat(cmd.Context(), *opts)
		},
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func sessionsCmd(h handlers, opts *cli.Options, forward func(*cobra.Command, []string) error) *cobra.Command {
	var req sessionsRequest

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List, show or delete stored sessions",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return forward(cmd, args)
			}
			return h.sessions(cmd.Context(), *opts, req)
		},
	}
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&req.Delete, "delete", "", "Delete the session with this ID")
	cmd.Flags().StringVar(&req.Show, "show", "", "Show the history and recent actions of a session")
	cmd.Flags().IntVar(&req.Limit, "limit", 20, "Number of actions shown with --show")

	return cmd
}
