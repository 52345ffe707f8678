package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/richinex/coda/config"
	"github.com/richinex/coda/storage"
)

// SessionStore is the subset of the session database the sessions command needs.
type SessionStore interface {
	storage.ConversationStorage
	storage.ActionLog
}

// OpenSessions opens the session database named by the settings.
func OpenSessions(opts Options) (*storage.SqliteStorage, error) {
	settings, err := config.Load(opts.ConfigPath, opts.Provider)
	if err != nil {
		return nil, err
	}
	opts.Apply(&settings)
	db, err := storage.OpenSqlite(settings.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// ListSessions prints one session ID per line.
func ListSessions(ctx context.Context, store SessionStore, out io.Writer) error {
	ids, err := store.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(out, "No sessions.")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(out, id)
	}
	return nil
}

// DeleteSession removes a session and its action log.
func DeleteSession(ctx context.Context, store SessionStore, id string, out io.Writer) error {
	exists, err := store.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("session %q not found", id)
	}
	if err := store.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted session %s\n", id)
	return nil
}

// ShowSession prints the stored turns followed by the most recent actions.
func ShowSession(ctx context.Context, store SessionStore, id string, limit int, out io.Writer) error {
	exists, err := store.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("session %q not found", id)
	}

	history, err := store.Load(ctx, id)
	if err != nil {
		return err
	}
	for _, msg := range history {
		fmt.Fprintf(out, "[%s]\n%s\n\n", msg.Role, msg.Content)
	}

	actions, err := store.ListActions(ctx, id, limit)
	if err != nil {
		return err
	}
	if len(actions) == 0 {
		return nil
	}
	fmt.Fprintln(out, "Actions:")
	for _, rec := range actions {
		status := "ok"
		if !rec.Succeeded {
			status = "failed"
		}
		fmt.Fprintf(out, "  %s %-12s %-6s %s\n",
			rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.Kind, status, firstLine(rec.Input))
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i] + " ..."
		}
	}
	return s
}
