package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"uploadflow/internal/session"
	"uploadflow/internal/sessionstore"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and expire web upload sessions",
	}

	sessionsCmd.AddCommand(newSessionsListCommand(ctx))
	sessionsCmd.AddCommand(newSessionsReapCommand(ctx))
	sessionsCmd.AddCommand(newSessionsDeleteCommand(ctx))

	return sessionsCmd
}

func (c *commandContext) withSessions(fn func(*session.Manager) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := sessionstore.OpenForConfig(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(session.NewManager(cfg.Paths.UploadsRoot, store, cfg.SessionTTL(), c.log()))
}

func newSessionsListCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := validateOutput(output)
			if err != nil {
				return err
			}
			return ctx.withSessions(func(m *session.Manager) error {
				sessions, err := m.List(cmd.Context())
				if err != nil {
					return err
				}
				switch format {
				case outputJSON:
					return writeJSON(cmd, sessions)
				case outputYAML:
					return writeYAML(cmd, sessions)
				}
				out := cmd.OutOrStdout()
				if len(sessions) == 0 {
					fmt.Fprintln(out, "No sessions")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Video", "Created", "Last access", "Uploaded"},
					sessionRows(sessions),
					nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json, or yaml")
	return cmd
}

func sessionRows(sessions []sessionstore.Session) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		uploaded := "no"
		if s.UploadedAt != nil {
			uploaded = formatTime(*s.UploadedAt)
		}
		rows = append(rows, []string{s.ID, s.OriginalName, formatTime(s.CreatedAt), formatTime(s.LastAccess), uploaded})
	}
	return rows
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func newSessionsReapCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Delete sessions idle for longer than the configured TTL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSessions(func(m *session.Manager) error {
				removed, err := m.Reap(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired sessions\n", removed)
				return nil
			})
		},
	}
}

func newSessionsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one session and its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSessions(func(m *session.Manager) error {
				if err := m.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
				return nil
			})
		},
	}
}
