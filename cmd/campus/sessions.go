// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randiU/cse340-practice-umphrey/internal/config"
	sessionpg "github.com/randiU/cse340-practice-umphrey/internal/session/postgres"
)

// newSessionsCmd creates the sessions subcommand.
func newSessionsCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Maintain stored sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "gc",
		Short: "Delete expired sessions",
		Long: `Delete every expired session row. The server sweeps on its own
schedule; gc runs one pass immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd, deps, func(ctx context.Context, cfg *config.Config, db Database, logger *slog.Logger) error {
				return runSessionsGC(ctx, cmd, cfg, db, logger)
			})
		},
	})

	return cmd
}

func runSessionsGC(ctx context.Context, cmd *cobra.Command, cfg *config.Config, db Database, logger *slog.Logger) error {
	sessions, err := sessionpg.NewStore(ctx, db, sessionpg.Options{Timeout: cfg.Database.Timeout}, logger)
	if err != nil {
		return err
	}
	removed, err := sessions.DeleteExpired(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Removed %d expired sessions\n", removed)
	return nil
}
