// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/randiU/cse340-practice-umphrey/internal/config"
)

// withDatabase loads the configuration, opens the pool and runs fn with it.
// Used by the maintenance commands, which do not need a session secret.
func withDatabase(cmd *cobra.Command, deps Deps, fn func(ctx context.Context, cfg *config.Config, db Database, logger *slog.Logger) error) error {
	cfg, logger, err := loadConfig(cmd, (*config.Config).ValidateDatabase)
	if err != nil {
		return err
	}
	deps = deps.withDefaults()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := deps.DatabaseFactory(ctx, poolConfig(cfg), logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "open database").Wrap(err)
	}
	defer db.Close()

	return fn(ctx, cfg, db, logger)
}
