// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/randiU/cse340-practice-umphrey/internal/config"
	"github.com/randiU/cse340-practice-umphrey/internal/store"
	"github.com/randiU/cse340-practice-umphrey/pkg/errutil"
)

// newMigrateCmd creates the migrate subcommand and its children.
func newMigrateCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply, roll back and inspect the embedded schema migrations that
create the users and sessions tables. Without a subcommand, migrate applies
every pending migration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, runMigrateUp)
		},
	}

	var all bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(cmd *cobra.Command, m Migrator) error {
				return runMigrateDown(cmd, m, all)
			})
		},
	}
	down.Flags().BoolVar(&all, "all", false, "roll back every migration, dropping all tables")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, deps, runMigrateUp)
			},
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Show the applied version and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, deps, runMigrateStatus)
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Mark VERSION as applied without running it",
			Long: `Mark VERSION as applied and clear the dirty flag without running any
SQL. Use it after repairing a migration that failed partway.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := parseForceVersion(args[0])
				if err != nil {
					return err
				}
				return withMigrator(cmd, deps, func(cmd *cobra.Command, m Migrator) error {
					return runMigrateForce(cmd, m, version)
				})
			},
		},
	)

	return cmd
}

// withMigrator loads the configuration, opens a migrator and runs fn with it.
func withMigrator(cmd *cobra.Command, deps Deps, fn func(*cobra.Command, Migrator) error) error {
	cfg, logger, err := loadConfig(cmd, (*config.Config).ValidateDatabase)
	if err != nil {
		return err
	}
	m, err := openMigrator(cfg, logger, deps.withDefaults())
	if err != nil {
		return err
	}
	defer closeMigrator(m, logger)
	return fn(cmd, m)
}

// openMigrator applies the TLS policy to the database URL and creates the
// migrator.
func openMigrator(cfg *config.Config, logger *slog.Logger, deps Deps) (Migrator, error) {
	if err := store.CheckDSN(poolConfig(cfg), logger); err != nil {
		return nil, err
	}
	m, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	return m, nil
}

func closeMigrator(m Migrator, logger *slog.Logger) {
	if err := m.Close(); err != nil {
		errutil.LogError(logger, "closing migrator failed", err)
	}
}

func runMigrateUp(cmd *cobra.Command, m Migrator) error {
	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "up").Wrap(err)
	}
	return printVersion(cmd, m, "Migrations completed successfully")
}

func runMigrateDown(cmd *cobra.Command, m Migrator, all bool) error {
	if all {
		cmd.Println("Rolling back all migrations...")
		if err := m.Down(); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "down").Wrap(err)
		}
	} else {
		cmd.Println("Rolling back one migration...")
		if err := m.Steps(-1); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "down").Wrap(err)
		}
	}
	return printVersion(cmd, m, "Rollback completed successfully")
}

func runMigrateStatus(cmd *cobra.Command, m Migrator) error {
	st, err := m.Status()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "status").Wrap(err)
	}

	if st.Version == 0 {
		cmd.Println("Current version: none")
	} else {
		cmd.Printf("Current version: %s\n", st.Name)
	}
	if st.Dirty {
		cmd.Println("WARNING: the last migration failed partway; repair it and run 'migrate force'")
	}
	if len(st.Pending) == 0 {
		cmd.Println("Pending: none")
		return nil
	}
	names := make([]string, 0, len(st.Pending))
	for _, v := range st.Pending {
		name, err := store.MigrationName(v)
		if err != nil {
			return err
		}
		names = append(names, name)
	}
	cmd.Printf("Pending: %s\n", strings.Join(names, ", "))
	return nil
}

func runMigrateForce(cmd *cobra.Command, m Migrator, version int) error {
	if err := m.Force(version); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "force").Wrap(err)
	}
	cmd.Printf("Forced version %d\n", version)
	return nil
}

func printVersion(cmd *cobra.Command, m Migrator, done string) error {
	version, dirty, err := m.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "version").Wrap(err)
	}
	cmd.Println(done)
	cmd.Printf("Schema version: %d", version)
	if dirty {
		cmd.Print(" (dirty)")
	}
	cmd.Println()
	return nil
}

// parseForceVersion parses the force argument as a non-negative integer.
func parseForceVersion(arg string) (int, error) {
	version, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", arg).Errorf("version must be an integer: %q", arg)
	}
	if version < 0 {
		return 0, oops.Code("INVALID_VERSION").With("input", arg).Errorf("version must be non-negative, got %d", version)
	}
	return version, nil
}
