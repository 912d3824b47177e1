// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randiU/cse340-practice-umphrey/internal/config"
	"github.com/randiU/cse340-practice-umphrey/internal/logging"
	"github.com/randiU/cse340-practice-umphrey/internal/store"
)

const serviceName = "campus"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the campus CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(Deps{})
}

func newRootCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campus",
		Short: "Campus - account registration and login service",
		Long: `Campus serves the registration, login and dashboard pages backed by
PostgreSQL, and ships the maintenance commands for its schema, sessions
and user accounts.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmd(deps))
	cmd.AddCommand(newMigrateCmd(deps))
	cmd.AddCommand(newSessionsCmd(deps))
	cmd.AddCommand(newUsersCmd(deps))
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig reads the configuration for cmd, checks it with validate and
// installs the process logger.
func loadConfig(cmd *cobra.Command, validate func(*config.Config) error) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(config.Options{File: configFile, Flags: cmd.Flags()})
	if err != nil {
		return nil, nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, nil, err
	}

	level, _ := logging.ParseLevel(cfg.Log.Level) //nolint:errcheck // validated above
	logger := logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Writer:  cmd.ErrOrStderr(),
	})
	logger.Debug("configuration loaded", "config", cfg)
	return cfg, logger, nil
}

func poolConfig(cfg *config.Config) store.PoolConfig {
	return store.PoolConfig{
		DSN:              cfg.Database.URL,
		Development:      cfg.IsDevelopment(),
		AllowInsecureTLS: cfg.Database.AllowInsecureTLS,
		MaxConns:         cfg.Database.MaxConns,
		ConnectAttempts:  cfg.Database.ConnectAttempts,
		ConnectBackoff:   cfg.Database.ConnectBackoff,
	}
}
