// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/randiU/cse340-practice-umphrey/internal/auth"
	authpg "github.com/randiU/cse340-practice-umphrey/internal/auth/postgres"
	"github.com/randiU/cse340-practice-umphrey/internal/config"
	"github.com/randiU/cse340-practice-umphrey/internal/session"
	sessionpg "github.com/randiU/cse340-practice-umphrey/internal/session/postgres"
	"github.com/randiU/cse340-practice-umphrey/internal/web"
	"github.com/randiU/cse340-practice-umphrey/pkg/errutil"
)

const readHeaderTimeout = 10 * time.Second

// serveConfig holds the serve command's own flags.
type serveConfig struct {
	autoMigrate bool
}

// newServeCmd creates the serve subcommand.
func newServeCmd(deps Deps) *cobra.Command {
	cfg := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long: `Start the web server. Pending schema migrations are applied first
unless --auto-migrate=false is given. Metrics and health probes are served
on the separate metrics address.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCfg, logger, err := loadConfig(cmd, (*config.Config).Validate)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, appCfg, cfg, logger, deps)
		},
	}

	cmd.Flags().BoolVar(&cfg.autoMigrate, "auto-migrate", true, "apply pending migrations at startup")

	return cmd
}

// runServeWithDeps runs the web server until ctx is cancelled or a server
// fails, then shuts everything down within the configured timeout.
func runServeWithDeps(ctx context.Context, cfg *config.Config, opts *serveConfig, logger *slog.Logger, deps Deps) error {
	deps = deps.withDefaults()

	if opts.autoMigrate {
		if err := autoMigrate(cfg, logger, deps); err != nil {
			return err
		}
	}

	db, err := deps.DatabaseFactory(ctx, poolConfig(cfg), logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "open database").Wrap(err)
	}
	defer db.Close()

	obs := deps.ObservabilityServerFactory(cfg.Server.MetricsAddr, db.Ping, logger)
	metrics := obs.Metrics()

	sessions, err := sessionpg.NewStore(ctx, db, sessionpg.Options{
		Timeout: cfg.Database.Timeout,
		OnSweep: metrics.RecordSweep,
	}, logger)
	if err != nil {
		return err
	}
	stopSweeper := sessions.StartCleanup(cfg.Session.SweepInterval)
	defer stopSweeper()

	users := authpg.NewUserRepository(db, cfg.Database.Timeout)
	hasher := auth.NewBcryptHasher(auth.DefaultBcryptCost)
	logins, err := auth.NewLoginService(users, hasher, logger)
	if err != nil {
		return err
	}
	registrations, err := auth.NewRegistrationService(users, hasher, logger)
	if err != nil {
		return err
	}

	manager, err := session.NewManager(sessions, session.Config{
		Secret:     []byte(cfg.Session.Secret),
		Lifetime:   cfg.Session.Lifetime,
		CookieName: cfg.Session.CookieName,
		Secure:     !cfg.IsDevelopment(),
	}, logger)
	if err != nil {
		return err
	}

	srv, err := web.NewServer(web.Deps{
		Logins:        logins,
		Registrations: registrations,
		Sessions:      manager,
		Metrics:       metrics,
		Logger:        logger,
		Development:   cfg.IsDevelopment(),
	})
	if err != nil {
		return err
	}

	var obsErrCh <-chan error
	if cfg.Server.MetricsAddr != "" {
		obsErrCh, err = obs.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Server.MetricsAddr).Wrap(err)
		}
	}

	listener, err := deps.ListenerFactory("tcp", cfg.Server.Addr)
	if err != nil {
		stopObservability(obs, cfg, logger)
		return oops.Code("LISTEN_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	}

	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	webErrCh := make(chan error, 1)
	go func() {
		defer close(webErrCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			webErrCh <- oops.Code("WEB_SERVE_FAILED").Wrap(serveErr)
		}
	}()

	logger.Info("campus started",
		"addr", listener.Addr().String(),
		"metrics_addr", cfg.Server.MetricsAddr,
		"environment", cfg.Environment)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-webErrCh:
		runErr = err
	case err, ok := <-obsErrCh:
		if ok && err != nil {
			runErr = oops.Code("OBSERVABILITY_FAILED").Wrap(err)
		}
	}
	if runErr != nil {
		errutil.LogError(logger, "server error, triggering shutdown", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		errutil.LogError(logger, "web server shutdown failed", err)
	}
	stopObservability(obs, cfg, logger)

	logger.Info("shutdown complete")
	return runErr
}

func stopObservability(obs ObservabilityServer, cfg *config.Config, logger *slog.Logger) {
	if cfg.Server.MetricsAddr == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := obs.Stop(ctx); err != nil {
		errutil.LogError(logger, "observability server shutdown failed", err)
	}
}

// autoMigrate applies pending migrations before the server opens its pool.
func autoMigrate(cfg *config.Config, logger *slog.Logger, deps Deps) error {
	m, err := openMigrator(cfg, logger, deps)
	if err != nil {
		return err
	}
	defer closeMigrator(m, logger)

	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
	}
	logger.Info("database schema up to date")
	return nil
}
