// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/randiU/cse340-practice-umphrey/internal/auth/postgres"
	"github.com/randiU/cse340-practice-umphrey/internal/observability"
	"github.com/randiU/cse340-practice-umphrey/internal/store"
)

// Database is the part of *pgxpool.Pool the commands use.
// pgxmock.PgxPoolIface satisfies it in tests.
type Database interface {
	postgres.Pool
	Ping(ctx context.Context) error
	Close()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Metrics() *observability.Metrics
}

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// DatabaseFactory opens the connection pool.
	// Default: store.OpenPool
	DatabaseFactory func(ctx context.Context, cfg store.PoolConfig, logger *slog.Logger) (Database, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, isReady observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// ListenerFactory creates the web listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)
}

func (d Deps) withDefaults() Deps {
	if d.DatabaseFactory == nil {
		d.DatabaseFactory = openDatabase
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = newMigrator
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, isReady observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, isReady, logger)
		}
	}
	if d.ListenerFactory == nil {
		d.ListenerFactory = net.Listen
	}
	return d
}

func openDatabase(ctx context.Context, cfg store.PoolConfig, logger *slog.Logger) (Database, error) {
	pool, err := store.OpenPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

func newMigrator(databaseURL string) (Migrator, error) {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return nil, err
	}
	return m, nil
}
