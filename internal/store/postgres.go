// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store opens the PostgreSQL connection pool and manages the schema.
package store

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ErrInsecureTLS is returned when the DSN does not verify the server
// certificate and the configuration does not permit that.
var ErrInsecureTLS = errors.New("database connection must use TLS with server verification")

// PoolConfig configures OpenPool.
type PoolConfig struct {
	DSN string

	// Development relaxes nothing by itself; it only makes AllowInsecureTLS
	// legal.
	Development      bool
	AllowInsecureTLS bool

	MaxConns int32

	// ConnectAttempts is the number of pings tried before giving up.
	ConnectAttempts uint64
	ConnectBackoff  time.Duration
}

// OpenPool parses the DSN, enforces the TLS policy and returns a pool that
// has answered a ping. Pings are retried with exponential backoff so the
// server can start before the database is ready.
func OpenPool(ctx context.Context, cfg PoolConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		// The DSN may carry a password, so it is not attached to the error.
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse dsn").Wrap(err)
	}
	if err := CheckTLS(&poolCfg.ConnConfig.Config, cfg, logger); err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	attempts := cfg.ConnectAttempts
	if attempts == 0 {
		attempts = 1
	}
	backoff := cfg.ConnectBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	b := retry.WithMaxRetries(attempts-1, retry.WithCappedDuration(10*time.Second, retry.NewExponential(backoff)))
	attempt := 0
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := pool.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "database not ready",
				"attempt", attempt,
				"max_attempts", attempts,
				"error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping").
			With("attempts", attempt).
			Wrap(err)
	}

	logger.InfoContext(ctx, "database connected",
		"host", poolCfg.ConnConfig.Host,
		"database", poolCfg.ConnConfig.Database,
		"tls_verified", verifiesServer(&poolCfg.ConnConfig.Config))
	return pool, nil
}

// CheckDSN applies the TLS policy to a DSN that is not opened through
// OpenPool, such as the one handed to the migrator.
func CheckDSN(cfg PoolConfig, logger *slog.Logger) error {
	conn, err := pgconn.ParseConfig(cfg.DSN)
	if err != nil {
		return oops.Code("DB_CONFIG_INVALID").With("operation", "parse dsn").Wrap(err)
	}
	return CheckTLS(conn, cfg, logger)
}

// CheckTLS enforces the database transport policy: outside development the
// connection must use TLS and verify the server (sslmode=verify-ca or
// verify-full). In development AllowInsecureTLS lifts the requirement, and
// doing so is logged at WARN.
func CheckTLS(conn *pgconn.Config, cfg PoolConfig, logger *slog.Logger) error {
	if cfg.AllowInsecureTLS && !cfg.Development {
		return oops.Code("DB_TLS_POLICY").
			With("allow_insecure_tls", true).
			Errorf("allow_insecure_tls is only permitted in development")
	}
	if verifiesServer(conn) {
		return nil
	}
	if cfg.AllowInsecureTLS {
		logger.Warn("database TLS verification disabled for development",
			"host", conn.Host,
			"tls", conn.TLSConfig != nil)
		return nil
	}
	return oops.Code("DB_TLS_POLICY").
		With("host", conn.Host).
		Hint("use sslmode=verify-full or sslmode=verify-ca").
		Wrap(ErrInsecureTLS)
}

// verifiesServer reports whether every connection attempt pgconn will make
// uses TLS and checks the server certificate. sslmode=verify-ca skips the
// hostname check but installs its own chain verification.
func verifiesServer(conn *pgconn.Config) bool {
	if !verified(conn.TLSConfig) {
		return false
	}
	for _, fb := range conn.Fallbacks {
		if !verified(fb.TLSConfig) {
			return false
		}
	}
	return true
}

func verified(c *tls.Config) bool {
	if c == nil {
		return false
	}
	return !c.InsecureSkipVerify || c.VerifyPeerCertificate != nil
}
