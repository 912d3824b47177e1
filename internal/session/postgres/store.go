// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres stores sessions in a PostgreSQL table so they survive
// server restarts.
package postgres

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/randiU/cse340-practice-umphrey/internal/session"
	"github.com/randiU/cse340-practice-umphrey/pkg/errutil"
)

// Pool is the subset of *pgxpool.Pool used by Store.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Defaults for Options.
const (
	DefaultTimeout         = 5 * time.Second
	DefaultCleanupInterval = 15 * time.Minute
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS sessions (
		sid    TEXT        PRIMARY KEY,
		sess   JSONB       NOT NULL,
		expire TIMESTAMPTZ NOT NULL
	)`

const indexSQL = `CREATE INDEX IF NOT EXISTS sessions_expire_idx ON sessions (expire)`

// Options configures a Store.
type Options struct {
	// Timeout bounds every query.
	Timeout time.Duration
	// OnSweep, when set, is called with the number of rows each cleanup
	// pass removed.
	OnSweep func(removed int64)
}

// Store implements session.Store on the sessions table.
type Store struct {
	pool    Pool
	timeout time.Duration
	onSweep func(int64)
	logger  *slog.Logger
}

// NewStore creates a Store and makes sure the sessions table exists.
func NewStore(ctx context.Context, pool Pool, opts Options, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, oops.Code("SESSION_STORE_INVALID_CONFIG").Errorf("pool is required")
	}
	if logger == nil {
		return nil, oops.Code("SESSION_STORE_INVALID_CONFIG").Errorf("logger is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	s := &Store{pool: pool, timeout: opts.Timeout, onSweep: opts.OnSweep, logger: logger}
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the sessions table and its expiry index if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for _, stmt := range []string{schemaSQL, indexSQL} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return oops.Code("SESSION_SCHEMA_FAILED").
				With("operation", "create sessions table").
				Wrap(session.StoreError(ctx, err))
		}
	}
	return nil
}

// Find returns the payload and expiry of an unexpired session.
func (s *Store) Find(ctx context.Context, id string) ([]byte, time.Time, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var payload []byte
	var expiry time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT sess, expire FROM sessions WHERE sid = $1 AND expire > NOW()
	`, id).Scan(&payload, &expiry)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, oops.Code("SESSION_FIND_FAILED").
			With("operation", "select session").
			Wrap(session.StoreError(ctx, err))
	}
	return payload, expiry, true, nil
}

// Commit inserts the session or replaces its payload and expiry.
func (s *Store) Commit(ctx context.Context, id string, payload []byte, expiry time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (sid, sess, expire)
		VALUES ($1, $2, $3)
		ON CONFLICT (sid) DO UPDATE SET sess = EXCLUDED.sess, expire = EXCLUDED.expire
	`, id, payload, expiry)
	if err != nil {
		return oops.Code("SESSION_COMMIT_FAILED").
			With("operation", "upsert session").
			Wrap(session.StoreError(ctx, err))
	}
	return nil
}

// Delete removes a session. A missing row is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE sid = $1`, id); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(session.StoreError(ctx, err))
	}
	return nil
}

// DeleteExpired removes every expired session and returns the count.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expire <= NOW()`)
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").
			With("operation", "delete expired sessions").
			Wrap(session.StoreError(ctx, err))
	}
	return result.RowsAffected(), nil
}

// StartCleanup sweeps expired sessions every interval until the returned
// stop function is called. stop waits for an in-flight sweep to finish and
// may be called more than once.
func (s *Store) StartCleanup(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}

func (s *Store) sweep(ctx context.Context) {
	n, err := s.DeleteExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			errutil.LogErrorContext(ctx, s.logger, "session sweep failed", err)
		}
		return
	}
	if n > 0 {
		s.logger.DebugContext(ctx, "expired sessions removed", "count", n)
	}
	if s.onSweep != nil {
		s.onSweep(n)
	}
}

// Compile-time interface check.
var _ session.Store = (*Store)(nil)
