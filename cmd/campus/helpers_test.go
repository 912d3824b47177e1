// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/randiU/cse340-practice-umphrey/internal/observability"
	"github.com/randiU/cse340-practice-umphrey/internal/store"
)

const testDSN = "postgres://campus:pw@localhost:5432/campus?sslmode=disable"

// devArgs select development mode with an unverified local database.
var devArgs = []string{"--env", "development", "--database-url", testDSN, "--allow-insecure-tls"}

var (
	createSessionsSQL = regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS sessions`)
	createIndexSQL    = regexp.QuoteMeta(`CREATE INDEX IF NOT EXISTS sessions_expire_idx`)
)

// fakeMigrator implements Migrator for testing.
type fakeMigrator struct {
	calls   []string
	err     error
	version uint
	dirty   bool
	status  store.Status
	forced  int
	closed  bool
}

func (m *fakeMigrator) record(call string) error {
	m.calls = append(m.calls, call)
	return m.err
}

func (m *fakeMigrator) Up() error   { return m.record("up") }
func (m *fakeMigrator) Down() error { return m.record("down") }

func (m *fakeMigrator) Steps(n int) error {
	if n == -1 {
		return m.record("step-down")
	}
	return m.record("steps")
}

func (m *fakeMigrator) Version() (uint, bool, error) {
	return m.version, m.dirty, nil
}

func (m *fakeMigrator) Force(version int) error {
	m.forced = version
	return m.record("force")
}

func (m *fakeMigrator) Status() (store.Status, error) {
	if err := m.record("status"); err != nil {
		return store.Status{}, err
	}
	return m.status, nil
}

func (m *fakeMigrator) Close() error {
	m.closed = true
	return nil
}

// fakeObservability implements ObservabilityServer for testing.
type fakeObservability struct {
	metrics  *observability.Metrics
	startErr error
	errCh    chan error
	started  bool
	stopped  bool
}

func newFakeObservability() *fakeObservability {
	return &fakeObservability{
		metrics: observability.NewMetrics(prometheus.NewRegistry()),
		errCh:   make(chan error, 1),
	}
}

func (o *fakeObservability) Start() (<-chan error, error) {
	if o.startErr != nil {
		return nil, o.startErr
	}
	o.started = true
	return o.errCh, nil
}

func (o *fakeObservability) Stop(context.Context) error {
	o.stopped = true
	return nil
}

func (o *fakeObservability) Metrics() *observability.Metrics {
	return o.metrics
}

func newMockDB(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return mock
}

func expectSessionSchema(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec(createSessionsSQL).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(createIndexSQL).WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))
}

// mockDatabase returns a DatabaseFactory that hands out mock.
func mockDatabase(mock pgxmock.PgxPoolIface) func(context.Context, store.PoolConfig, *slog.Logger) (Database, error) {
	return func(context.Context, store.PoolConfig, *slog.Logger) (Database, error) {
		return mock, nil
	}
}

// execute runs the CLI with args and returns what it printed.
func execute(t *testing.T, deps Deps, args ...string) (string, error) {
	t.Helper()
	configFile = ""

	cmd := newRootCmd(deps)
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func withDevArgs(args ...string) []string {
	return append(args, devArgs...)
}
