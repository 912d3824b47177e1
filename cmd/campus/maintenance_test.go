// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randiU/cse340-practice-umphrey/internal/auth"
	"github.com/randiU/cse340-practice-umphrey/internal/store"
	"github.com/randiU/cse340-practice-umphrey/pkg/errutil"
)

var (
	sweepSQL      = regexp.QuoteMeta(`DELETE FROM sessions WHERE expire <= NOW()`)
	listUsersSQL  = regexp.QuoteMeta(`SELECT id, name, phone, address, email, created_at FROM users`)
	deleteUserSQL = regexp.QuoteMeta(`DELETE FROM users WHERE id = $1`)
)

func TestSessionsGC(t *testing.T) {
	mock := newMockDB(t)
	expectSessionSchema(mock)
	mock.ExpectExec(sweepSQL).WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectClose()

	out, err := execute(t, Deps{DatabaseFactory: mockDatabase(mock)}, withDevArgs("sessions", "gc")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 3 expired sessions")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionsGC_StorageFailure(t *testing.T) {
	mock := newMockDB(t)
	expectSessionSchema(mock)
	mock.ExpectExec(sweepSQL).WillReturnError(errors.New("connection reset"))

	_, err := execute(t, Deps{DatabaseFactory: mockDatabase(mock)}, withDevArgs("sessions", "gc")...)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SESSION_SWEEP_FAILED")
}

func TestMaintenance_DoesNotNeedSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	mock := newMockDB(t)
	expectSessionSchema(mock)
	mock.ExpectExec(sweepSQL).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	out, err := execute(t, Deps{DatabaseFactory: mockDatabase(mock)}, withDevArgs("sessions", "gc")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 0 expired sessions")
}

func TestMaintenance_DatabaseUnavailable(t *testing.T) {
	deps := Deps{DatabaseFactory: func(context.Context, store.PoolConfig, *slog.Logger) (Database, error) {
		return nil, errors.New("connection refused")
	}}

	_, err := execute(t, deps, withDevArgs("users", "list")...)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
}

func TestMaintenance_PassesPoolConfig(t *testing.T) {
	var got store.PoolConfig
	deps := Deps{DatabaseFactory: func(_ context.Context, cfg store.PoolConfig, _ *slog.Logger) (Database, error) {
		got = cfg
		return nil, errors.New("stop here")
	}}

	_, err := execute(t, deps, withDevArgs("users", "list")...)
	require.Error(t, err)
	assert.Equal(t, testDSN, got.DSN)
	assert.True(t, got.Development)
	assert.True(t, got.AllowInsecureTLS)
	assert.Equal(t, int32(10), got.MaxConns)
	assert.Equal(t, uint64(5), got.ConnectAttempts)
}

func TestUsersList(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC)

	mock := newMockDB(t)
	mock.ExpectQuery(listUsersSQL).WillReturnRows(
		pgxmock.NewRows([]string{"id", "name", "phone", "address", "email", "created_at"}).
			AddRow(int64(2), "Grace Hopper", "555-0102", "1 Navy Way", "grace@example.com", created).
			AddRow(int64(1), "Ada Lovelace", "555-0101", "12 St James's Sq", "ada@example.com", created.Add(-time.Hour)),
	)
	mock.ExpectClose()

	out, err := execute(t, Deps{DatabaseFactory: mockDatabase(mock)}, withDevArgs("users", "list")...)
	require.NoError(t, err)

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "grace@example.com")
	assert.Contains(t, out, "2026-03-14 09:26:00")
	assert.Less(t, strings.Index(out, "Grace Hopper"), strings.Index(out, "Ada Lovelace"), "newest first")
	assert.NotContains(t, out, "password")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersList_Empty(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectQuery(listUsersSQL).WillReturnRows(
		pgxmock.NewRows([]string{"id", "name", "phone", "address", "email", "created_at"}),
	)

	out, err := execute(t, Deps{DatabaseFactory: mockDatabase(mock)}, withDevArgs("users", "list")...)
	require.NoError(t, err)
	assert.Contains(t, out, "No registered users")
}

func TestUsersDelete(t *testing.T) {
	t.Run("existing user", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectExec(deleteUserSQL).WithArgs(int64(7)).WillReturnResult(pgxmock.NewResult("DELETE", 1))

		out, err := execute(t, Deps{DatabaseFactory: mockDatabase(mock)}, withDevArgs("users", "delete", "7")...)
		require.NoError(t, err)
		assert.Contains(t, out, "Deleted user 7")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectExec(deleteUserSQL).WithArgs(int64(7)).WillReturnResult(pgxmock.NewResult("DELETE", 0))

		_, err := execute(t, Deps{DatabaseFactory: mockDatabase(mock)}, withDevArgs("users", "delete", "7")...)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("bad id never reaches the database", func(t *testing.T) {
		called := false
		deps := Deps{DatabaseFactory: func(context.Context, store.PoolConfig, *slog.Logger) (Database, error) {
			called = true
			return nil, errors.New("unexpected")
		}}

		for _, arg := range []string{"abc", "0", "1.5"} {
			_, err := execute(t, deps, withDevArgs("users", "delete", arg)...)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "INVALID_USER_ID")
		}
		assert.False(t, called)
	})
}
