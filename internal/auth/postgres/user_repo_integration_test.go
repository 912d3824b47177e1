// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/randiU/cse340-practice-umphrey/internal/auth"
	"github.com/randiU/cse340-practice-umphrey/internal/auth/postgres"
)

func cleanUsers(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		_, _ = testPool.Exec(context.Background(), `TRUNCATE users`)
	})
}

func newUser(email string) *auth.User {
	return &auth.User{
		Name:         "Ada Lovelace",
		Phone:        "+12025550123",
		Address:      "1 Analytical Engine Way",
		Email:        email,
		PasswordHash: "$2a$10$placeholder",
	}
}

func TestUserRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool, 5*time.Second)
	cleanUsers(t)

	u := newUser("ada@example.com")
	require.NoError(t, repo.Create(ctx, u))
	assert.Positive(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	t.Run("lookup ignores case", func(t *testing.T) {
		got, err := repo.GetByEmail(ctx, "ADA@Example.COM")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		exists, err := repo.EmailExists(ctx, "Ada@example.com")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("unique index rejects a case variant", func(t *testing.T) {
		err := repo.Create(ctx, newUser("ADA@EXAMPLE.COM"))
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	})

	t.Run("list and delete", func(t *testing.T) {
		second := newUser("charles@example.com")
		require.NoError(t, repo.Create(ctx, second))

		users, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, second.ID, users[0].ID)

		require.NoError(t, repo.Delete(ctx, second.ID))
		_, err = repo.GetByID(ctx, second.ID)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, second.ID), auth.ErrNotFound)
	})
}

func TestRegistration_ConcurrentSameEmail(t *testing.T) {
	ctx := context.Background()
	cleanUsers(t)

	repo := postgres.NewUserRepository(testPool, 5*time.Second)
	svc, err := auth.NewRegistrationService(repo, auth.NewBcryptHasher(bcrypt.MinCost),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	input := auth.RegistrationInput{
		Name:            "Ada Lovelace",
		Phone:           "+12025550123",
		Address:         "1 Analytical Engine Way",
		Email:           "race@example.com",
		EmailConfirm:    "race@example.com",
		Password:        "Sieve#2024",
		PasswordConfirm: "Sieve#2024",
	}

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(ctx, input)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	}
	assert.Equal(t, 1, ok)

	var count int
	require.NoError(t, testPool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE LOWER(email) = 'race@example.com'`).Scan(&count))
	assert.Equal(t, 1, count)
}
