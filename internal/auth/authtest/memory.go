// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package authtest provides in-memory implementations of auth interfaces for tests.
package authtest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/randiU/cse340-practice-umphrey/internal/auth"
)

// MemoryUserRepository is an auth.UserRepository backed by a map. Like the
// unique index in PostgreSQL, it rejects a second user with the same
// lower-cased email.
type MemoryUserRepository struct {
	mu     sync.Mutex
	users  map[int64]auth.User
	nextID int64
	err    error
	now    func() time.Time
}

// NewMemoryUserRepository creates an empty repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int64]auth.User),
		now:   time.Now,
	}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (r *MemoryUserRepository) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Len returns the number of stored users.
func (r *MemoryUserRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// Create stores a copy of user and assigns its ID and CreatedAt.
func (r *MemoryUserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return auth.ErrDuplicateEmail
		}
	}
	r.nextID++
	user.ID = r.nextID
	// Keep listings strictly ordered even when the clock does not move.
	user.CreatedAt = r.now().Add(time.Duration(r.nextID) * time.Microsecond)
	r.users[user.ID] = *user
	return nil
}

// EmailExists reports whether the email is taken (case-insensitive).
func (r *MemoryUserRepository) EmailExists(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			found := u
			return &found, nil
		}
	}
	return nil, auth.ErrNotFound
}

// GetByID retrieves a user by ID.
func (r *MemoryUserRepository) GetByID(_ context.Context, id int64) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &u, nil
}

// List returns all users, newest first.
func (r *MemoryUserRepository) List(_ context.Context) ([]auth.UserPublic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]auth.UserPublic, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u.Public())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a user.
func (r *MemoryUserRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.users[id]; !ok {
		return auth.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*MemoryUserRepository)(nil)

// Session is an auth.SessionState that records what was done to it.
type Session struct {
	Values    map[string]any
	Renewals  int
	Destroyed bool
	RenewErr  error
}

// NewSession creates an empty anonymous session.
func NewSession() *Session {
	return &Session{Values: make(map[string]any)}
}

// GetInt64 returns the int64 stored under key.
func (s *Session) GetInt64(key string) (int64, bool) {
	v, ok := s.Values[key].(int64)
	return v, ok
}

// Put stores value under key.
func (s *Session) Put(key string, value any) {
	s.Values[key] = value
}

// Remove deletes key.
func (s *Session) Remove(key string) {
	delete(s.Values, key)
}

// RenewID counts the renewal or returns RenewErr.
func (s *Session) RenewID() error {
	if s.RenewErr != nil {
		return s.RenewErr
	}
	s.Renewals++
	return nil
}

// Destroy clears the payload and marks the session destroyed.
func (s *Session) Destroy() {
	s.Values = make(map[string]any)
	s.Destroyed = true
}

// Compile-time interface check.
var _ auth.SessionState = (*Session)(nil)
