// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"
)

// User is a registered account. PasswordHash is never the plaintext.
type User struct {
	ID           int64
	Name         string
	Phone        string
	Address      string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// UserPublic is the projection of a User that is safe to render or log.
type UserPublic struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Public returns the user without the password hash.
func (u *User) Public() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Name:      u.Name,
		Phone:     u.Phone,
		Address:   u.Address,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create inserts a user and fills in ID and CreatedAt.
	// Returns ErrDuplicateEmail if the email is already taken.
	Create(ctx context.Context, user *User) error

	// EmailExists reports whether an account uses the email (case-insensitive).
	EmailExists(ctx context.Context, email string) (bool, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*User, error)

	// List returns all users, newest first.
	List(ctx context.Context) ([]UserPublic, error)

	// Delete removes a user. Returns ErrNotFound if no row was removed.
	Delete(ctx context.Context, id int64) error
}
