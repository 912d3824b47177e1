// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// RegistrationService creates, lists and deletes user accounts.
type RegistrationService struct {
	users  UserRepository
	hasher PasswordHasher
	logger *slog.Logger
}

// NewRegistrationService creates a RegistrationService.
func NewRegistrationService(users UserRepository, hasher PasswordHasher, logger *slog.Logger) (*RegistrationService, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	return &RegistrationService{users: users, hasher: hasher, logger: logger}, nil
}

// Register validates the input and stores a new user.
//
// The email pre-check and the insert are not one transaction. Two concurrent
// registrations may both pass the pre-check; the unique index on the users
// table rejects the second insert and the repository reports it as
// ErrDuplicateEmail, so both paths surface the same error.
func (s *RegistrationService) Register(ctx context.Context, input RegistrationInput) (_ *UserPublic, err error) {
	ctx, span := tracer.Start(ctx, "auth.register")
	defer func() { endSpan(span, err) }()

	in := input.Normalize()
	if err := in.Validate(); err != nil {
		return nil, oops.Code(CodeValidation).Wrap(err)
	}

	exists, err := s.users.EmailExists(ctx, in.Email)
	if err != nil {
		return nil, oops.Code("REGISTRATION_FAILED").
			With("operation", "check email").
			Wrap(err)
	}
	if exists {
		return nil, oops.Code(CodeDuplicateEmail).
			With("email", in.Email).
			Wrap(ErrDuplicateEmail)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("REGISTRATION_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user := &User{
		Name:         in.Name,
		Phone:        in.Phone,
		Address:      in.Address,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			s.logger.InfoContext(ctx, "registration lost email race", "email", in.Email)
			return nil, oops.Code(CodeDuplicateEmail).
				With("email", in.Email).
				Wrap(err)
		}
		return nil, oops.Code("REGISTRATION_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	pub := user.Public()
	return &pub, nil
}

// List returns every registered user, newest first.
func (s *RegistrationService) List(ctx context.Context) ([]UserPublic, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").
			With("operation", "list users").
			Wrap(err)
	}
	return users, nil
}

// Delete removes a user by id. Sessions already held by that user are left
// alone; they stop resolving to a user on the next CurrentUser lookup.
func (s *RegistrationService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return oops.Code(CodeUserNotFound).
			With("user_id", id).
			Wrap(ErrNotFound)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeUserNotFound).
				With("user_id", id).
				Wrap(err)
		}
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("user_id", id).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "user deleted", "user_id", id)
	return nil
}
