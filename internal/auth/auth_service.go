// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
)

// Grant describes a successful login.
type Grant struct {
	UserID int64
	Name   string
	Email  string
}

// LoginService authenticates users against the credential store and binds
// the result to the caller's session.
type LoginService struct {
	users  UserRepository
	hasher PasswordHasher
	logger *slog.Logger

	// dummyHash is verified when the email is unknown so both failure paths
	// cost one full hash verification.
	dummyHash string
}

// NewLoginService creates a LoginService. It hashes a random throwaway
// password with the given hasher so the dummy hash has the same cost as
// stored hashes.
func NewLoginService(users UserRepository, hasher PasswordHasher, logger *slog.Logger) (*LoginService, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}

	throwaway := make([]byte, 24)
	if _, err := rand.Read(throwaway); err != nil {
		return nil, oops.Code("AUTH_DUMMY_HASH_FAILED").Wrap(err)
	}
	dummy, err := hasher.Hash(hex.EncodeToString(throwaway))
	if err != nil {
		return nil, oops.Code("AUTH_DUMMY_HASH_FAILED").Wrap(err)
	}

	return &LoginService{
		users:     users,
		hasher:    hasher,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Wrap(ErrInvalidCredentials)
}

// Login verifies the email and password and, on success, rotates the session
// id and records the user id in the session.
//
// An unknown email and a wrong password return the same error after the same
// amount of hashing work.
func (s *LoginService) Login(ctx context.Context, sess SessionState, email, password string) (grant *Grant, err error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer func() { endSpan(span, err) }()

	if sess == nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").Errorf("session is required")
	}
	email = NormalizeEmail(email)

	user, lookupErr := s.users.GetByEmail(ctx, email)

	var targetHash string
	var userExists bool

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
		targetHash = s.dummyHash
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, invalidCredentials()
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID).
			Wrap(verifyErr)
	}

	if !userExists || !valid {
		s.logger.InfoContext(ctx, "login rejected")
		return nil, invalidCredentials()
	}

	// A session id seen before authentication must not carry it.
	if err := sess.RenewID(); err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "renew session id").
			Wrap(err)
	}
	sess.Put(SessionUserIDKey, user.ID)
	span.SetAttributes(attribute.Int64("user.id", user.ID))

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return &Grant{UserID: user.ID, Name: user.Name, Email: user.Email}, nil
}

// Logout destroys the session outright rather than clearing fields, so the
// old id can never be presented again.
func (s *LoginService) Logout(ctx context.Context, sess SessionState) {
	if sess == nil {
		return
	}
	if id, ok := AuthenticatedUserID(sess); ok {
		s.logger.InfoContext(ctx, "user logged out", "user_id", id)
	}
	sess.Remove(SessionUserIDKey)
	sess.Destroy()
}

// CurrentUser resolves the user recorded in the session.
// Returns ErrNotFound when the session is anonymous or the user was deleted.
func (s *LoginService) CurrentUser(ctx context.Context, sess SessionState) (*UserPublic, error) {
	id, ok := AuthenticatedUserID(sess)
	if !ok {
		return nil, oops.Code(CodeUserNotFound).Wrap(ErrNotFound)
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeUserNotFound).With("user_id", id).Wrap(err)
		}
		return nil, oops.Code("AUTH_CURRENT_USER_FAILED").
			With("operation", "get user by id").
			With("user_id", id).
			Wrap(err)
	}
	pub := user.Public()
	return &pub, nil
}
