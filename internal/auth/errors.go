// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors. Services and repositories wrap these in oops errors carrying
// a stable code, so callers classify with errors.Is and log with the code.
var (
	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when a registration collides with an
	// existing email, whether caught by the pre-check or by the unique index.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials is the single failure returned by Login for both an
	// unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrStorage marks a failure of the backing store, including timeouts.
	ErrStorage = errors.New("storage failure")
)

// Error codes attached with oops.Code.
const (
	CodeValidation         = "REGISTRATION_INVALID"
	CodeDuplicateEmail     = "REGISTRATION_DUPLICATE_EMAIL"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeUserNotFound       = "USER_NOT_FOUND"
)

// StorageError tags err as a backing store failure while keeping the original
// error (for example context.DeadlineExceeded) reachable through errors.Is.
func StorageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
