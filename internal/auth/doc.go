// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides registration, login and password hashing for the
// campus portal.
//
// # Services
//
//   - RegistrationService - validates and stores new users, lists and deletes them
//   - LoginService - verifies credentials and binds the user to a session
//
// Services are created with New*Service constructors that validate dependencies.
//
// # Sessions
//
// The package does not persist sessions. It mutates a SessionState supplied by
// the HTTP session layer, which commits the working copy once the handler
// returns. A session is authenticated iff it carries SessionUserIDKey.
package auth
