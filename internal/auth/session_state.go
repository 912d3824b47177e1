// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

// SessionUserIDKey is the session payload key holding the authenticated user id.
// Its presence is the only authentication signal.
const SessionUserIDKey = "userId"

// SessionState is the request-scoped working copy of a session. The session
// layer flushes it to the store after the handler returns; services only
// mutate it.
type SessionState interface {
	// GetInt64 returns the integer stored under key.
	GetInt64(key string) (int64, bool)

	// Put stores a value under key.
	Put(key string, value any)

	// Remove deletes key from the payload.
	Remove(key string)

	// RenewID replaces the session id with a fresh random one, keeping the
	// payload. The old id is destroyed when the session is committed.
	RenewID() error

	// Destroy discards the session: its row is deleted and the cookie expired.
	Destroy()
}

// AuthenticatedUserID returns the user id recorded by a successful login.
// A nil session is anonymous.
func AuthenticatedUserID(sess SessionState) (int64, bool) {
	if sess == nil {
		return 0, false
	}
	id, ok := sess.GetInt64(SessionUserIDKey)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}
