// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package session implements server-side HTTP sessions: a signed cookie
// carries an opaque id, and the payload lives in a Store.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/randiU/cse340-practice-umphrey/internal/auth"
)

// IDBytes is the number of random bytes in a session id.
const IDBytes = 32

// flashKey holds pending one-shot messages.
const flashKey = "flash"

// Status tracks what the request did to its session.
type Status int

// Session statuses.
const (
	Unmodified Status = iota
	Modified
	Destroyed
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Session is the working copy of one session for one request. Values are
// held JSON-encoded so what a handler reads back is exactly what the store
// will see.
type Session struct {
	mu sync.Mutex

	id       string
	values   map[string]json.RawMessage
	expiry   time.Time
	lifetime time.Duration
	status   Status

	// obsolete lists ids that must be removed from the store on commit.
	obsolete []string
	// err records a value that could not be encoded.
	err error
}

func newSession(lifetime time.Duration) *Session {
	return &Session{
		values:   make(map[string]json.RawMessage),
		expiry:   time.Now().Add(lifetime),
		lifetime: lifetime,
	}
}

func loadSession(id string, payload []byte, expiry time.Time, lifetime time.Duration) (*Session, error) {
	values := make(map[string]json.RawMessage)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &values); err != nil {
			return nil, oops.Code("SESSION_DECODE_FAILED").With("operation", "decode payload").Wrap(err)
		}
	}
	return &Session{id: id, values: values, expiry: expiry, lifetime: lifetime}, nil
}

// ID returns the session id, or "" for a session not yet stored.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Expiry returns the absolute expiry of the session.
func (s *Session) Expiry() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiry
}

// Status returns what has been done to the session in this request.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Get decodes the value stored under key into dst and reports whether the
// key was present and decodable.
func (s *Session) Get(key string, dst any) bool {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// GetString returns the string stored under key.
func (s *Session) GetString(key string) (string, bool) {
	var v string
	ok := s.Get(key, &v)
	return v, ok
}

// GetInt64 returns the integer stored under key.
func (s *Session) GetInt64(key string) (int64, bool) {
	var v int64
	ok := s.Get(key, &v)
	return v, ok
}

// Put stores value under key. The value must be JSON-encodable; one that is
// not fails the commit at the end of the request.
func (s *Session) Put(key string, value any) {
	raw, err := json.Marshal(value)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.err = oops.Code("SESSION_ENCODE_FAILED").With("key", key).Wrap(err)
		return
	}
	s.values[key] = raw
	s.status = Modified
}

// Remove deletes key. Removing a missing key leaves the session unmodified.
func (s *Session) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.status = Modified
}

// Keys returns the stored keys.
func (s *Session) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}

// RenewID gives the session a fresh id and a full lifetime while keeping its
// payload. The old id is deleted from the store on commit, so an id observed
// before login cannot be used after it.
func (s *Session) RenewID() error {
	id, err := newID()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id != "" {
		s.obsolete = append(s.obsolete, s.id)
	}
	s.id = id
	s.expiry = time.Now().Add(s.lifetime)
	s.status = Modified
	return nil
}

// Destroy discards the payload and deletes the session from the store on
// commit. The client's cookie is expired. Values put after Destroy start a
// new session with a new id.
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id != "" {
		s.obsolete = append(s.obsolete, s.id)
	}
	s.id = ""
	s.values = make(map[string]json.RawMessage)
	s.expiry = time.Now().Add(s.lifetime)
	s.status = Destroyed
}

// AddFlash queues a one-shot message.
func (s *Session) AddFlash(kind, message string) {
	var flashes []Flash
	s.Get(flashKey, &flashes)
	s.Put(flashKey, append(flashes, Flash{Kind: kind, Message: message}))
}

// Flashes returns and clears the queued messages.
func (s *Session) Flashes() []Flash {
	var flashes []Flash
	if !s.Get(flashKey, &flashes) {
		return nil
	}
	s.Remove(flashKey)
	return flashes
}

func (s *Session) encode() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	payload, err := json.Marshal(s.values)
	if err != nil {
		return nil, oops.Code("SESSION_ENCODE_FAILED").With("operation", "encode payload").Wrap(err)
	}
	return payload, nil
}

func newID() (string, error) {
	b := make([]byte, IDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("SESSION_ID_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", IDBytes).
			Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// Compile-time interface check.
var _ auth.SessionState = (*Session)(nil)
