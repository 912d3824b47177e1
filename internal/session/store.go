// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import (
	"context"
	"sync"
	"time"
)

// Store persists session payloads by id.
//
// Find must never return a session whose expiry has passed.
type Store interface {
	Find(ctx context.Context, id string) (payload []byte, expiry time.Time, found bool, err error)
	Commit(ctx context.Context, id string, payload []byte, expiry time.Time) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore is a Store held in process memory. Sessions do not survive a
// restart; it backs tests and local runs without a database.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	payload []byte
	expiry  time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem), now: time.Now}
}

// Find returns the payload stored under id if it has not expired.
func (m *MemoryStore) Find(_ context.Context, id string) ([]byte, time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok || !m.now().Before(item.expiry) {
		return nil, time.Time{}, false, nil
	}
	return append([]byte(nil), item.payload...), item.expiry, true, nil
}

// Commit inserts or replaces the payload stored under id.
func (m *MemoryStore) Commit(_ context.Context, id string, payload []byte, expiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id] = memoryItem{payload: append([]byte(nil), payload...), expiry: expiry}
	return nil
}

// Delete removes id. Deleting a missing id is not an error.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// DeleteExpired removes every expired session and returns how many went.
func (m *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var n int64
	for id, item := range m.items {
		if !now.Before(item.expiry) {
			delete(m.items, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// IDs returns the stored session ids.
func (m *MemoryStore) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.items))
	for id := range m.items {
		ids = append(ids, id)
	}
	return ids
}

// SetClock replaces the store's time source.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)
