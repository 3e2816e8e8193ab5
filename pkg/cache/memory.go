package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is a process-local backend. Expired entries are dropped when read
// and pruned every pruneEvery writes.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	now        func() time.Time
	writes     int
	pruneEvery int
}

// NewMemoryStore creates an empty in-process backend
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]memoryEntry),
		now:        time.Now,
		pruneEvery: 256,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		m.mu.Lock()
		if current, ok := m.entries[key]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry
	m.writes++
	if m.writes%m.pruneEvery == 0 {
		m.pruneLocked()
	}
	return nil
}

// Len returns the number of stored entries, including expired ones not yet pruned
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) pruneLocked() {
	now := m.now()
	for key, entry := range m.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
}

// NoopStore disables caching
type NoopStore struct{}

func (NoopStore) Get(context.Context, string) (string, bool) { return "", false }
func (NoopStore) Put(context.Context, string, string, time.Duration) {}
