// Package cache provides the key-based response cache consumed by the
// backlog workflows. Invalidation is best-effort: failures are logged by
// callers and never affect the correctness of a committed transaction.
package cache

import (
	"fmt"
	"sync"
	"time"
)

// Invalidator is the cache surface the workflows depend on.
type Invalidator interface {
	// Put stores a value under key for the given TTL.
	Put(key string, value any, ttl time.Duration) error

	// Forget drops a single key.
	Forget(key string) error

	// ForgetMany drops a set of keys.
	ForgetMany(keys ...string) error
}

// ModelKey returns the item cache key for a single record.
func ModelKey(model, id string) string {
	return fmt.Sprintf("model:%s:%s", model, id)
}

// ModelAllKey returns the list cache key for a record type.
func ModelAllKey(model string) string {
	return fmt.Sprintf("model:%s:all", model)
}

// ProjectBacklogsKey returns the cache key for a project's backlog list.
func ProjectBacklogsKey(projectID string) string {
	return fmt.Sprintf("backlogs:project:%s", projectID)
}

// Memory is an in-process TTL cache. Entries expire lazily on read.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	value     any
	expiresAt time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry)}
}

// Put stores a value under key for the given TTL.
// A non-positive TTL stores the value without expiry.
func (m *Memory) Put(key string, value any, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = entry{value: value, expiresAt: expiresAt}
	m.mu.Unlock()
	return nil
}

// Get returns the cached value for key, if present and not expired.
func (m *Memory) Get(key string) (any, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Forget drops a single key.
func (m *Memory) Forget(key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// ForgetMany drops a set of keys.
func (m *Memory) ForgetMany(keys ...string) error {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	m.mu.Unlock()
	return nil
}

// Len returns the number of live entries, counting expired ones not yet
// evicted.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

var _ Invalidator = (*Memory)(nil)
