// Package lock provides per-backlog mutual exclusion.
//
// Every status mutation and the finish workflow must hold the backlog's lock
// for their full duration: without it, two concurrent finishes can read the
// same unfinished-task snapshot and the second commit silently operates on a
// stale set.
package lock

import (
	"sort"
	"sync"
)

// Keyed serializes work per key. Locks are created on demand and removed
// when the last holder releases, so the map does not grow with dead keys.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyed creates an empty keyed lock set.
func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*keyLock)}
}

// Acquire blocks until the lock for key is held and returns a release
// function. The release function must be called exactly once.
func (k *Keyed) Acquire(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			k.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(k.locks, key)
			}
			k.mu.Unlock()
		})
	}
}

// AcquireMany acquires several keys in sorted order so two callers locking
// overlapping sets cannot deadlock. Duplicate keys are collapsed.
func (k *Keyed) AcquireMany(keys ...string) func() {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if !seen[key] {
			seen[key] = true
			uniq = append(uniq, key)
		}
	}
	sort.Strings(uniq)

	releases := make([]func(), 0, len(uniq))
	for _, key := range uniq {
		releases = append(releases, k.Acquire(key))
	}

	return func() {
		// Release in reverse acquisition order
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
}
