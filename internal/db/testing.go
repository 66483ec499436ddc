// Package db provides test utilities for database operations.
//
// Tests needing database access should use these helpers: in-memory
// databases are much faster than file-based ones, and cleanup is handled
// via t.Cleanup().
package db

import (
	"testing"
)

// NewTestStore creates an in-memory store for testing.
// Schema migrations are applied automatically and the database is closed
// when the test completes.
func NewTestStore(t testing.TB) *Store {
	t.Helper()

	store, err := OpenStoreInMemory()
	if err != nil {
		t.Fatalf("create test store: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}
