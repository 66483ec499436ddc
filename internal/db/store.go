package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/backlogd/backlogd/internal/db/driver"
)

// TxRunner provides a transactional execution interface.
// This allows operations to run within a transaction context,
// ensuring atomicity of multi-row mutations.
type TxRunner interface {
	// RunInTx executes the given function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	RunInTx(ctx context.Context, fn func(tx *TxOps) error) error
}

// TxOps provides database operations within a transaction.
// The context is captured when the transaction begins and used for all
// operations, enabling cancellation and timeout propagation.
type TxOps struct {
	tx  driver.Tx
	ctx context.Context
}

// Exec executes a query within the transaction.
func (t *TxOps) Exec(query string, args ...any) (sql.Result, error) {
	return t.tx.Exec(t.ctx, query, args...)
}

// Query executes a query that returns rows within the transaction.
func (t *TxOps) Query(query string, args ...any) (*sql.Rows, error) {
	return t.tx.Query(t.ctx, query, args...)
}

// QueryRow executes a query that returns at most one row within the transaction.
func (t *TxOps) QueryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRow(t.ctx, query, args...)
}

// Context returns the context associated with this transaction.
func (t *TxOps) Context() context.Context {
	return t.ctx
}

// Store provides operations on the backlogd database.
type Store struct {
	*DB
}

// OpenStore opens the store database at the given path using SQLite.
func OpenStore(path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate("project"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	return &Store{DB: db}, nil
}

// OpenStoreInMemory opens an in-memory store for testing.
func OpenStoreInMemory() (*Store, error) {
	db, err := OpenInMemory()
	if err != nil {
		return nil, err
	}

	if err := db.Migrate("project"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	return &Store{DB: db}, nil
}

// OpenStoreWithDialect opens the store with a specific dialect.
func OpenStoreWithDialect(dsn string, dialect driver.Dialect) (*Store, error) {
	db, err := OpenWithDialect(dsn, dialect)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate("project"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	return &Store{DB: db}, nil
}

// RunInTx executes the given function within a database transaction.
// If fn returns an error, the transaction is rolled back.
// If fn returns nil, the transaction is committed.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *TxOps) error) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txOps := &TxOps{
		tx:  tx,
		ctx: ctx,
	}

	if err := fn(txOps); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Ensure Store implements TxRunner
var _ TxRunner = (*Store)(nil)

// executor is the common query surface shared by direct store access and
// transactions. Record helpers are written once against it.
type executor interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// storeOps binds a context to the store so it satisfies executor.
type storeOps struct {
	db  *DB
	ctx context.Context
}

func (o storeOps) Exec(query string, args ...any) (sql.Result, error) {
	return o.db.ExecContext(o.ctx, query, args...)
}

func (o storeOps) Query(query string, args ...any) (*sql.Rows, error) {
	return o.db.QueryContext(o.ctx, query, args...)
}

func (o storeOps) QueryRow(query string, args ...any) *sql.Row {
	return o.db.QueryRowContext(o.ctx, query, args...)
}

func (s *Store) ops(ctx context.Context) storeOps {
	return storeOps{db: s.DB, ctx: ctx}
}
