// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces, not on the postgres
// implementation, so the refresh engine can be tested with fakes.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SavepointManager extends Manager with partial-rollback support.
type SavepointManager interface {
	Manager

	// RunInSavepoint executes fn inside a savepoint of the enclosing
	// transaction: when fn fails, only fn's writes roll back and the
	// outer transaction stays usable. Postgres aborts the whole
	// transaction on any failed statement otherwise, so callers that
	// skip per-item errors inside a shared transaction must use this.
	// Without an enclosing transaction it behaves like RunInTransaction.
	RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transaction support.
// Use for queries that don't modify data (better performance, no locks).
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction.
	// Attempts to modify data will fail.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
