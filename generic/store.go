/*
store.go - Persistence interface for ledger transactions

PURPOSE:
  Defines the interface between the ledger and the database. Different
  implementations use SQLite, PostgreSQL, or in-memory storage.

APPEND-ONLY CONTRACT:
  - Append(): Single transaction write
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  Every write may carry an idempotency key. If the key already exists,
  the write is rejected with ErrDuplicateIdempotencyKey. This prevents
  duplicate adjustments from network retries or double-clicks.

IMPLEMENTATIONS:
  - store/memory: In-memory for tests and local runs
  - store/sqlite: Default single-node store
  - store/postgres: Serializable transactions for multi-instance deployments

SEE ALSO:
  - ledger.go: Higher-level interface using Store
  - leave/store.go: Repositories for employees, policies and requests
*/
package generic

import "context"

// =============================================================================
// STORE - Interface for transaction persistence (append-only)
// =============================================================================

// Store handles persistence of transactions.
// IMPORTANT: Store is APPEND-ONLY. Corrections are made via reversal transactions.
type Store interface {
	// Append persists a transaction. Returns error if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// Load returns all transactions for entity+account, ordered by EffectiveAt.
	Load(ctx context.Context, entityID EntityID, accountID AccountID) ([]Transaction, error)

	// LoadRange returns transactions in [from, to], ordered by EffectiveAt.
	LoadRange(ctx context.Context, entityID EntityID, accountID AccountID, from, to TimePoint) ([]Transaction, error)

	// Exists checks if idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}
