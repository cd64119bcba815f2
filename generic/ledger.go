/*
ledger.go - Append-only adjustments log

PURPOSE:
  The Ledger records every manual change to a leave balance: admin
  corrections, carried-over days, reversals. Accrued entitlement is never
  stored (it is recomputed from tenure on every query), so the ledger only
  holds the deltas a human decided on. A balance is always
  entitlement + sum(ledger deltas) - consumed - pending.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

CORRECTIONS:
  A wrong adjustment is undone with a TxReversal of opposite sign. Both
  rows stay in the ledger.

SEE ALSO:
  - store.go: Low-level persistence interface
  - leave/service.go: AdjustBalance writes through the ledger
*/
package generic

import "context"

// =============================================================================
// LEDGER - Append-only transaction log
// =============================================================================

// Ledger is the source of truth for manual balance changes.
type Ledger interface {
	// Append adds a transaction. Fails if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// Transactions returns all transactions for entity+account, chronologically.
	Transactions(ctx context.Context, entityID EntityID, accountID AccountID) ([]Transaction, error)

	// TransactionsInRange returns transactions effective in [from, to].
	TransactionsInRange(ctx context.Context, entityID EntityID, accountID AccountID, from, to TimePoint) ([]Transaction, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) Transactions(ctx context.Context, entityID EntityID, accountID AccountID) ([]Transaction, error) {
	return l.Store.Load(ctx, entityID, accountID)
}

func (l *DefaultLedger) TransactionsInRange(ctx context.Context, entityID EntityID, accountID AccountID, from, to TimePoint) ([]Transaction, error) {
	return l.Store.LoadRange(ctx, entityID, accountID, from, to)
}

// SumUntil adds the deltas of transactions effective on or before at.
// txs must be ordered by EffectiveAt, as Store.Load returns them.
func SumUntil(txs []Transaction, at TimePoint) Amount {
	balance := ZeroDays
	for _, tx := range txs {
		if tx.EffectiveAt.After(at) {
			break
		}
		balance = balance.Add(tx.Delta)
	}
	return balance
}

// SumIn adds the deltas of transactions effective inside p.
func SumIn(txs []Transaction, p Period) Amount {
	balance := ZeroDays
	for _, tx := range txs {
		if p.Contains(tx.EffectiveAt) {
			balance = balance.Add(tx.Delta)
		}
	}
	return balance
}
