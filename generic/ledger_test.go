package generic_test

import (
	"context"
	"testing"
	"time"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/generic/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newLedger() generic.Ledger {
	return generic.NewLedger(store.NewMemory())
}

func days(n float64) generic.Amount {
	return generic.NewAmount(n, generic.UnitDays)
}

func adjustmentTx(entity generic.EntityID, account generic.AccountID, at generic.TimePoint, n float64, key string) generic.Transaction {
	return generic.Transaction{
		ID:             generic.TransactionID(key),
		EntityID:       entity,
		AccountID:      account,
		EffectiveAt:    at,
		Delta:          days(n),
		Type:           generic.TxAdjustment,
		IdempotencyKey: key,
	}
}

// =============================================================================
// LEDGER TESTS
// =============================================================================

func TestLedger_Idempotency_DuplicateKeyRejected(t *testing.T) {
	// GIVEN: An adjustment with idempotency key "carry-2025"
	// WHEN: Appending the same key again
	// THEN: Second append fails with ErrDuplicateIdempotencyKey
	ctx := context.Background()
	ledger := newLedger()

	tx := adjustmentTx("emp-1", "annual", generic.NewTimePoint(2025, time.January, 1), 5, "carry-2025")

	if err := ledger.Append(ctx, tx); err != nil {
		t.Fatalf("first append should succeed: %v", err)
	}
	if err := ledger.Append(ctx, tx); err != generic.ErrDuplicateIdempotencyKey {
		t.Errorf("expected ErrDuplicateIdempotencyKey, got: %v", err)
	}

	txs, _ := ledger.Transactions(ctx, "emp-1", "annual")
	if len(txs) != 1 {
		t.Errorf("expected 1 transaction, got %d", len(txs))
	}
}

func TestLedger_Ordering_TransactionsChronological(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger()

	_ = ledger.Append(ctx, adjustmentTx("emp-1", "annual", generic.NewTimePoint(2025, time.March, 1), 1, "mar"))
	_ = ledger.Append(ctx, adjustmentTx("emp-1", "annual", generic.NewTimePoint(2025, time.January, 1), 1, "jan"))
	_ = ledger.Append(ctx, adjustmentTx("emp-1", "annual", generic.NewTimePoint(2025, time.February, 1), 1, "feb"))

	txs, _ := ledger.Transactions(ctx, "emp-1", "annual")
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	for i, want := range []time.Month{time.January, time.February, time.March} {
		if txs[i].EffectiveAt.Month() != want {
			t.Errorf("tx %d: expected %s, got %s", i, want, txs[i].EffectiveAt.Month())
		}
	}
}

func TestLedger_SumUntil_IgnoresLaterTransactions(t *testing.T) {
	// GIVEN: +5 on Jan 1, -2 on Mar 1, +1 on Jun 1
	// WHEN: Summing up to Mar 1
	// THEN: 3 (inclusive of Mar 1, excluding June)
	ctx := context.Background()
	ledger := newLedger()

	_ = ledger.Append(ctx, adjustmentTx("emp-1", "annual", generic.NewTimePoint(2025, time.January, 1), 5, "a"))
	_ = ledger.Append(ctx, adjustmentTx("emp-1", "annual", generic.NewTimePoint(2025, time.March, 1), -2, "b"))
	_ = ledger.Append(ctx, adjustmentTx("emp-1", "annual", generic.NewTimePoint(2025, time.June, 1), 1, "c"))

	txs, err := ledger.Transactions(ctx, "emp-1", "annual")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bal := generic.SumUntil(txs, generic.NewTimePoint(2025, time.March, 1)); !bal.Equal(days(3)) {
		t.Errorf("expected 3 days, got %s", bal)
	}
}

func TestLedger_AccountsAreIsolated(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger()

	_ = ledger.Append(ctx, adjustmentTx("emp-1", "annual", generic.NewTimePoint(2025, time.January, 1), 5, "a"))
	_ = ledger.Append(ctx, adjustmentTx("emp-1", "sick", generic.NewTimePoint(2025, time.January, 1), 2, "b"))
	_ = ledger.Append(ctx, adjustmentTx("emp-2", "annual", generic.NewTimePoint(2025, time.January, 1), 7, "c"))

	txs, _ := ledger.Transactions(ctx, "emp-1", "annual")
	if bal := generic.SumUntil(txs, generic.NewTimePoint(2025, time.December, 31)); !bal.Equal(days(5)) {
		t.Errorf("expected 5 days, got %s", bal)
	}
}

func TestLedger_TransactionsInRange_IsInclusive(t *testing.T) {
	ctx := context.Background()
	ledger := newLedger()

	_ = ledger.Append(ctx, adjustmentTx("emp-1", "annual", generic.NewTimePoint(2025, time.January, 1), 5, "a"))
	_ = ledger.Append(ctx, adjustmentTx("emp-1", "annual", generic.NewTimePoint(2025, time.March, 1), -2, "b"))
	_ = ledger.Append(ctx, adjustmentTx("emp-1", "annual", generic.NewTimePoint(2025, time.June, 1), 1, "c"))

	txs, err := ledger.TransactionsInRange(ctx, "emp-1", "annual",
		generic.NewTimePoint(2025, time.January, 1), generic.NewTimePoint(2025, time.March, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[1].IdempotencyKey != "b" {
		t.Errorf("expected Mar 1 adjustment last, got %q", txs[1].IdempotencyKey)
	}
}

func TestMemory_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_ = mem.Append(ctx, adjustmentTx("emp-1", "annual", generic.NewTimePoint(2025, time.January, 1), 5, "a"))

	snap := mem.Snapshot()
	_ = mem.Append(ctx, adjustmentTx("emp-1", "annual", generic.NewTimePoint(2025, time.January, 2), 1, "b"))
	mem.Restore(snap)

	txs, _ := mem.Load(ctx, "emp-1", "annual")
	if len(txs) != 1 {
		t.Errorf("expected restore to drop the second tx, got %d", len(txs))
	}
	exists, _ := mem.Exists(ctx, "b")
	if exists {
		t.Error("idempotency key of rolled back tx should be released")
	}
}
