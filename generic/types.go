/*
Package generic provides the domain-agnostic building blocks of the leave engine.

PURPOSE:
  This package contains the quantity, time and ledger primitives that the
  leave package builds on. Nothing here knows about leave types, probation
  or policies: it only knows about day amounts, dates, periods and an
  append-only log of balance adjustments.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity of days with two-decimal rounding
  - Transaction: An immutable ledger entry recording a balance adjustment
  - Entity/Account IDs: Type-safe identifiers (account = leave type)

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only reversed
  2. Precision: Uses decimal.Decimal to avoid floating-point drift
  3. Type Safety: Strong typing for IDs prevents mixing entity/account IDs

USAGE:
  amount := generic.NewAmount(2.5, generic.UnitDays)
  tx := generic.Transaction{
      EntityID:  "emp-123",
      AccountID: "annual",
      Delta:     amount,
      Type:      generic.TxAdjustment,
  }

SEE ALSO:
  - period.go: Period arithmetic and the calendar splitter
  - ledger.go: Transaction persistence interface
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDays  Unit = "days"
	UnitHours Unit = "hours"
)

// Places is the number of decimal places every reported day count is rounded to.
const Places = 2

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

func Days(value float64) Amount                { return NewAmount(value, UnitDays) }
func DaysFromInt(value int) Amount             { return NewAmountFromInt(value, UnitDays) }
func DaysFromDecimal(d decimal.Decimal) Amount { return Amount{Value: d, Unit: UnitDays} }

// ZeroDays is the additive identity for day amounts.
var ZeroDays = Amount{Value: decimal.Zero, Unit: UnitDays}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Unit: a.Unit} }
func (a Amount) Div(s decimal.Decimal) Amount { return Amount{Value: a.Value.Div(s), Unit: a.Unit} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }
func (a Amount) Round() Amount                { return Amount{Value: a.Value.Round(Places), Unit: a.Unit} }
func (a Amount) Float64() float64             { f, _ := a.Value.Float64(); return f }
func (a Amount) String() string               { return a.Value.StringFixed(Places) }

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// ClampZero returns the amount, or zero when it is negative.
func (a Amount) ClampZero() Amount { return a.Max(a.Zero()) }

// Sum adds amounts, starting from zero days.
func Sum(amounts ...Amount) Amount {
	total := ZeroDays
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntityID string
type AccountID string
type TransactionID string

// =============================================================================
// TRANSACTION - Atomic change to an account balance
// =============================================================================

type TransactionType string

const (
	TxGrant      TransactionType = "grant"      // One-time grant (carryover, bonus days)
	TxAdjustment TransactionType = "adjustment" // Manual admin correction, either sign
	TxReversal   TransactionType = "reversal"   // Undo a previous transaction
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxGrant, TxAdjustment, TxReversal:
		return true
	}
	return false
}

type Transaction struct {
	ID             TransactionID
	EntityID       EntityID
	AccountID      AccountID
	EffectiveAt    TimePoint
	Delta          Amount
	Type           TransactionType
	ReferenceID    string
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string

	// Audit fields
	CreatedBy string
	CreatedAt TimePoint
}
