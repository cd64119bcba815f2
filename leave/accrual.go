package leave

import (
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// TENURE ACCRUAL - entitlement = annual / 365 * days served
// =============================================================================

var daysPerYear = decimal.NewFromInt(365)

// DaysServed returns whole days from join to ref, both truncated to midnight.
// The day of hire counts as 0; a reference before the join date is 0, not an error.
func DaysServed(join, ref generic.TimePoint) int {
	n := generic.DaysBetween(generic.Date(join.Time), generic.Date(ref.Time))
	if n < 0 {
		return 0
	}
	return n
}

// Accrue returns the entitlement earned from join up to ref, rounded to two places.
func Accrue(join, ref generic.TimePoint, annualDays decimal.Decimal) generic.Amount {
	return accrueDays(DaysServed(join, ref), annualDays)
}

// AccrueInWindow returns the entitlement earned inside window, counting tenure
// up to min(asOf, window.End). Days served before the window opened belong to
// earlier windows.
func AccrueInWindow(join generic.TimePoint, window generic.Period, asOf generic.TimePoint, annualDays decimal.Decimal) generic.Amount {
	end := generic.MinTime(asOf, window.End)
	served := DaysServed(join, end) - DaysServed(join, window.Start.AddDays(-1))
	if served < 0 {
		served = 0
	}
	return accrueDays(served, annualDays)
}

func accrueDays(served int, annualDays decimal.Decimal) generic.Amount {
	// Multiply before dividing so 25*182/365 rounds from the exact quotient.
	v := annualDays.Mul(decimal.NewFromInt(int64(served))).Div(daysPerYear)
	return generic.DaysFromDecimal(v).Round()
}
