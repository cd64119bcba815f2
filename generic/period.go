package generic

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PERIOD - Closed date interval [Start, End]
// =============================================================================

// Period is an inclusive range of calendar days. Both balance windows and
// leave request spans are periods.
//
// Examples:
//   - Calendar year 2025: Jan 1 - Dec 31
//   - Fiscal year 2025: Apr 1 - Mar 31
//   - A leave request: Mar 25 - Apr 2
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod builds a period, rejecting an end date before the start date.
func NewPeriod(start, end TimePoint) (Period, error) {
	p := Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	return nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Overlaps is the closed-interval test: p.Start <= o.End && p.End >= o.Start.
func (p Period) Overlaps(o Period) bool {
	return p.Start.BeforeOrEqual(o.End) && p.End.AfterOrEqual(o.Start)
}

// Intersect returns the common part of two periods and false when they are disjoint.
func (p Period) Intersect(o Period) (Period, bool) {
	if !p.Overlaps(o) {
		return Period{}, false
	}
	return Period{Start: MaxTime(p.Start, o.Start), End: MinTime(p.End, o.End)}, true
}

// DayCount returns the number of calendar days in the period, inclusive of both ends.
func (p Period) DayCount() int {
	n := DaysBetween(p.Start, p.End) + 1
	if n < 0 {
		return 0
	}
	return n
}

// OverlapDays returns how many calendar days of p fall inside o.
func (p Period) OverlapDays(o Period) int {
	in, ok := p.Intersect(o)
	if !ok {
		return 0
	}
	return in.DayCount()
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// CALENDAR SPLITTER - Per-month / per-year fractional weights
// =============================================================================

// SplitUnit selects the calendar bucket a period is split into.
type SplitUnit int

const (
	SplitMonth SplitUnit = iota
	SplitYear
)

// PeriodShare is the part of a period falling inside one calendar bucket.
type PeriodShare struct {
	Period Period
	Days   int
	Weight decimal.Decimal // Days / total days of the split period
}

// Key identifies the bucket: "2024-03" for months, "2024" for years.
func (s PeriodShare) Key(unit SplitUnit) string {
	if unit == SplitYear {
		return fmt.Sprintf("%d", s.Period.Start.Year())
	}
	return s.Period.Start.MonthKey()
}

// Split cuts the period at calendar month or year boundaries. Weights sum to exactly one.
func (p Period) Split(unit SplitUnit) []PeriodShare {
	total := p.DayCount()
	if total == 0 {
		return nil
	}

	var shares []PeriodShare
	cursor := p.Start
	for cursor.BeforeOrEqual(p.End) {
		var bucketEnd TimePoint
		switch unit {
		case SplitYear:
			bucketEnd = EndOfYear(cursor.Year())
		default:
			bucketEnd = EndOfMonth(cursor.Year(), cursor.Month())
		}
		part := Period{Start: cursor, End: MinTime(bucketEnd, p.End)}
		days := part.DayCount()
		shares = append(shares, PeriodShare{
			Period: part,
			Days:   days,
			Weight: decimal.NewFromInt(int64(days)).Div(decimal.NewFromInt(int64(total))),
		})
		cursor = part.End.AddDays(1)
	}
	return shares
}

// Allocation is an amount assigned to one calendar bucket.
type Allocation struct {
	Share  PeriodShare
	Amount Amount
}

// Distribute spreads total across the buckets of p by calendar-day weight.
// Allocations are rounded to two places by largest remainder: each bucket
// gets its share floored, and the leftover cents go to the buckets with the
// biggest fractional parts. Allocations sum to total and none is negative
// when total isn't.
func (p Period) Distribute(total Amount, unit SplitUnit) []Allocation {
	shares := p.Split(unit)
	weights := make([]int, len(shares))
	for i, s := range shares {
		weights[i] = s.Days
	}
	return apportion(shares, weights, total)
}

// DistributeWorkdays is Distribute weighted by the workdays of each bucket,
// skipping weekends and the holidays in cal. When p has no workday at all
// it falls back to calendar days.
func (p Period) DistributeWorkdays(total Amount, unit SplitUnit, cal HolidayCalendar) []Allocation {
	shares := p.Split(unit)
	weights := make([]int, len(shares))
	sum := 0
	for i, s := range shares {
		weights[i] = s.Period.Workdays(cal)
		sum += weights[i]
	}
	if sum == 0 {
		return p.Distribute(total, unit)
	}
	return apportion(shares, weights, total)
}

// Workdays counts the days of p that are neither weekends nor holidays in cal.
func (p Period) Workdays(cal HolidayCalendar) int {
	n := 0
	for _, d := range p.Days() {
		if d.IsWorkdayWithHolidays(cal) {
			n++
		}
	}
	return n
}

func apportion(shares []PeriodShare, weights []int, total Amount) []Allocation {
	allocs := make([]Allocation, len(shares))
	if len(shares) == 0 {
		return allocs
	}

	sum := 0
	for _, w := range weights {
		sum += w
	}
	if sum == 0 {
		for i, s := range shares {
			allocs[i] = Allocation{Share: s, Amount: total.Zero()}
		}
		allocs[len(allocs)-1].Amount = total
		return allocs
	}

	// Work in hundredths so the remainder is a whole number of cents.
	scale := decimal.New(1, Places)
	cents := total.Value.Mul(scale)
	negative := cents.IsNegative()
	if negative {
		cents = cents.Neg()
	}
	totalCents := cents.Round(0)

	floors := make([]decimal.Decimal, len(shares))
	remainders := make([]decimal.Decimal, len(shares))
	left := totalCents
	for i, w := range weights {
		exact := totalCents.Mul(decimal.NewFromInt(int64(w))).Div(decimal.NewFromInt(int64(sum)))
		floors[i] = exact.Floor()
		remainders[i] = exact.Sub(floors[i])
		left = left.Sub(floors[i])
	}

	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].GreaterThan(remainders[order[b]])
	})
	for k := 0; left.IsPositive() && k < len(order); k++ {
		floors[order[k]] = floors[order[k]].Add(decimal.NewFromInt(1))
		left = left.Sub(decimal.NewFromInt(1))
	}

	for i, s := range shares {
		v := floors[i].Div(scale)
		if negative {
			v = v.Neg()
		}
		allocs[i] = Allocation{Share: s, Amount: Amount{Value: v, Unit: total.Unit}}
	}
	// total carried more than two places: keep the sum exact on the last bucket.
	if drift := total.Sub(sumAllocations(allocs)); !drift.IsZero() {
		allocs[len(allocs)-1].Amount = allocs[len(allocs)-1].Amount.Add(drift)
	}
	return allocs
}

func sumAllocations(allocs []Allocation) Amount {
	total := ZeroDays
	for _, a := range allocs {
		total = total.Add(a.Amount)
	}
	return total
}

// ShareWithin returns the part of total attributable to window, using the ratio
// of p's calendar days inside window to all of p's calendar days.
func (p Period) ShareWithin(total Amount, window Period) Amount {
	days := p.DayCount()
	if days == 0 {
		return total.Zero()
	}
	inside := p.OverlapDays(window)
	if inside == days {
		return total
	}
	ratio := decimal.NewFromInt(int64(inside)).Div(decimal.NewFromInt(int64(days)))
	return total.Mul(ratio).Round()
}

// =============================================================================
// PERIOD CONFIG - How balance windows are laid out
// =============================================================================

// PeriodType defines how periods are calculated
type PeriodType string

const (
	PeriodCalendarYear PeriodType = "calendar_year" // Jan 1 - Dec 31
	PeriodFiscalYear   PeriodType = "fiscal_year"   // Custom start (e.g., Apr 1)
)

// PeriodConfig defines how to calculate balance windows.
type PeriodConfig struct {
	Type PeriodType

	// For fiscal year: which month starts the fiscal year (1-12)
	FiscalYearStartMonth time.Month
}

// PeriodFor returns the period that contains the given date
func (pc PeriodConfig) PeriodFor(date TimePoint) Period {
	switch pc.Type {
	case PeriodFiscalYear:
		if pc.FiscalYearStartMonth < time.January || pc.FiscalYearStartMonth > time.December {
			return Period{Start: StartOfYear(date.Year()), End: EndOfYear(date.Year())}
		}
		return pc.fiscalYearPeriod(date)
	default:
		return Period{Start: StartOfYear(date.Year()), End: EndOfYear(date.Year())}
	}
}

// YearWindow returns the window labelled by year: the calendar year, or the
// fiscal year that starts in that year.
func (pc PeriodConfig) YearWindow(year int) Period {
	if pc.Type == PeriodFiscalYear && pc.FiscalYearStartMonth >= time.January && pc.FiscalYearStartMonth <= time.December {
		return pc.PeriodFor(NewTimePoint(year, pc.FiscalYearStartMonth, 1))
	}
	return Period{Start: StartOfYear(year), End: EndOfYear(year)}
}

func (pc PeriodConfig) fiscalYearPeriod(date TimePoint) Period {
	year := date.Year()
	fiscalStart := NewTimePoint(year, pc.FiscalYearStartMonth, 1)

	// If date is before fiscal year start, we're in previous fiscal year
	if date.Before(fiscalStart) {
		fiscalStart = NewTimePoint(year-1, pc.FiscalYearStartMonth, 1)
	}

	fiscalEnd := fiscalStart.AddYears(1).AddDays(-1)
	return Period{Start: fiscalStart, End: fiscalEnd}
}
