package leave

import (
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// HISTORY - Everything known about one employee, loaded once per query
// =============================================================================

// History bundles the inputs of every balance computation for one employee.
// All methods are pure: the same History always yields the same result.
type History struct {
	Employee Employee
	Policies []LeavePolicy
	// Requests of this employee, any type and status.
	Requests []LeaveRequest
	// Adjustments holds ledger rows per leave type, ordered by EffectiveAt.
	Adjustments map[LeaveType][]generic.Transaction
	Mode        ResolutionMode
	// SkipNonWorkdays weights the monthly split by workdays, leaving out
	// weekends and Holidays, to match how the request was counted.
	SkipNonWorkdays bool
	Holidays        generic.HolidayList
}

// Policy resolves the employee's policy for leaveType.
func (h History) Policy(leaveType LeaveType) (LeavePolicy, error) {
	return ResolvePolicy(h.Policies, leaveType, h.Employee.Classification, h.Mode)
}

// Entitlement returns tenure-to-date accrual for leaveType as of asOf.
func (h History) Entitlement(leaveType LeaveType, asOf generic.TimePoint) (generic.Amount, error) {
	p, err := h.Policy(leaveType)
	if err != nil {
		return generic.ZeroDays, err
	}
	return Accrue(h.Employee.JoinDate, asOf, p.AnnualDays), nil
}

// =============================================================================
// BALANCE AGGREGATION
// =============================================================================

var hundred = decimal.NewFromInt(100)

// Snapshot computes per-type balances inside window as of asOf.
//
//   entitled    = accrual earned inside the window up to asOf
//   adjustments = ledger deltas effective inside the window up to asOf
//   used        = approved days falling inside the window
//   pending     = pending days falling inside the window
//   remaining   = max(0, entitled + adjustments - used - pending)
//
// Rejected requests never count. A request crossing the window edge counts
// only the calendar-day share that falls inside. Leave types whose policy
// does not resolve are listed in Unresolved instead of Balances.
func (h History) Snapshot(window generic.Period, asOf generic.TimePoint) EntitlementSnapshot {
	snap := EntitlementSnapshot{
		EmployeeID: h.Employee.ID,
		Window:     window,
		AsOf:       asOf,
		Balances:   make(map[LeaveType]Balance),
		Unresolved: make(map[LeaveType]string),
	}

	adjWindow := generic.Period{Start: window.Start, End: generic.MinTime(window.End, asOf)}

	for _, t := range LeaveTypes {
		p, err := h.Policy(t)
		if err != nil {
			snap.Unresolved[t] = err.Error()
			continue
		}

		b := Balance{
			LeaveType:   t,
			PolicyID:    p.ID,
			IsPaid:      p.IsPaid,
			Entitled:    AccrueInWindow(h.Employee.JoinDate, window, asOf, p.AnnualDays),
			Adjustments: generic.SumIn(h.Adjustments[t], adjWindow).Round(),
			Used:        generic.ZeroDays,
			Pending:     generic.ZeroDays,
		}

		for _, r := range h.Requests {
			if r.LeaveType != t || r.EmployeeID != h.Employee.ID {
				continue
			}
			switch r.Status {
			case StatusApproved:
				b.Used = b.Used.Add(r.Period().ShareWithin(r.TotalDays, window))
			case StatusPending:
				b.Pending = b.Pending.Add(r.Period().ShareWithin(r.TotalDays, window))
			case StatusRejected:
			}
		}
		b.Used = b.Used.Round()
		b.Pending = b.Pending.Round()

		base := b.Entitled.Add(b.Adjustments)
		b.Remaining = base.Sub(b.Used).Sub(b.Pending).ClampZero().Round()
		b.UtilizationPercent = utilization(b.Used, base)

		snap.Balances[t] = b
	}
	return snap
}

func utilization(used, base generic.Amount) decimal.Decimal {
	if !base.IsPositive() {
		return decimal.Zero
	}
	return used.Value.Mul(hundred).Div(base.Value).Round(generic.Places)
}
