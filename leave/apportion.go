package leave

import (
	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// PAID / UNPAID APPORTIONMENT
// =============================================================================
//
// Evaluated once per call, never persisted as a transition:
//
//   1. leave overlaps probation          -> all unpaid
//   2. no policy / policy marked unpaid  -> all unpaid
//   3. available = accrual at start
//                + adjustments effective on or before start
//                - approved days of the same type starting strictly before
//      paid   = min(days, max(0, available))
//      unpaid = days - paid

// AvailableAt returns the balance of leaveType on date at, replaying approved
// requests chronologically. The request identified by exclude is left out.
// The result may be negative.
func (h History) AvailableAt(policy LeavePolicy, at generic.TimePoint, exclude string) generic.Amount {
	avail := Accrue(h.Employee.JoinDate, at, policy.AnnualDays)
	avail = avail.Add(generic.SumUntil(h.Adjustments[policy.LeaveType], at))

	for _, r := range h.Requests {
		if r.ID == exclude || r.EmployeeID != h.Employee.ID || r.LeaveType != policy.LeaveType {
			continue
		}
		if r.Status == StatusApproved && r.Start.Before(at) {
			avail = avail.Sub(r.TotalDays)
		}
	}
	return avail.Round()
}

// classify runs steps 1 and 2. It returns the policy to draw from, or the
// reason the whole request is unpaid.
func (h History) classify(r LeaveRequest) (LeavePolicy, PaidReason, bool) {
	if OverlapsProbation(r.Period(), h.Employee.Probation) {
		return LeavePolicy{}, ReasonProbation, false
	}
	p, err := h.Policy(r.LeaveType)
	if err != nil {
		return LeavePolicy{}, ReasonNoPolicy, false
	}
	if !p.IsPaid {
		return LeavePolicy{}, ReasonUnpaidPolicy, false
	}
	return p, ReasonBalance, true
}

// PaidUnpaid splits r into paid and unpaid days.
func (h History) PaidUnpaid(r LeaveRequest) PaidUnpaidResult {
	days := r.TotalDays.Round()
	res := PaidUnpaidResult{LeaveRequestID: r.ID, PaidDays: generic.ZeroDays, UnpaidDays: days}

	p, reason, payable := h.classify(r)
	res.Reason = reason
	if payable {
		avail := h.AvailableAt(p, r.Start, r.ID).ClampZero()
		res.PaidDays = days.Min(avail).Round()
		res.UnpaidDays = days.Sub(res.PaidDays)
	}
	res.IsPaid = res.UnpaidDays.IsZero()
	return res
}

// =============================================================================
// MONTHLY VARIANT
// =============================================================================

// Monthly distributes r over the calendar months it touches and splits each
// month into paid and unpaid days, carrying the running balance forward.
// Months are weighted by calendar days, or by workdays when
// SkipNonWorkdays is set. Half-day and short-leave requests put all days on
// the start month. The month totals always add up to r.TotalDays and none
// is negative.
func (h History) Monthly(r LeaveRequest) []MonthSplit {
	days := r.TotalDays.Round()

	var allocs []generic.Allocation
	if r.Concentrated() {
		share := generic.PeriodShare{Period: generic.Period{Start: r.Start, End: r.Start}, Days: 1}
		allocs = []generic.Allocation{{Share: share, Amount: days}}
	} else if h.SkipNonWorkdays {
		allocs = r.Period().DistributeWorkdays(days, generic.SplitMonth, h.Holidays)
	} else {
		allocs = r.Period().Distribute(days, generic.SplitMonth)
	}

	p, _, payable := h.classify(r)
	running := generic.ZeroDays
	if payable {
		running = h.AvailableAt(p, r.Start, r.ID).ClampZero()
	}

	splits := make([]MonthSplit, len(allocs))
	for i, a := range allocs {
		paid := a.Amount.Min(running)
		running = running.Sub(paid)
		splits[i] = MonthSplit{
			Month:  a.Share.Key(generic.SplitMonth),
			Period: a.Share.Period,
			Total:  a.Amount,
			Paid:   paid,
			Unpaid: a.Amount.Sub(paid),
		}
	}
	return splits
}

// MonthlyBreakdown sums paid/unpaid days per month over approved requests,
// keeping only months that intersect window.
func (h History) MonthlyBreakdown(window generic.Period) MonthlyBreakdown {
	out := MonthlyBreakdown{EmployeeID: h.Employee.ID, Months: make(map[string]MonthAmounts)}

	for _, r := range h.Requests {
		if r.Status != StatusApproved || r.EmployeeID != h.Employee.ID || !r.Period().Overlaps(window) {
			continue
		}
		for _, s := range h.Monthly(r) {
			if !s.Period.Overlaps(window) {
				continue
			}
			m, ok := out.Months[s.Month]
			if !ok {
				m = MonthAmounts{Paid: generic.ZeroDays, Unpaid: generic.ZeroDays, Total: generic.ZeroDays}
			}
			out.Months[s.Month] = m.add(s)
		}
	}
	return out
}
