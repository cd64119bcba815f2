package leave_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// dailyHistory accrues exactly one annual day per day served.
func dailyHistory(join string, reqs ...leave.LeaveRequest) leave.History {
	return leave.History{
		Employee: employee("emp-1", join),
		Policies: []leave.LeavePolicy{
			policy("annual", leave.LeaveAnnual, leave.Unclassified, 365, true),
			policy("sick", leave.LeaveSick, leave.Unclassified, 10, true),
			policy("unpaid", leave.LeaveUnpaid, leave.Unclassified, 0, false),
		},
		Requests: reqs,
		Mode:     leave.ResolveStrict,
	}
}

func TestPaidUnpaid_ExcessOverBalanceIsUnpaid(t *testing.T) {
	// GIVEN: 10 days accrued on 2024-01-11, no prior approved leave
	// WHEN: Taking a 15-day approved annual leave
	// THEN: 10 paid, 5 unpaid
	r := request("r1", "emp-1", leave.LeaveAnnual, "2024-01-11", "2024-01-25", 15, leave.StatusApproved)
	h := dailyHistory("2024-01-01", r)

	res := h.PaidUnpaid(r)

	assert.Equal(t, "10.00", res.PaidDays.String())
	assert.Equal(t, "5.00", res.UnpaidDays.String())
	assert.False(t, res.IsPaid)
	assert.Equal(t, leave.ReasonBalance, res.Reason)
}

func TestPaidUnpaid_SufficientBalanceIsFullyPaid(t *testing.T) {
	r := request("r1", "emp-1", leave.LeaveAnnual, "2024-03-01", "2024-03-05", 5, leave.StatusPending)
	h := dailyHistory("2024-01-01", r)

	res := h.PaidUnpaid(r)

	assert.True(t, res.PaidDays.Equal(r.TotalDays))
	assert.True(t, res.UnpaidDays.IsZero())
	assert.True(t, res.IsPaid)
}

func TestPaidUnpaid_ProbationOverlapMakesWholeRequestUnpaid(t *testing.T) {
	// GIVEN: Active probation 2024-01-01 to 2024-03-31
	// WHEN: Sick leave 2024-03-25 to 2024-04-02 (9 days, 7 inside probation)
	// THEN: All 9 days unpaid
	r := request("r1", "emp-1", leave.LeaveSick, "2024-03-25", "2024-04-02", 9, leave.StatusApproved)
	h := dailyHistory("2023-01-01", r)
	h.Employee.Probation = activeProbation()

	res := h.PaidUnpaid(r)

	assert.True(t, res.PaidDays.IsZero())
	assert.Equal(t, "9.00", res.UnpaidDays.String())
	assert.Equal(t, leave.ReasonProbation, res.Reason)
}

func TestPaidUnpaid_ProbationBoundary(t *testing.T) {
	onEnd := request("r1", "emp-1", leave.LeaveAnnual, "2024-03-31", "2024-04-01", 2, leave.StatusApproved)
	dayAfter := request("r2", "emp-1", leave.LeaveAnnual, "2024-04-01", "2024-04-02", 2, leave.StatusApproved)

	h := dailyHistory("2023-01-01")
	h.Employee.Probation = activeProbation()

	assert.Equal(t, leave.ReasonProbation, h.PaidUnpaid(onEnd).Reason)
	assert.True(t, h.PaidUnpaid(onEnd).PaidDays.IsZero())

	res := h.PaidUnpaid(dayAfter)
	assert.Equal(t, leave.ReasonBalance, res.Reason)
	assert.True(t, res.IsPaid)
}

func TestPaidUnpaid_ReplaysEarlierApprovedRequestsOnly(t *testing.T) {
	// GIVEN: 20 days accrued by 2024-01-21
	//        approved 12 days starting before, pending 8 days starting before,
	//        approved 30 days starting AFTER, rejected 10 starting before
	// THEN: only the 12 earlier approved days reduce availability: 8 left
	earlier := request("a", "emp-1", leave.LeaveAnnual, "2024-01-05", "2024-01-16", 12, leave.StatusApproved)
	pending := request("p", "emp-1", leave.LeaveAnnual, "2024-01-17", "2024-01-18", 8, leave.StatusPending)
	later := request("l", "emp-1", leave.LeaveAnnual, "2024-03-01", "2024-03-30", 30, leave.StatusApproved)
	rejected := request("x", "emp-1", leave.LeaveAnnual, "2024-01-02", "2024-01-03", 10, leave.StatusRejected)
	otherType := request("s", "emp-1", leave.LeaveSick, "2024-01-04", "2024-01-04", 1, leave.StatusApproved)
	r := request("r", "emp-1", leave.LeaveAnnual, "2024-01-21", "2024-01-30", 10, leave.StatusPending)

	h := dailyHistory("2024-01-01", earlier, pending, later, rejected, otherType, r)

	res := h.PaidUnpaid(r)
	assert.Equal(t, "8.00", res.PaidDays.String())
	assert.Equal(t, "2.00", res.UnpaidDays.String())
}

func TestPaidUnpaid_SameDayStartIsNotEarlier(t *testing.T) {
	a := request("a", "emp-1", leave.LeaveAnnual, "2024-01-11", "2024-01-11", 0.5, leave.StatusApproved)
	b := request("b", "emp-1", leave.LeaveAnnual, "2024-01-11", "2024-01-11", 0.5, leave.StatusApproved)
	h := dailyHistory("2024-01-01", a, b)

	p, err := h.Policy(leave.LeaveAnnual)
	require.NoError(t, err)
	assert.Equal(t, "10.00", h.AvailableAt(p, date("2024-01-11"), "b").String())
}

func TestPaidUnpaid_AdjustmentsAddToAvailability(t *testing.T) {
	r := request("r1", "emp-1", leave.LeaveAnnual, "2024-01-11", "2024-01-25", 15, leave.StatusApproved)
	h := dailyHistory("2024-01-01", r)
	h.Adjustments = map[leave.LeaveType][]generic.Transaction{
		leave.LeaveAnnual: {
			{EffectiveAt: date("2024-01-05"), Delta: days(5), Type: generic.TxAdjustment},
			{EffectiveAt: date("2024-02-01"), Delta: days(100), Type: generic.TxAdjustment},
		},
	}

	res := h.PaidUnpaid(r)
	assert.Equal(t, "15.00", res.PaidDays.String())
}

func TestPaidUnpaid_UnpaidPolicyAndMissingPolicy(t *testing.T) {
	unpaid := request("u", "emp-1", leave.LeaveUnpaid, "2024-05-01", "2024-05-03", 3, leave.StatusApproved)
	noPolicy := request("m", "emp-1", leave.LeaveMaternity, "2024-05-10", "2024-05-12", 3, leave.StatusApproved)
	h := dailyHistory("2024-01-01", unpaid, noPolicy)

	res := h.PaidUnpaid(unpaid)
	assert.Equal(t, leave.ReasonUnpaidPolicy, res.Reason)
	assert.Equal(t, "3.00", res.UnpaidDays.String())

	res = h.PaidUnpaid(noPolicy)
	assert.Equal(t, leave.ReasonNoPolicy, res.Reason)
	assert.True(t, res.PaidDays.IsZero())
}

func TestPaidUnpaid_Idempotent(t *testing.T) {
	r := request("r1", "emp-1", leave.LeaveAnnual, "2024-01-11", "2024-01-25", 15, leave.StatusApproved)
	h := dailyHistory("2024-01-01", r)

	assert.Equal(t, h.PaidUnpaid(r), h.PaidUnpaid(r))
	assert.Equal(t, h.Snapshot(year(2024), date("2024-06-30")), h.Snapshot(year(2024), date("2024-06-30")))
}

// =============================================================================
// MONTHLY VARIANT
// =============================================================================

func TestMonthly_RunningBalanceCarriesAcrossMonths(t *testing.T) {
	// GIVEN: 10 days available on Jan 25, a 15-day leave Jan 25 - Feb 8
	// THEN: Jan 7 days all paid; Feb 8 days = 3 paid + 5 unpaid
	r := request("r1", "emp-1", leave.LeaveAnnual, "2024-01-25", "2024-02-08", 15, leave.StatusApproved)
	h := dailyHistory("2024-01-15", r)

	splits := h.Monthly(r)

	require.Len(t, splits, 2)
	assert.Equal(t, "2024-01", splits[0].Month)
	assert.Equal(t, "7.00", splits[0].Total.String())
	assert.Equal(t, "7.00", splits[0].Paid.String())
	assert.Equal(t, "0.00", splits[0].Unpaid.String())
	assert.Equal(t, "2024-02", splits[1].Month)
	assert.Equal(t, "8.00", splits[1].Total.String())
	assert.Equal(t, "3.00", splits[1].Paid.String())
	assert.Equal(t, "5.00", splits[1].Unpaid.String())

	// agrees with the whole-request split
	whole := h.PaidUnpaid(r)
	assert.True(t, whole.PaidDays.Equal(splits[0].Paid.Add(splits[1].Paid)))
}

func TestMonthly_HalfDayAndShortLeaveStayOnStartMonth(t *testing.T) {
	half := request("h", "emp-1", leave.LeaveAnnual, "2024-03-31", "2024-03-31", 0.5, leave.StatusApproved)
	half.IsHalfDay = true
	short := request("s", "emp-1", leave.LeaveAnnual, "2024-04-30", "2024-04-30", 0.25, leave.StatusApproved)
	short.ShortLeaveHours = decimal.NewFromInt(2)

	h := dailyHistory("2024-01-01", half, short)

	hs := h.Monthly(half)
	require.Len(t, hs, 1)
	assert.Equal(t, "2024-03", hs[0].Month)
	assert.Equal(t, "0.50", hs[0].Total.String())

	ss := h.Monthly(short)
	require.Len(t, ss, 1)
	assert.Equal(t, "0.25", ss[0].Paid.String())
}

func TestMonthly_RoundTripSumsToTotal(t *testing.T) {
	// For awkward spans and fractional totals the month parts still add up.
	cases := []leave.LeaveRequest{
		request("a", "emp-1", leave.LeaveAnnual, "2024-01-31", "2024-03-01", 10, leave.StatusApproved),
		request("b", "emp-1", leave.LeaveAnnual, "2024-11-15", "2025-02-14", 64, leave.StatusApproved),
		request("c", "emp-1", leave.LeaveAnnual, "2024-06-29", "2024-07-02", 2.5, leave.StatusApproved),
		request("d", "emp-1", leave.LeaveSick, "2024-02-27", "2024-03-04", 7, leave.StatusApproved),
		request("e", "emp-1", leave.LeaveAnnual, "2024-01-01", "2024-04-03", 0.02, leave.StatusApproved),
	}
	tolerance := decimal.RequireFromString("0.01")

	for _, r := range cases {
		h := dailyHistory("2023-06-01", r)
		total := generic.ZeroDays
		paid := generic.ZeroDays
		for _, s := range h.Monthly(r) {
			total = total.Add(s.Total)
			paid = paid.Add(s.Paid)
			assert.True(t, s.Paid.Add(s.Unpaid).Equal(s.Total), "request %s month %s", r.ID, s.Month)
			assert.False(t, s.Total.IsNegative(), "request %s month %s", r.ID, s.Month)
			assert.False(t, s.Paid.IsNegative(), "request %s month %s", r.ID, s.Month)
		}
		assert.True(t, total.Sub(r.TotalDays).Value.Abs().LessThanOrEqual(tolerance), "request %s: %s vs %s", r.ID, total, r.TotalDays)
		assert.True(t, paid.Equal(h.PaidUnpaid(r).PaidDays), "request %s", r.ID)
	}
}

func TestMonthly_SkipNonWorkdaysWeightsByWorkdays(t *testing.T) {
	// GIVEN: Fri Jan 31 - Mon Feb 3 2025 counted as 2 workdays
	// THEN: one day lands in each month
	r := request("r1", "emp-1", leave.LeaveAnnual, "2025-01-31", "2025-02-03", 2, leave.StatusApproved)
	h := dailyHistory("2024-01-01", r)

	calendar := h.Monthly(r)
	require.Len(t, calendar, 2)
	assert.Equal(t, "0.50", calendar[0].Total.String())

	h.SkipNonWorkdays = true
	splits := h.Monthly(r)
	require.Len(t, splits, 2)
	assert.Equal(t, "1.00", splits[0].Total.String())
	assert.Equal(t, "1.00", splits[1].Total.String())
	assert.Equal(t, "1.00", splits[1].Paid.String())

	// a holiday on the Monday leaves February empty
	h.Holidays = generic.HolidayList{{ID: "h", Date: date("2025-02-03"), Name: "Bank holiday"}}
	r.TotalDays = days(1)
	splits = h.Monthly(r)
	assert.Equal(t, "1.00", splits[0].Total.String())
	assert.True(t, splits[1].Total.IsZero())
}

func TestMonthly_ProbationAllUnpaid(t *testing.T) {
	r := request("r1", "emp-1", leave.LeaveSick, "2024-03-25", "2024-04-02", 9, leave.StatusApproved)
	h := dailyHistory("2023-01-01", r)
	h.Employee.Probation = activeProbation()

	for _, s := range h.Monthly(r) {
		assert.True(t, s.Paid.IsZero())
		assert.True(t, s.Unpaid.Equal(s.Total))
	}
}

func TestMonthlyBreakdown_ApprovedOnlyWithinWindow(t *testing.T) {
	approved := request("a", "emp-1", leave.LeaveAnnual, "2024-12-30", "2025-01-02", 4, leave.StatusApproved)
	pending := request("p", "emp-1", leave.LeaveAnnual, "2025-02-03", "2025-02-04", 2, leave.StatusPending)
	other := request("o", "emp-1", leave.LeaveSick, "2025-01-20", "2025-01-20", 1, leave.StatusApproved)
	h := dailyHistory("2024-01-01", approved, pending, other)

	b := h.MonthlyBreakdown(year(2025))

	assert.Equal(t, []string{"2025-01"}, b.MonthKeys())
	jan := b.Months["2025-01"]
	assert.Equal(t, "3.00", jan.Total.String())
	assert.Equal(t, "3.00", jan.Paid.String())
}
