package leave_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

func balanceHistory(reqs ...leave.LeaveRequest) leave.History {
	return leave.History{
		Employee: employee("emp-1", "2024-01-01"),
		Policies: []leave.LeavePolicy{
			policy("annual", leave.LeaveAnnual, leave.Unclassified, 25, true),
			policy("sick", leave.LeaveSick, leave.Unclassified, 10, true),
		},
		Requests: reqs,
		Mode:     leave.ResolveStrict,
	}
}

func TestSnapshot_UsedPendingRejected(t *testing.T) {
	// GIVEN: 25 days/year, full 2024 served
	//        approved 5, pending 3, rejected 4
	// THEN: used 5, pending 3, remaining 17, rejected ignored
	h := balanceHistory(
		request("r1", "emp-1", leave.LeaveAnnual, "2024-03-04", "2024-03-08", 5, leave.StatusApproved),
		request("r2", "emp-1", leave.LeaveAnnual, "2024-05-06", "2024-05-08", 3, leave.StatusPending),
		request("r3", "emp-1", leave.LeaveAnnual, "2024-06-03", "2024-06-06", 4, leave.StatusRejected),
	)

	snap := h.Snapshot(year(2024), date("2024-12-31"))

	b, ok := snap.Balances[leave.LeaveAnnual]
	require.True(t, ok)
	assert.Equal(t, "25.00", b.Entitled.String())
	assert.Equal(t, "5.00", b.Used.String())
	assert.Equal(t, "3.00", b.Pending.String())
	assert.Equal(t, "17.00", b.Remaining.String())
	assert.Equal(t, "20", b.UtilizationPercent.String())
	assert.Equal(t, "annual", b.PolicyID)
}

func TestSnapshot_RemainingNeverNegative(t *testing.T) {
	h := balanceHistory(
		request("r1", "emp-1", leave.LeaveSick, "2024-02-01", "2024-02-20", 20, leave.StatusApproved),
		request("r2", "emp-1", leave.LeaveSick, "2024-04-01", "2024-04-05", 5, leave.StatusPending),
	)

	b := h.Snapshot(year(2024), date("2024-12-31")).Balances[leave.LeaveSick]

	assert.Equal(t, "10.00", b.Entitled.String())
	assert.Equal(t, "0.00", b.Remaining.String())
	assert.False(t, b.Remaining.IsNegative())
	assert.Equal(t, "200", b.UtilizationPercent.String())
}

func TestSnapshot_RequestAcrossYearBoundary_IsProrated(t *testing.T) {
	// GIVEN: 7-day approved leave Dec 28 2024 - Jan 3 2025
	// THEN: 4 days count in 2024 and 3 days in 2025
	h := balanceHistory(
		request("r1", "emp-1", leave.LeaveAnnual, "2024-12-28", "2025-01-03", 7, leave.StatusApproved),
	)

	in2024 := h.Snapshot(year(2024), date("2024-12-31")).Balances[leave.LeaveAnnual]
	in2025 := h.Snapshot(year(2025), date("2025-12-31")).Balances[leave.LeaveAnnual]

	assert.Equal(t, "4.00", in2024.Used.String())
	assert.Equal(t, "3.00", in2025.Used.String())
}

func TestSnapshot_AdjustmentsInsideWindowOnly(t *testing.T) {
	h := balanceHistory()
	h.Adjustments = map[leave.LeaveType][]generic.Transaction{
		leave.LeaveAnnual: {
			{EntityID: "emp-1", AccountID: "annual", EffectiveAt: date("2023-12-31"), Delta: days(9), Type: generic.TxAdjustment},
			{EntityID: "emp-1", AccountID: "annual", EffectiveAt: date("2024-02-01"), Delta: days(3), Type: generic.TxAdjustment},
			{EntityID: "emp-1", AccountID: "annual", EffectiveAt: date("2024-11-01"), Delta: days(1), Type: generic.TxAdjustment},
		},
	}

	// as of June: only the February adjustment counts
	b := h.Snapshot(year(2024), date("2024-06-30")).Balances[leave.LeaveAnnual]
	assert.Equal(t, "3.00", b.Adjustments.String())
	assert.Equal(t, b.Entitled.Add(days(3)).String(), b.Remaining.String())
}

func TestSnapshot_MissingPolicyListedAsUnresolved(t *testing.T) {
	h := balanceHistory()

	snap := h.Snapshot(year(2024), date("2024-12-31"))

	assert.Contains(t, snap.Unresolved, leave.LeaveMaternity)
	assert.NotContains(t, snap.Balances, leave.LeaveMaternity)
	assert.Equal(t, []leave.LeaveType{leave.LeaveAnnual, leave.LeaveSick}, snap.Types())
}

func TestSnapshot_IgnoresOtherEmployeesRequests(t *testing.T) {
	h := balanceHistory(
		request("r1", "emp-2", leave.LeaveAnnual, "2024-03-04", "2024-03-08", 5, leave.StatusApproved),
	)
	b := h.Snapshot(year(2024), date("2024-12-31")).Balances[leave.LeaveAnnual]
	assert.True(t, b.Used.IsZero())
}

func TestSnapshot_RemainingInvariant(t *testing.T) {
	// remaining = max(0, entitled + adjustments - used - pending) for a mix of loads
	loads := [][]leave.LeaveRequest{
		nil,
		{request("a", "emp-1", leave.LeaveAnnual, "2024-01-10", "2024-01-12", 3, leave.StatusApproved)},
		{
			request("a", "emp-1", leave.LeaveAnnual, "2024-01-10", "2024-01-29", 20, leave.StatusApproved),
			request("b", "emp-1", leave.LeaveAnnual, "2024-03-01", "2024-03-10", 10, leave.StatusPending),
		},
		{request("a", "emp-1", leave.LeaveAnnual, "2024-07-01", "2024-07-01", 0.5, leave.StatusPending)},
	}

	for i, reqs := range loads {
		for _, asOf := range []string{"2024-01-01", "2024-04-15", "2024-12-31"} {
			b := balanceHistory(reqs...).Snapshot(year(2024), date(asOf)).Balances[leave.LeaveAnnual]
			want := b.Entitled.Add(b.Adjustments).Sub(b.Used).Sub(b.Pending).ClampZero().Round()
			assert.True(t, want.Equal(b.Remaining), "load %d as of %s", i, asOf)
			assert.False(t, b.Remaining.IsNegative())
		}
	}
}

func TestHistory_Entitlement(t *testing.T) {
	h := balanceHistory()

	got, err := h.Entitlement(leave.LeaveAnnual, date("2024-07-01"))
	require.NoError(t, err)
	assert.Equal(t, "12.47", got.String())

	_, err = h.Entitlement(leave.LeavePaternity, date("2024-07-01"))
	assert.ErrorIs(t, err, generic.ErrPolicyNotFound)
}
