package leave_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

func TestEngine_SingleEmployeeFailuresAreHard(t *testing.T) {
	f := newFixture(t, policy("annual", leave.LeaveAnnual, leave.Unclassified, 25, true))
	f.addEmployee(t, employee("emp-1", "2024-01-01"))
	ctx := context.Background()

	_, err := f.engine.Snapshot(ctx, "ghost", year(2024), date("2024-06-01"))
	assert.True(t, generic.IsNotFound(err))

	_, err = f.engine.Entitlement(ctx, "emp-1", leave.LeaveSick, date("2024-06-01"))
	assert.ErrorIs(t, err, generic.ErrPolicyNotFound)

	got, err := f.engine.Entitlement(ctx, "emp-1", leave.LeaveAnnual, date("2024-07-01"))
	require.NoError(t, err)
	assert.Equal(t, "12.47", got.String())

	backwards := generic.Period{Start: date("2024-12-31"), End: date("2024-01-01")}
	_, err = f.engine.Snapshot(ctx, "emp-1", backwards, date("2024-06-01"))
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestEngine_TeamSnapshotsSkipFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	f := newFixture(t, policy("annual", leave.LeaveAnnual, leave.Unclassified, 25, true))
	f.engine.Logger = zap.New(core)
	f.addEmployee(t, employee("emp-1", "2024-01-01"))
	f.addEmployee(t, employee("emp-2", "2024-03-01"))

	report, err := f.engine.TeamSnapshots(context.Background(),
		[]generic.EntityID{"emp-1", "ghost", "emp-2"}, year(2024), date("2024-06-01"))
	require.NoError(t, err)

	require.Len(t, report.Snapshots, 2)
	assert.Equal(t, generic.EntityID("emp-1"), report.Snapshots[0].EmployeeID)
	assert.Equal(t, generic.EntityID("emp-2"), report.Snapshots[1].EmployeeID)
	assert.Contains(t, report.Failures, generic.EntityID("ghost"))
	assert.Equal(t, 1, logs.FilterMessage("skipping employee in team balance").Len())
}

func TestEngine_PaidUnpaid(t *testing.T) {
	f := newFixture(t, policy("annual", leave.LeaveAnnual, leave.Unclassified, 365, true))
	f.addEmployee(t, employee("emp-1", "2024-01-01"))
	ctx := context.Background()

	require.NoError(t, f.store.SaveRequest(ctx,
		request("r1", "emp-1", leave.LeaveAnnual, "2024-01-11", "2024-01-25", 15, leave.StatusApproved)))

	res, err := f.engine.PaidUnpaid(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "10.00", res.PaidDays.String())
	assert.Equal(t, "5.00", res.UnpaidDays.String())

	_, err = f.engine.PaidUnpaid(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))
}

func TestEngine_PaidUnpaid_UnknownEmployeeIsZeroPaid(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	f := newFixture(t, policy("annual", leave.LeaveAnnual, leave.Unclassified, 365, true))
	f.engine.Logger = zap.New(core)
	ctx := context.Background()

	require.NoError(t, f.store.SaveRequest(ctx,
		request("orphan", "gone", leave.LeaveAnnual, "2024-02-01", "2024-02-03", 3, leave.StatusApproved)))

	res, err := f.engine.PaidUnpaid(ctx, "orphan")
	require.NoError(t, err)
	assert.True(t, res.PaidDays.IsZero())
	assert.Equal(t, "3.00", res.UnpaidDays.String())
	assert.Equal(t, leave.ReasonNoPolicy, res.Reason)
	assert.Equal(t, 1, logs.Len())
}

func TestEngine_TeamMonthlyBreakdown_DefaultsToEveryone(t *testing.T) {
	f := newFixture(t, policy("annual", leave.LeaveAnnual, leave.Unclassified, 25, true))
	f.addEmployee(t, employee("emp-1", "2023-01-01"))
	f.addEmployee(t, employee("emp-2", "2023-01-01"))
	ctx := context.Background()

	require.NoError(t, f.store.SaveRequest(ctx,
		request("r1", "emp-2", leave.LeaveAnnual, "2024-04-29", "2024-05-02", 4, leave.StatusApproved)))

	out, err := f.engine.TeamMonthlyBreakdown(ctx, nil, year(2024))
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Empty(t, out[0].Months)
	assert.Equal(t, []string{"2024-04", "2024-05"}, out[1].MonthKeys())
	assert.Equal(t, "2.00", out[1].Months["2024-04"].Paid.String())
}

func TestEngine_MonthlyBreakdown_SkipNonWorkdays(t *testing.T) {
	f := newFixture(t, policy("annual", leave.LeaveAnnual, leave.Unclassified, 25, true))
	f.addEmployee(t, employee("emp-1", "2023-01-01"))
	ctx := context.Background()

	require.NoError(t, f.store.SaveRequest(ctx,
		request("r1", "emp-1", leave.LeaveAnnual, "2025-01-31", "2025-02-03", 2, leave.StatusApproved)))

	b, err := f.engine.MonthlyBreakdown(ctx, "emp-1", year(2025))
	require.NoError(t, err)
	assert.Equal(t, "0.50", b.Months["2025-01"].Total.String())

	f.engine.SkipNonWorkdays = true
	b, err = f.engine.MonthlyBreakdown(ctx, "emp-1", year(2025))
	require.NoError(t, err)
	assert.Equal(t, "1.00", b.Months["2025-01"].Total.String())
	assert.Equal(t, "1.00", b.Months["2025-02"].Total.String())
}

func TestEngine_Windows(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, year(2024), f.engine.CurrentWindow())

	f.engine.Periods = generic.PeriodConfig{Type: generic.PeriodFiscalYear, FiscalYearStartMonth: 4}
	w := f.engine.CurrentWindow()
	assert.Equal(t, "2024-04-01", w.Start.String())
	assert.Equal(t, "2025-03-31", w.End.String())
}
