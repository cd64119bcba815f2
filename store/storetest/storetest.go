// Package storetest is a conformance suite every leave.Store implementation runs.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) leave.Store

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Employees", func(t *testing.T) { testEmployees(t, newStore(t)) })
	t.Run("Policies", func(t *testing.T) { testPolicies(t, newStore(t)) })
	t.Run("Requests", func(t *testing.T) { testRequests(t, newStore(t)) })
	t.Run("RequestFilter", func(t *testing.T) { testRequestFilter(t, newStore(t)) })
	t.Run("Holidays", func(t *testing.T) { testHolidays(t, newStore(t)) })
	t.Run("Ledger", func(t *testing.T) { testLedger(t, newStore(t)) })
	t.Run("WithTx", func(t *testing.T) { testWithTx(t, newStore(t)) })
	t.Run("WriteDuringFailedTx", func(t *testing.T) { testWriteDuringFailedTx(t, newStore(t)) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, newStore(t)) })
}

func date(s string) generic.TimePoint { return generic.MustDate(s) }

func datePtr(s string) *generic.TimePoint {
	d := date(s)
	return &d
}

func testEmployees(t *testing.T, s leave.Store) {
	ctx := context.Background()

	_, err := s.GetEmployee(ctx, "nobody")
	assert.True(t, generic.IsNotFound(err))
	assert.ErrorIs(t, err, generic.ErrEntityNotFound)

	e := leave.Employee{
		ID:             "emp-1",
		Name:           "Ada",
		Email:          "ada@example.com",
		JoinDate:       date("2024-01-15"),
		Classification: leave.Onshore,
		ManagerID:      "mgr-1",
		Probation: leave.Probation{
			Status:       leave.ProbationActive,
			Start:        datePtr("2024-01-15"),
			End:          datePtr("2024-04-13"),
			DurationDays: 90,
		},
		CreatedAt: time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveEmployee(ctx, e))
	require.NoError(t, s.SaveEmployee(ctx, leave.Employee{
		ID: "emp-0", JoinDate: date("2020-01-01"), Probation: leave.Probation{Status: leave.ProbationNone},
	}))

	got, err := s.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, e.Name, got.Name)
	assert.Equal(t, e.Email, got.Email)
	assert.True(t, e.JoinDate.Equal(got.JoinDate))
	assert.Equal(t, leave.Onshore, got.Classification)
	assert.Equal(t, generic.EntityID("mgr-1"), got.ManagerID)
	assert.Equal(t, leave.ProbationActive, got.Probation.Status)
	require.NotNil(t, got.Probation.Start)
	require.NotNil(t, got.Probation.End)
	assert.Equal(t, "2024-04-13", got.Probation.End.String())
	assert.Equal(t, 90, got.Probation.DurationDays)

	// update in place
	e.Probation.Status = leave.ProbationCompleted
	require.NoError(t, s.SaveEmployee(ctx, e))
	got, err = s.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, leave.ProbationCompleted, got.Probation.Status)

	all, err := s.ListEmployees(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, generic.EntityID("emp-0"), all[0].ID)
	assert.Nil(t, all[0].Probation.Start)
	assert.Equal(t, leave.Unclassified, all[0].Classification)
}

func testPolicies(t *testing.T, s leave.Store) {
	ctx := context.Background()

	_, err := s.GetPolicy(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrPolicyNotFound)

	p := leave.LeavePolicy{
		ID:             "annual-onshore",
		Name:           "Annual (onshore)",
		LeaveType:      leave.LeaveAnnual,
		Classification: leave.Onshore,
		AnnualDays:     decimal.RequireFromString("22.5"),
		IsPaid:         true,
		IsActive:       true,
	}
	require.NoError(t, s.SavePolicy(ctx, p))
	require.NoError(t, s.SavePolicy(ctx, leave.LeavePolicy{
		ID: "unpaid", LeaveType: leave.LeaveUnpaid, AnnualDays: decimal.Zero, IsActive: true,
	}))

	got, err := s.GetPolicy(ctx, "annual-onshore")
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.True(t, p.AnnualDays.Equal(got.AnnualDays))
	assert.True(t, got.IsPaid)

	p.IsActive = false
	require.NoError(t, s.SavePolicy(ctx, p))

	all, err := s.ListPolicies(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "annual-onshore", all[0].ID)
	assert.False(t, all[0].IsActive)
	assert.False(t, all[1].IsPaid)
}

func testRequests(t *testing.T, s leave.Store) {
	ctx := context.Background()

	_, err := s.GetRequest(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))

	submitted := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	r := leave.LeaveRequest{
		ID:              "req-1",
		EmployeeID:      "emp-1",
		LeaveType:       leave.LeaveCasual,
		Start:           date("2024-03-04"),
		End:             date("2024-03-04"),
		TotalDays:       generic.Days(0.25),
		Status:          leave.StatusPending,
		ShortLeaveHours: decimal.NewFromInt(2),
		Reason:          "dentist",
		SubmittedAt:     submitted,
		IsPaid:          true,
		PaidDays:        generic.Days(0.25),
		UnpaidDays:      generic.ZeroDays,
	}
	require.NoError(t, s.SaveRequest(ctx, r))

	got, err := s.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "0.25", got.TotalDays.String())
	assert.True(t, got.ShortLeaveHours.Equal(decimal.NewFromInt(2)))
	assert.True(t, got.Concentrated())
	assert.Equal(t, "dentist", got.Reason)
	assert.True(t, got.SubmittedAt.Equal(submitted))
	assert.Nil(t, got.DecidedAt)
	assert.True(t, got.IsPaid)

	decided := submitted.Add(time.Hour)
	r.Status = leave.StatusRejected
	r.DecidedBy = "mgr-1"
	r.DecidedAt = &decided
	r.RejectionReason = "coverage"
	require.NoError(t, s.SaveRequest(ctx, r))

	got, err = s.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, got.Status)
	assert.Equal(t, "mgr-1", got.DecidedBy)
	require.NotNil(t, got.DecidedAt)
	assert.True(t, got.DecidedAt.Equal(decided))
	assert.Equal(t, "coverage", got.RejectionReason)
}

func testRequestFilter(t *testing.T, s leave.Store) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	save := func(id, emp string, lt leave.LeaveType, start, end string, status leave.LeaveStatus, order int) {
		t.Helper()
		require.NoError(t, s.SaveRequest(ctx, leave.LeaveRequest{
			ID: id, EmployeeID: generic.EntityID(emp), LeaveType: lt,
			Start: date(start), End: date(end), TotalDays: generic.Days(1),
			Status: status, SubmittedAt: base.Add(time.Duration(order) * time.Hour),
		}))
	}
	save("b", "emp-1", leave.LeaveAnnual, "2024-03-10", "2024-03-12", leave.StatusApproved, 2)
	save("a", "emp-1", leave.LeaveSick, "2024-03-01", "2024-03-02", leave.StatusPending, 1)
	save("c", "emp-1", leave.LeaveAnnual, "2024-03-10", "2024-03-10", leave.StatusRejected, 3)
	save("d", "emp-2", leave.LeaveAnnual, "2024-03-05", "2024-03-06", leave.StatusPending, 4)

	ids := func(rs []leave.LeaveRequest) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.ID
		}
		return out
	}

	all, err := s.ListRequests(ctx, leave.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d", "b", "c"}, ids(all))

	emp1, err := s.ListRequests(ctx, leave.RequestFilter{EmployeeID: "emp-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(emp1))

	blocking, err := s.ListRequests(ctx, leave.RequestFilter{
		EmployeeID: "emp-1",
		Statuses:   []leave.LeaveStatus{leave.StatusPending, leave.StatusApproved},
		From:       datePtr("2024-03-12"),
		To:         datePtr("2024-03-20"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(blocking))

	none, err := s.ListRequests(ctx, leave.RequestFilter{
		EmployeeID: "emp-1", From: datePtr("2024-03-03"), To: datePtr("2024-03-09"),
	})
	require.NoError(t, err)
	assert.Empty(t, none)

	team, err := s.ListRequests(ctx, leave.RequestFilter{
		EmployeeIDs: []generic.EntityID{"emp-2", "emp-3"}, LeaveType: leave.LeaveAnnual,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, ids(team))
}

func testHolidays(t *testing.T, s leave.Store) {
	ctx := context.Background()

	require.NoError(t, s.SaveHoliday(ctx, generic.Holiday{ID: "xmas", Date: date("2024-12-25"), Name: "Christmas", Recurring: true}))
	require.NoError(t, s.SaveHoliday(ctx, generic.Holiday{ID: "ny", Date: date("2024-01-01"), Name: "New Year"}))

	hs, err := s.ListHolidays(ctx)
	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.Equal(t, "ny", hs[0].ID)
	assert.True(t, hs[1].Recurring)
	assert.True(t, generic.HolidayList(hs).IsHoliday(date("2026-12-25")))

	require.NoError(t, s.DeleteHoliday(ctx, "ny"))
	assert.True(t, generic.IsNotFound(s.DeleteHoliday(ctx, "ny")))

	hs, err = s.ListHolidays(ctx)
	require.NoError(t, err)
	assert.Len(t, hs, 1)
}

func adjustment(id, key, effective string, delta float64) generic.Transaction {
	return generic.Transaction{
		ID:             generic.TransactionID(id),
		EntityID:       "emp-1",
		AccountID:      leave.LeaveAnnual.Account(),
		EffectiveAt:    date(effective),
		Delta:          generic.Days(delta),
		Type:           generic.TxAdjustment,
		Reason:         "manual",
		IdempotencyKey: key,
		Metadata:       map[string]string{"source": "test"},
		CreatedBy:      "hr",
		CreatedAt:      date("2024-06-01"),
	}
}

func testLedger(t *testing.T, s leave.Store) {
	ctx := context.Background()
	ledger := generic.NewLedger(s)

	require.NoError(t, ledger.Append(ctx, adjustment("t2", "k2", "2024-05-01", -1.5)))
	require.NoError(t, ledger.Append(ctx, adjustment("t1", "k1", "2024-02-01", 3)))
	require.NoError(t, ledger.Append(ctx, adjustment("t3", "", "2024-08-01", 0.25)))

	assert.ErrorIs(t, ledger.Append(ctx, adjustment("t4", "k1", "2024-09-01", 1)), generic.ErrDuplicateIdempotencyKey)

	exists, err := s.Exists(ctx, "k2")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = s.Exists(ctx, "k9")
	require.NoError(t, err)
	assert.False(t, exists)

	txs, err := ledger.Transactions(ctx, "emp-1", leave.LeaveAnnual.Account())
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, generic.TransactionID("t1"), txs[0].ID)
	assert.Equal(t, "-1.50", txs[1].Delta.String())
	assert.Equal(t, "test", txs[0].Metadata["source"])
	assert.Equal(t, "hr", txs[0].CreatedBy)

	inRange, err := ledger.TransactionsInRange(ctx, "emp-1", leave.LeaveAnnual.Account(), date("2024-02-01"), date("2024-05-01"))
	require.NoError(t, err)
	assert.Len(t, inRange, 2)

	assert.Equal(t, "1.50", generic.SumUntil(txs, date("2024-06-30")).String())

	other, err := ledger.Transactions(ctx, "emp-1", leave.LeaveSick.Account())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func testWithTx(t *testing.T, s leave.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(r leave.Repository) error {
		if err := r.SaveEmployee(ctx, leave.Employee{ID: "ghost", JoinDate: date("2024-01-01"), Probation: leave.Probation{Status: leave.ProbationNone}}); err != nil {
			return err
		}
		if err := r.Append(ctx, adjustment("tx-ghost", "ghost-key", "2024-01-01", 1)); err != nil {
			return err
		}
		// reads inside the transaction see its own writes
		if _, err := r.GetEmployee(ctx, "ghost"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetEmployee(ctx, "ghost")
	assert.True(t, generic.IsNotFound(err), "rolled back employee must not be visible")
	exists, err := s.Exists(ctx, "ghost-key")
	require.NoError(t, err)
	assert.False(t, exists, "rolled back transaction must not be visible")

	require.NoError(t, s.WithTx(ctx, func(r leave.Repository) error {
		return r.SaveEmployee(ctx, leave.Employee{ID: "kept", JoinDate: date("2024-01-01"), Probation: leave.Probation{Status: leave.ProbationNone}})
	}))
	_, err = s.GetEmployee(ctx, "kept")
	assert.NoError(t, err)
}

func testWriteDuringFailedTx(t *testing.T, s leave.Store) {
	ctx := context.Background()
	boom := errors.New("boom")
	done := make(chan error, 2)
	received := 0

	// GIVEN writes issued outside a transaction while it is running
	err := s.WithTx(ctx, func(r leave.Repository) error {
		if err := r.SaveEmployee(ctx, leave.Employee{ID: "ghost", JoinDate: date("2024-01-01"), Probation: leave.Probation{Status: leave.ProbationNone}}); err != nil {
			return err
		}
		go func() {
			done <- s.SaveEmployee(ctx, leave.Employee{ID: "bob", JoinDate: date("2024-01-01"), Probation: leave.Probation{Status: leave.ProbationNone}})
		}()
		go func() {
			done <- s.Append(ctx, adjustment("tx-bob", "bob-key", "2024-01-01", 1))
		}()
		// Stores that serialize writers block both until the transaction ends.
		timeout := time.After(50 * time.Millisecond)
		for received < 2 {
			select {
			case err := <-done:
				require.NoError(t, err)
				received++
			case <-timeout:
				return boom
			}
		}
		// WHEN the transaction fails
		return boom
	})
	require.ErrorIs(t, err, boom)

	for ; received < 2; received++ {
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("writes outside the transaction never completed")
		}
	}

	// THEN only the transaction's own writes are rolled back
	_, err = s.GetEmployee(ctx, "bob")
	assert.NoError(t, err)
	exists, err := s.Exists(ctx, "bob-key")
	require.NoError(t, err)
	assert.True(t, exists)
	_, err = s.GetEmployee(ctx, "ghost")
	assert.True(t, generic.IsNotFound(err))
}

func testConcurrentCreate(t *testing.T, s leave.Store) {
	ctx := context.Background()
	require.NoError(t, s.SavePolicy(ctx, leave.LeavePolicy{
		ID: "annual", LeaveType: leave.LeaveAnnual, AnnualDays: decimal.NewFromInt(25), IsPaid: true, IsActive: true,
	}))
	require.NoError(t, s.SaveEmployee(ctx, leave.Employee{
		ID: "emp-1", JoinDate: date("2023-01-01"), Probation: leave.Probation{Status: leave.ProbationNone},
	}))

	// Separate services share nothing but the store, like separate processes.
	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc := leave.NewService(s, leave.NewEngine(s, leave.ResolveStrict, generic.PeriodConfig{}, nil), nil)
			svc.MaxRetries = 10
			_, errs[i] = svc.CreateRequest(ctx, leave.NewRequest{
				EmployeeID: "emp-1",
				LeaveType:  leave.LeaveAnnual,
				Start:      date("2024-07-01"),
				End:        date("2024-07-05"),
			})
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, generic.ErrConflict)
	}
	assert.Equal(t, 1, created)

	stored, err := s.ListRequests(ctx, leave.RequestFilter{EmployeeID: "emp-1"})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}
