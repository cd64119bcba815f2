package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func date(s string) generic.TimePoint { return generic.MustDate(s) }

func datePtr(s string) *generic.TimePoint {
	d := date(s)
	return &d
}

func days(n float64) generic.Amount { return generic.Days(n) }

func year(y int) generic.Period {
	return generic.Period{Start: generic.StartOfYear(y), End: generic.EndOfYear(y)}
}

func policy(id string, t leave.LeaveType, c leave.Classification, annual int64, paid bool) leave.LeavePolicy {
	return leave.LeavePolicy{
		ID:             id,
		Name:           id,
		LeaveType:      t,
		Classification: c,
		AnnualDays:     decimal.NewFromInt(annual),
		IsPaid:         paid,
		IsActive:       true,
	}
}

func employee(id string, join string) leave.Employee {
	return leave.Employee{
		ID:        generic.EntityID(id),
		Name:      id,
		JoinDate:  date(join),
		Probation: leave.Probation{Status: leave.ProbationNone},
	}
}

func request(id, emp string, t leave.LeaveType, start, end string, n float64, status leave.LeaveStatus) leave.LeaveRequest {
	return leave.LeaveRequest{
		ID:          id,
		EmployeeID:  generic.EntityID(emp),
		LeaveType:   t,
		Start:       date(start),
		End:         date(end),
		TotalDays:   days(n),
		Status:      status,
		SubmittedAt: date(start).Time.Add(-24 * time.Hour),
	}
}

// fixedNow pins the service and engine clock to 2024-06-01.
func fixedNow() time.Time { return time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC) }

type fixture struct {
	store   *memory.Store
	engine  *leave.Engine
	service *leave.Service
}

func newFixture(t *testing.T, policies ...leave.LeavePolicy) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	for _, p := range policies {
		require.NoError(t, store.SavePolicy(ctx, p))
	}

	engine := leave.NewEngine(store, leave.ResolveStrict, generic.PeriodConfig{Type: generic.PeriodCalendarYear}, nil)
	engine.Now = fixedNow
	svc := leave.NewService(store, engine, nil)
	svc.Now = fixedNow
	return &fixture{store: store, engine: engine, service: svc}
}

func (f *fixture) addEmployee(t *testing.T, e leave.Employee) {
	t.Helper()
	require.NoError(t, f.store.SaveEmployee(context.Background(), e))
}
