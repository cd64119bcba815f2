package leave

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// ENGINE - Read-only balance queries over a Repository
// =============================================================================

// Engine answers balance questions. It never writes.
//
// Failure semantics:
//   - single-employee calls return lookup failures to the caller
//   - team calls log the failure, record it and carry on with the rest
//   - PaidUnpaid treats a missing employee or policy as zero paid days
type Engine struct {
	Repo    Repository
	Mode    ResolutionMode
	Periods generic.PeriodConfig
	Logger  *zap.Logger
	Now     func() time.Time
	// SkipNonWorkdays splits requests over months by workdays.
	SkipNonWorkdays bool
}

func NewEngine(repo Repository, mode ResolutionMode, periods generic.PeriodConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{Repo: repo, Mode: mode, Periods: periods, Logger: logger, Now: time.Now}
}

// Today is the engine clock truncated to a date.
func (e *Engine) Today() generic.TimePoint {
	if e.Now == nil {
		return generic.Today()
	}
	return generic.Date(e.Now())
}

func (e *Engine) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// YearWindow returns the balance window labelled year.
func (e *Engine) YearWindow(year int) generic.Period {
	return e.Periods.YearWindow(year)
}

// CurrentWindow returns the balance window containing today.
func (e *Engine) CurrentWindow() generic.Period {
	return e.Periods.PeriodFor(e.Today())
}

// History loads the computation inputs for one employee.
func (e *Engine) History(ctx context.Context, id generic.EntityID) (History, error) {
	h, err := LoadHistory(ctx, e.Repo, id, e.Mode)
	if err != nil {
		return History{}, err
	}
	if e.SkipNonWorkdays {
		holidays, err := e.Repo.ListHolidays(ctx)
		if err != nil {
			return History{}, err
		}
		h.SkipNonWorkdays = true
		h.Holidays = holidays
	}
	return h, nil
}

// Entitlement returns the tenure-to-date accrual of leaveType as of asOf.
// A missing employee or policy is a hard error here.
func (e *Engine) Entitlement(ctx context.Context, id generic.EntityID, leaveType LeaveType, asOf generic.TimePoint) (generic.Amount, error) {
	h, err := e.History(ctx, id)
	if err != nil {
		return generic.ZeroDays, err
	}
	return h.Entitlement(leaveType, asOf)
}

// Snapshot returns one employee's balances in window as of asOf.
func (e *Engine) Snapshot(ctx context.Context, id generic.EntityID, window generic.Period, asOf generic.TimePoint) (EntitlementSnapshot, error) {
	if err := window.Validate(); err != nil {
		return EntitlementSnapshot{}, err
	}
	h, err := e.History(ctx, id)
	if err != nil {
		return EntitlementSnapshot{}, err
	}
	return h.Snapshot(window, asOf), nil
}

// TeamReport is the result of a multi-employee query. Failures maps the
// employees that could not be computed to the reason.
type TeamReport struct {
	Snapshots []EntitlementSnapshot
	Failures  map[generic.EntityID]string
}

// TeamSnapshots computes snapshots for ids. An employee that fails is logged
// and reported in Failures; the rest of the batch is unaffected.
func (e *Engine) TeamSnapshots(ctx context.Context, ids []generic.EntityID, window generic.Period, asOf generic.TimePoint) (TeamReport, error) {
	if err := window.Validate(); err != nil {
		return TeamReport{}, err
	}
	report := TeamReport{Failures: make(map[generic.EntityID]string)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		snap, err := e.Snapshot(ctx, id, window, asOf)
		if err != nil {
			e.log().Warn("skipping employee in team balance",
				zap.String("employee_id", string(id)), zap.Error(err))
			report.Failures[id] = err.Error()
			continue
		}
		report.Snapshots = append(report.Snapshots, snap)
	}
	return report, nil
}

// PaidUnpaid returns the paid/unpaid split of a stored request, computed
// from current data. A missing request is an error; a missing employee or
// policy yields zero paid days.
func (e *Engine) PaidUnpaid(ctx context.Context, requestID string) (PaidUnpaidResult, error) {
	r, err := e.Repo.GetRequest(ctx, requestID)
	if err != nil {
		return PaidUnpaidResult{}, err
	}

	h, err := e.History(ctx, r.EmployeeID)
	if err != nil {
		if !generic.IsNotFound(err) {
			return PaidUnpaidResult{}, err
		}
		e.log().Warn("employee lookup failed, reporting request as unpaid",
			zap.String("request_id", requestID),
			zap.String("employee_id", string(r.EmployeeID)), zap.Error(err))
		days := r.TotalDays.Round()
		return PaidUnpaidResult{
			LeaveRequestID: r.ID,
			PaidDays:       generic.ZeroDays,
			UnpaidDays:     days,
			Reason:         ReasonNoPolicy,
		}, nil
	}
	return h.PaidUnpaid(r), nil
}

// MonthlyBreakdown returns one employee's paid/unpaid days per month.
func (e *Engine) MonthlyBreakdown(ctx context.Context, id generic.EntityID, window generic.Period) (MonthlyBreakdown, error) {
	if err := window.Validate(); err != nil {
		return MonthlyBreakdown{}, err
	}
	h, err := e.History(ctx, id)
	if err != nil {
		return MonthlyBreakdown{}, err
	}
	return h.MonthlyBreakdown(window), nil
}

// TeamMonthlyBreakdown returns a breakdown per employee in ids, or for every
// employee when ids is empty. Failing employees are logged and skipped.
func (e *Engine) TeamMonthlyBreakdown(ctx context.Context, ids []generic.EntityID, window generic.Period) ([]MonthlyBreakdown, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		emps, err := e.Repo.ListEmployees(ctx)
		if err != nil {
			return nil, err
		}
		for _, emp := range emps {
			ids = append(ids, emp.ID)
		}
	}

	var out []MonthlyBreakdown
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		b, err := e.MonthlyBreakdown(ctx, id, window)
		if err != nil {
			e.log().Warn("skipping employee in monthly breakdown",
				zap.String("employee_id", string(id)), zap.Error(err))
			continue
		}
		out = append(out, b)
	}
	return out, nil
}
