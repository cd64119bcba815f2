package leave

import (
	"context"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// REPOSITORIES - Injected into Engine and Service
// =============================================================================

type EmployeeRepository interface {
	// GetEmployee returns a *NotFoundError when the employee doesn't exist.
	GetEmployee(ctx context.Context, id generic.EntityID) (Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	// SaveEmployee inserts or replaces the employee.
	SaveEmployee(ctx context.Context, e Employee) error
}

type PolicyRepository interface {
	// GetPolicy returns a *NotFoundError when the policy doesn't exist.
	GetPolicy(ctx context.Context, id string) (LeavePolicy, error)
	// ListPolicies returns every policy, active or not.
	ListPolicies(ctx context.Context) ([]LeavePolicy, error)
	SavePolicy(ctx context.Context, p LeavePolicy) error
}

type LeaveRequestRepository interface {
	// GetRequest returns a *NotFoundError when the request doesn't exist.
	GetRequest(ctx context.Context, id string) (LeaveRequest, error)
	// SaveRequest inserts or replaces the request.
	SaveRequest(ctx context.Context, r LeaveRequest) error
	// ListRequests returns matching requests ordered by start date, then submission.
	ListRequests(ctx context.Context, f RequestFilter) ([]LeaveRequest, error)
}

type HolidayRepository interface {
	SaveHoliday(ctx context.Context, h generic.Holiday) error
	DeleteHoliday(ctx context.Context, id string) error
	ListHolidays(ctx context.Context) ([]generic.Holiday, error)
}

// Repository is the full read/write surface. Inside Store.WithTx every call
// runs in the same database transaction.
type Repository interface {
	EmployeeRepository
	PolicyRepository
	LeaveRequestRepository
	HolidayRepository
	generic.Store
}

// Store is a Repository that can run a function atomically.
//
// WithTx commits when fn returns nil and rolls back otherwise. Stores that
// detect write conflicts return generic.ErrConcurrentModification so the
// caller can retry.
type Store interface {
	Repository
	WithTx(ctx context.Context, fn func(Repository) error) error
}

// RequestFilter selects leave requests. Zero fields don't filter.
type RequestFilter struct {
	EmployeeID  generic.EntityID
	EmployeeIDs []generic.EntityID
	LeaveType   LeaveType
	Statuses    []LeaveStatus
	// From/To keep requests whose range overlaps [From, To].
	From *generic.TimePoint
	To   *generic.TimePoint
}

// Matches applies the filter to a single request.
func (f RequestFilter) Matches(r LeaveRequest) bool {
	if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
		return false
	}
	if len(f.EmployeeIDs) > 0 && !containsEntity(f.EmployeeIDs, r.EmployeeID) {
		return false
	}
	if f.LeaveType != "" && r.LeaveType != f.LeaveType {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, r.Status) {
		return false
	}
	if f.From != nil && r.End.Before(*f.From) {
		return false
	}
	if f.To != nil && r.Start.After(*f.To) {
		return false
	}
	return true
}

func containsEntity(ids []generic.EntityID, id generic.EntityID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsStatus(statuses []LeaveStatus, s LeaveStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

// LoadHistory reads everything needed to compute balances for one employee.
func LoadHistory(ctx context.Context, repo Repository, id generic.EntityID, mode ResolutionMode) (History, error) {
	emp, err := repo.GetEmployee(ctx, id)
	if err != nil {
		return History{}, err
	}
	policies, err := repo.ListPolicies(ctx)
	if err != nil {
		return History{}, err
	}
	reqs, err := repo.ListRequests(ctx, RequestFilter{EmployeeID: id})
	if err != nil {
		return History{}, err
	}

	adjustments := make(map[LeaveType][]generic.Transaction)
	for _, t := range LeaveTypes {
		txs, err := repo.Load(ctx, id, t.Account())
		if err != nil {
			return History{}, err
		}
		if len(txs) > 0 {
			adjustments[t] = txs
		}
	}

	return History{
		Employee:    emp,
		Policies:    policies,
		Requests:    reqs,
		Adjustments: adjustments,
		Mode:        mode,
	}, nil
}
