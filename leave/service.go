package leave

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// SERVICE - Mutations with transactional guarantees
// =============================================================================

// Service owns every write: request lifecycle, balance adjustments,
// probation transitions, policies, employees and holidays.
//
// CreateRequest is the one read-check-write path that must never race:
// the overlap check and the insert run under the employee's lock stripe AND
// inside a single store transaction, so two overlapping requests for the
// same employee can't both be accepted even across processes sharing a
// database.
type Service struct {
	Store  Store
	Engine *Engine
	Logger *zap.Logger
	Now    func() time.Time

	// HoursPerDay converts short-leave hours to days.
	HoursPerDay decimal.Decimal
	// SkipNonWorkdays excludes weekends and holidays from the day count.
	SkipNonWorkdays bool
	// MaxRetries bounds retries after generic.ErrConcurrentModification.
	MaxRetries int

	locks [lockStripes]sync.Mutex
}

// lockStripes bounds the per-employee locks; ids sharing a stripe serialize.
const lockStripes = 64

func NewService(store Store, engine *Engine, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Store:       store,
		Engine:      engine,
		Logger:      logger,
		Now:         time.Now,
		HoursPerDay: decimal.NewFromInt(8),
		MaxRetries:  3,
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *Service) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Service) mode() ResolutionMode {
	if s.Engine == nil || s.Engine.Mode == "" {
		return ResolveStrict
	}
	return s.Engine.Mode
}

func (s *Service) periods() generic.PeriodConfig {
	if s.Engine == nil {
		return generic.PeriodConfig{Type: generic.PeriodCalendarYear}
	}
	return s.Engine.Periods
}

func (s *Service) lock(id generic.EntityID) func() {
	mu := s.stripe(id)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) stripe(id generic.EntityID) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &s.locks[h.Sum32()%lockStripes]
}

// withRetry runs fn in a store transaction, retrying on concurrent modification.
func (s *Service) withRetry(ctx context.Context, fn func(Repository) error) error {
	attempts := s.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = s.Store.WithTx(ctx, fn)
		if err == nil || !generic.IsRetryable(err) {
			return err
		}
		s.log().Debug("retrying transaction", zap.Int("attempt", i+1), zap.Error(err))
	}
	return err
}

// =============================================================================
// CREATE REQUEST
// =============================================================================

// NewRequest is the input of CreateRequest.
type NewRequest struct {
	EmployeeID      generic.EntityID
	LeaveType       LeaveType
	Start           generic.TimePoint
	End             generic.TimePoint
	IsHalfDay       bool
	ShortLeaveHours decimal.Decimal
	// Days overrides the computed day count when set.
	Days   *decimal.Decimal
	Reason string
}

// CountDays returns the leave days a request consumes.
//
//   - half-day: 0.5, start and end must be the same date
//   - short leave: hours / HoursPerDay, start and end must be the same date
//   - otherwise: calendar days in [start, end], or workdays when
//     SkipNonWorkdays is on
func (s *Service) CountDays(ctx context.Context, nr NewRequest) (generic.Amount, error) {
	p := generic.Period{Start: nr.Start, End: nr.End}
	if nr.Start.IsZero() || nr.End.IsZero() {
		return generic.ZeroDays, &InvalidRangeError{Start: nr.Start, End: nr.End, Detail: "start and end dates are required"}
	}
	if nr.End.Before(nr.Start) {
		return generic.ZeroDays, &InvalidRangeError{Start: nr.Start, End: nr.End, Detail: "end date is before start date"}
	}
	if nr.IsHalfDay && nr.ShortLeaveHours.IsPositive() {
		return generic.ZeroDays, fmt.Errorf("%w: a request is either half-day or short leave, not both", generic.ErrInvalidInput)
	}

	var days generic.Amount
	switch {
	case nr.IsHalfDay || nr.ShortLeaveHours.IsPositive():
		if !nr.Start.Equal(nr.End) {
			return generic.ZeroDays, &InvalidRangeError{Start: nr.Start, End: nr.End, Detail: "half-day and short leave must be a single date"}
		}
		if nr.IsHalfDay {
			days = generic.Days(0.5)
		} else {
			hpd := s.HoursPerDay
			if !hpd.IsPositive() {
				hpd = decimal.NewFromInt(8)
			}
			days = generic.DaysFromDecimal(nr.ShortLeaveHours.Div(hpd)).Round()
		}
	case nr.ShortLeaveHours.IsNegative():
		return generic.ZeroDays, &InvalidRangeError{Start: nr.Start, End: nr.End, Detail: "short leave hours must be positive"}
	case s.SkipNonWorkdays:
		holidays, err := s.Store.ListHolidays(ctx)
		if err != nil {
			return generic.ZeroDays, err
		}
		days = generic.DaysFromInt(p.Workdays(generic.HolidayList(holidays)))
	default:
		days = generic.DaysFromInt(p.DayCount())
	}

	if nr.Days != nil {
		override := generic.DaysFromDecimal(*nr.Days)
		if override.GreaterThan(generic.DaysFromInt(p.DayCount())) {
			return generic.ZeroDays, &InvalidRangeError{Start: nr.Start, End: nr.End, Days: override, Detail: "more days than the range spans"}
		}
		days = override
	}

	if !days.IsPositive() {
		return generic.ZeroDays, &InvalidRangeError{Start: nr.Start, End: nr.End, Days: days, Detail: "day count must be positive"}
	}
	return days, nil
}

// CreateRequest validates and stores a pending request with its paid split.
//
// Errors:
//   - *InvalidRangeError for bad dates or a non-positive day count
//   - *NotFoundError when the employee doesn't exist
//   - *ConflictError when a pending/approved request overlaps the range
func (s *Service) CreateRequest(ctx context.Context, nr NewRequest) (LeaveRequest, error) {
	if !nr.LeaveType.Valid() {
		return LeaveRequest{}, fmt.Errorf("%w: unknown leave type %q", generic.ErrInvalidInput, nr.LeaveType)
	}
	days, err := s.CountDays(ctx, nr)
	if err != nil {
		return LeaveRequest{}, err
	}

	unlock := s.lock(nr.EmployeeID)
	defer unlock()

	var created LeaveRequest
	err = s.withRetry(ctx, func(repo Repository) error {
		from, to := nr.Start, nr.End
		existing, err := repo.ListRequests(ctx, RequestFilter{
			EmployeeID: nr.EmployeeID,
			Statuses:   []LeaveStatus{StatusPending, StatusApproved},
			From:       &from,
			To:         &to,
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return &ConflictError{EmployeeID: nr.EmployeeID, Existing: existing[0]}
		}

		h, err := LoadHistory(ctx, repo, nr.EmployeeID, s.mode())
		if err != nil {
			return err
		}

		req := LeaveRequest{
			ID:              uuid.NewString(),
			EmployeeID:      nr.EmployeeID,
			LeaveType:       nr.LeaveType,
			Start:           nr.Start,
			End:             nr.End,
			TotalDays:       days,
			Status:          StatusPending,
			IsHalfDay:       nr.IsHalfDay,
			ShortLeaveHours: nr.ShortLeaveHours,
			Reason:          nr.Reason,
			SubmittedAt:     s.now(),
		}
		split := h.PaidUnpaid(req)
		req.IsPaid, req.PaidDays, req.UnpaidDays = split.IsPaid, split.PaidDays, split.UnpaidDays

		if err := repo.SaveRequest(ctx, req); err != nil {
			return err
		}
		created = req
		return nil
	})
	if err != nil {
		return LeaveRequest{}, err
	}

	s.log().Info("leave request created",
		zap.String("request_id", created.ID),
		zap.String("employee_id", string(created.EmployeeID)),
		zap.String("leave_type", string(created.LeaveType)),
		zap.String("days", created.TotalDays.String()),
		zap.Bool("is_paid", created.IsPaid))
	return created, nil
}

// =============================================================================
// APPROVE / REJECT - pending only; both are terminal
// =============================================================================

func (s *Service) Approve(ctx context.Context, requestID, actor string) (LeaveRequest, error) {
	return s.decide(ctx, requestID, actor, StatusApproved, "")
}

func (s *Service) Reject(ctx context.Context, requestID, actor, reason string) (LeaveRequest, error) {
	return s.decide(ctx, requestID, actor, StatusRejected, reason)
}

func (s *Service) decide(ctx context.Context, requestID, actor string, to LeaveStatus, reason string) (LeaveRequest, error) {
	var out LeaveRequest
	err := s.withRetry(ctx, func(repo Repository) error {
		r, err := repo.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if r.Status != StatusPending {
			return &TransitionError{Subject: "leave request", From: string(r.Status), To: string(to)}
		}
		at := s.now()
		r.Status = to
		r.DecidedBy = actor
		r.DecidedAt = &at
		r.RejectionReason = reason
		if err := repo.SaveRequest(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return LeaveRequest{}, err
	}

	s.log().Info("leave request decided",
		zap.String("request_id", out.ID),
		zap.String("status", string(out.Status)),
		zap.String("actor", actor))
	return out, nil
}

// =============================================================================
// RECOMPUTE PAID STATUS - explicit re-derivation of stamped paid splits
// =============================================================================

// RecomputePaidStatus re-derives the paid split of every non-rejected request
// of an employee and returns how many requests changed.
func (s *Service) RecomputePaidStatus(ctx context.Context, id generic.EntityID) (int, error) {
	unlock := s.lock(id)
	defer unlock()

	changed := 0
	err := s.withRetry(ctx, func(repo Repository) error {
		changed = 0
		h, err := LoadHistory(ctx, repo, id, s.mode())
		if err != nil {
			return err
		}
		for _, r := range h.Requests {
			if r.Status == StatusRejected {
				continue
			}
			split := h.PaidUnpaid(r)
			if r.IsPaid == split.IsPaid && r.PaidDays.Equal(split.PaidDays) && r.UnpaidDays.Equal(split.UnpaidDays) {
				continue
			}
			r.IsPaid, r.PaidDays, r.UnpaidDays = split.IsPaid, split.PaidDays, split.UnpaidDays
			if err := repo.SaveRequest(ctx, r); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	return changed, err
}

// RecomputeAll runs RecomputePaidStatus for every employee. Failures are
// logged per employee and do not stop the run.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	emps, err := s.Store.ListEmployees(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, e := range emps {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.RecomputePaidStatus(ctx, e.ID)
		if err != nil {
			s.log().Warn("paid status recompute failed",
				zap.String("employee_id", string(e.ID)), zap.Error(err))
			continue
		}
		total += n
	}
	return total, nil
}

// =============================================================================
// BALANCE ADJUSTMENT - append-only ledger write
// =============================================================================

type Adjustment struct {
	EmployeeID     generic.EntityID
	LeaveType      LeaveType
	Delta          decimal.Decimal
	EffectiveAt    generic.TimePoint
	Reason         string
	Actor          string
	IdempotencyKey string
}

// AdjustBalance appends a manual adjustment. A negative adjustment that
// would leave the remaining balance of its window below zero is refused.
func (s *Service) AdjustBalance(ctx context.Context, adj Adjustment) (generic.Transaction, error) {
	if !adj.LeaveType.Valid() {
		return generic.Transaction{}, fmt.Errorf("%w: unknown leave type %q", generic.ErrInvalidInput, adj.LeaveType)
	}
	if adj.Delta.IsZero() {
		return generic.Transaction{}, fmt.Errorf("%w: adjustment must be non-zero", generic.ErrInvalidInput)
	}
	if adj.EffectiveAt.IsZero() {
		adj.EffectiveAt = generic.Date(s.now())
	}

	unlock := s.lock(adj.EmployeeID)
	defer unlock()

	tx := generic.Transaction{
		ID:             generic.TransactionID(uuid.NewString()),
		EntityID:       adj.EmployeeID,
		AccountID:      adj.LeaveType.Account(),
		EffectiveAt:    adj.EffectiveAt,
		Delta:          generic.DaysFromDecimal(adj.Delta).Round(),
		Type:           generic.TxAdjustment,
		Reason:         adj.Reason,
		IdempotencyKey: adj.IdempotencyKey,
		CreatedBy:      adj.Actor,
		CreatedAt:      generic.Date(s.now()),
	}

	err := s.withRetry(ctx, func(repo Repository) error {
		h, err := LoadHistory(ctx, repo, adj.EmployeeID, s.mode())
		if err != nil {
			return err
		}
		if tx.Delta.IsNegative() {
			window := s.periods().PeriodFor(adj.EffectiveAt)
			snap := h.Snapshot(window, adj.EffectiveAt)
			b, ok := snap.Balances[adj.LeaveType]
			if !ok {
				if _, err := h.Policy(adj.LeaveType); err != nil {
					return err
				}
			}
			if b.Remaining.Add(tx.Delta).IsNegative() {
				return &InsufficientBalanceError{
					EmployeeID: adj.EmployeeID,
					LeaveType:  adj.LeaveType,
					Available:  b.Remaining,
					Requested:  tx.Delta.Neg(),
				}
			}
		}
		return generic.NewLedger(repo).Append(ctx, tx)
	})
	if err != nil {
		return generic.Transaction{}, err
	}

	s.log().Info("leave balance adjusted",
		zap.String("employee_id", string(adj.EmployeeID)),
		zap.String("leave_type", string(adj.LeaveType)),
		zap.String("delta", tx.Delta.String()),
		zap.String("actor", adj.Actor))
	return tx, nil
}

// Adjustments lists the ledger rows of one employee and leave type.
func (s *Service) Adjustments(ctx context.Context, id generic.EntityID, leaveType LeaveType) ([]generic.Transaction, error) {
	return generic.NewLedger(s.Store).Transactions(ctx, id, leaveType.Account())
}

// AdjustmentsIn lists the ledger rows effective inside window.
func (s *Service) AdjustmentsIn(ctx context.Context, id generic.EntityID, leaveType LeaveType, window generic.Period) ([]generic.Transaction, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	return generic.NewLedger(s.Store).TransactionsInRange(ctx, id, leaveType.Account(), window.Start, window.End)
}

// =============================================================================
// PROBATION TRANSITIONS
// =============================================================================

func (s *Service) StartProbation(ctx context.Context, id generic.EntityID, start generic.TimePoint, durationDays int) (Employee, error) {
	return s.mutateProbation(ctx, id, func(p *Probation) error { return p.Begin(start, durationDays) })
}

func (s *Service) CompleteProbation(ctx context.Context, id generic.EntityID, at generic.TimePoint) (Employee, error) {
	return s.mutateProbation(ctx, id, func(p *Probation) error { return p.Complete(at) })
}

func (s *Service) ExtendProbation(ctx context.Context, id generic.EntityID, newEnd generic.TimePoint) (Employee, error) {
	return s.mutateProbation(ctx, id, func(p *Probation) error { return p.Extend(newEnd) })
}

func (s *Service) TerminateProbation(ctx context.Context, id generic.EntityID, at generic.TimePoint) (Employee, error) {
	return s.mutateProbation(ctx, id, func(p *Probation) error { return p.Terminate(at) })
}

func (s *Service) mutateProbation(ctx context.Context, id generic.EntityID, fn func(*Probation) error) (Employee, error) {
	var out Employee
	err := s.withRetry(ctx, func(repo Repository) error {
		e, err := repo.GetEmployee(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(&e.Probation); err != nil {
			return err
		}
		if err := repo.SaveEmployee(ctx, e); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return Employee{}, err
	}
	s.log().Info("probation updated",
		zap.String("employee_id", string(id)),
		zap.String("status", string(out.Probation.Status)))
	return out, nil
}

// =============================================================================
// EMPLOYEES, POLICIES, HOLIDAYS
// =============================================================================

// CreateEmployee validates and stores a new employee, assigning an ID when empty.
func (s *Service) CreateEmployee(ctx context.Context, e Employee) (Employee, error) {
	if e.ID == "" {
		e.ID = generic.EntityID(uuid.NewString())
	}
	if e.Probation.Status == "" {
		e.Probation.Status = ProbationNone
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	if err := e.Validate(); err != nil {
		return Employee{}, err
	}
	if e.ManagerID == e.ID {
		return Employee{}, fmt.Errorf("%w: employee cannot manage themselves", generic.ErrInvalidInput)
	}
	if err := s.Store.SaveEmployee(ctx, e); err != nil {
		return Employee{}, err
	}
	return e, nil
}

// Team returns the employees reporting to managerID.
func (s *Service) Team(ctx context.Context, managerID generic.EntityID) ([]Employee, error) {
	all, err := s.Store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	var team []Employee
	for _, e := range all {
		if e.ManagerID == managerID {
			team = append(team, e)
		}
	}
	return team, nil
}

// SavePolicy validates and stores a policy. Activating a second policy for
// the same (leave type, classification) pair is refused so resolution stays
// unambiguous.
func (s *Service) SavePolicy(ctx context.Context, p LeavePolicy) (LeavePolicy, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := p.Validate(); err != nil {
		return LeavePolicy{}, err
	}
	err := s.withRetry(ctx, func(repo Repository) error {
		if p.IsActive {
			existing, err := repo.ListPolicies(ctx)
			if err != nil {
				return err
			}
			for _, other := range existing {
				if other.ID != p.ID && other.IsActive && other.LeaveType == p.LeaveType && other.Classification == p.Classification {
					return fmt.Errorf("%w: policy %s is already active for %s leave of %s employees",
						generic.ErrConflict, other.ID, p.LeaveType, p.Classification)
				}
			}
		}
		return repo.SavePolicy(ctx, p)
	})
	if err != nil {
		return LeavePolicy{}, err
	}
	return p, nil
}

func (s *Service) AddHoliday(ctx context.Context, h generic.Holiday) (generic.Holiday, error) {
	if h.Date.IsZero() || h.Name == "" {
		return generic.Holiday{}, fmt.Errorf("%w: holiday date and name are required", generic.ErrInvalidInput)
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if err := s.Store.SaveHoliday(ctx, h); err != nil {
		return generic.Holiday{}, err
	}
	return h, nil
}

func (s *Service) RemoveHoliday(ctx context.Context, id string) error {
	return s.Store.DeleteHoliday(ctx, id)
}

// AsConflict returns the *ConflictError in err's chain, if any.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	ok := errors.As(err, &ce)
	return ce, ok
}
