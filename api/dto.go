/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication and keeps the leave
  package free of JSON tags. Amounts are rendered as fixed two-decimal
  strings ("12.50") so clients never see float rounding.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

ENVELOPE:
  Every response body is
    {"success": bool, "message": "...", "data": ..., "pagination": {...}, "error": {...}}
  with pagination only on paged lists and error only on failures.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON, the policy DTO
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// ENVELOPE
// =============================================================================

type Envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       any         `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *ErrorBody  `json:"error,omitempty"`
}

type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeDTO struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Email          string       `json:"email,omitempty"`
	JoinDate       string       `json:"join_date"`
	Classification string       `json:"classification"`
	ManagerID      string       `json:"manager_id,omitempty"`
	Probation      ProbationDTO `json:"probation"`
	CreatedAt      string       `json:"created_at,omitempty"`
}

type ProbationDTO struct {
	Status       string `json:"status"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
	DurationDays int    `json:"duration_days,omitempty"`
}

type CreateEmployeeRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	JoinDate       string `json:"join_date"`
	Classification string `json:"classification"`
	ManagerID      string `json:"manager_id"`
}

// ProbationRequest serves every probation action; each reads the fields it needs.
type ProbationRequest struct {
	StartDate    string `json:"start_date"`    // start
	DurationDays int    `json:"duration_days"` // start
	EndDate      string `json:"end_date"`      // extend
	Date         string `json:"date"`          // complete, terminate
}

func toEmployeeDTO(e leave.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:             string(e.ID),
		Name:           e.Name,
		Email:          e.Email,
		JoinDate:       e.JoinDate.String(),
		Classification: e.Classification.String(),
		ManagerID:      string(e.ManagerID),
		Probation: ProbationDTO{
			Status:       string(e.Probation.Status),
			DurationDays: e.Probation.DurationDays,
		},
	}
	if e.Probation.Start != nil {
		dto.Probation.StartDate = e.Probation.Start.String()
	}
	if e.Probation.End != nil {
		dto.Probation.EndDate = e.Probation.End.String()
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

type LeaveRequestDTO struct {
	ID              string `json:"id"`
	EmployeeID      string `json:"employee_id"`
	LeaveType       string `json:"leave_type"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	TotalDays       string `json:"total_days"`
	Status          string `json:"status"`
	IsHalfDay       bool   `json:"is_half_day,omitempty"`
	ShortLeaveHours string `json:"short_leave_hours,omitempty"`
	Reason          string `json:"reason,omitempty"`
	SubmittedAt     string `json:"submitted_at"`
	DecidedBy       string `json:"decided_by,omitempty"`
	DecidedAt       string `json:"decided_at,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	IsPaid          bool   `json:"is_paid"`
	PaidDays        string `json:"paid_days"`
	UnpaidDays      string `json:"unpaid_days"`
}

type CreateLeaveRequest struct {
	EmployeeID      string           `json:"employee_id,omitempty"` // admin only
	LeaveType       string           `json:"leave_type"`
	StartDate       string           `json:"start_date"`
	EndDate         string           `json:"end_date"`
	IsHalfDay       bool             `json:"is_half_day"`
	ShortLeaveHours decimal.Decimal  `json:"short_leave_hours"`
	Days            *decimal.Decimal `json:"days,omitempty"`
	Reason          string           `json:"reason"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

func toLeaveRequestDTO(r leave.LeaveRequest) LeaveRequestDTO {
	dto := LeaveRequestDTO{
		ID:              r.ID,
		EmployeeID:      string(r.EmployeeID),
		LeaveType:       string(r.LeaveType),
		StartDate:       r.Start.String(),
		EndDate:         r.End.String(),
		TotalDays:       r.TotalDays.String(),
		Status:          string(r.Status),
		IsHalfDay:       r.IsHalfDay,
		Reason:          r.Reason,
		SubmittedAt:     r.SubmittedAt.Format(time.RFC3339),
		DecidedBy:       r.DecidedBy,
		RejectionReason: r.RejectionReason,
		IsPaid:          r.IsPaid,
		PaidDays:        r.PaidDays.String(),
		UnpaidDays:      r.UnpaidDays.String(),
	}
	if r.ShortLeaveHours.IsPositive() {
		dto.ShortLeaveHours = r.ShortLeaveHours.String()
	}
	if r.DecidedAt != nil {
		dto.DecidedAt = r.DecidedAt.Format(time.RFC3339)
	}
	return dto
}

func toLeaveRequestDTOs(rs []leave.LeaveRequest) []LeaveRequestDTO {
	out := make([]LeaveRequestDTO, len(rs))
	for i, r := range rs {
		out[i] = toLeaveRequestDTO(r)
	}
	return out
}

// ConflictDTO is the error detail of a 409 on request creation.
type ConflictDTO struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	LeaveType string `json:"leave_type"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// =============================================================================
// BALANCES
// =============================================================================

type BalanceDTO struct {
	LeaveType          string `json:"leave_type"`
	PolicyID           string `json:"policy_id"`
	IsPaid             bool   `json:"is_paid"`
	Entitled           string `json:"entitled"`
	Adjustments        string `json:"adjustments"`
	Used               string `json:"used"`
	Pending            string `json:"pending"`
	Remaining          string `json:"remaining"`
	UtilizationPercent string `json:"utilization_percent"`
}

type SnapshotDTO struct {
	EmployeeID  string            `json:"employee_id"`
	WindowStart string            `json:"window_start"`
	WindowEnd   string            `json:"window_end"`
	AsOf        string            `json:"as_of"`
	Balances    []BalanceDTO      `json:"balances"`
	Unresolved  map[string]string `json:"unresolved,omitempty"`
}

type TeamBalancesDTO struct {
	Snapshots []SnapshotDTO     `json:"snapshots"`
	Failures  map[string]string `json:"failures,omitempty"`
}

func toSnapshotDTO(s leave.EntitlementSnapshot) SnapshotDTO {
	dto := SnapshotDTO{
		EmployeeID:  string(s.EmployeeID),
		WindowStart: s.Window.Start.String(),
		WindowEnd:   s.Window.End.String(),
		AsOf:        s.AsOf.String(),
		Balances:    []BalanceDTO{},
	}
	for _, t := range s.Types() {
		b := s.Balances[t]
		dto.Balances = append(dto.Balances, BalanceDTO{
			LeaveType:          string(b.LeaveType),
			PolicyID:           b.PolicyID,
			IsPaid:             b.IsPaid,
			Entitled:           b.Entitled.String(),
			Adjustments:        b.Adjustments.String(),
			Used:               b.Used.String(),
			Pending:            b.Pending.String(),
			Remaining:          b.Remaining.String(),
			UtilizationPercent: b.UtilizationPercent.StringFixed(generic.Places),
		})
	}
	if len(s.Unresolved) > 0 {
		dto.Unresolved = make(map[string]string, len(s.Unresolved))
		for t, reason := range s.Unresolved {
			dto.Unresolved[string(t)] = reason
		}
	}
	return dto
}

func toTeamBalancesDTO(r leave.TeamReport) TeamBalancesDTO {
	dto := TeamBalancesDTO{Snapshots: make([]SnapshotDTO, 0, len(r.Snapshots))}
	for _, s := range r.Snapshots {
		dto.Snapshots = append(dto.Snapshots, toSnapshotDTO(s))
	}
	if len(r.Failures) > 0 {
		dto.Failures = make(map[string]string, len(r.Failures))
		for id, reason := range r.Failures {
			dto.Failures[string(id)] = reason
		}
	}
	return dto
}

// =============================================================================
// PAY STATUS AND MONTHLY BREAKDOWN
// =============================================================================

type PayStatusDTO struct {
	LeaveRequestID string `json:"leave_request_id"`
	PaidDays       string `json:"paid_days"`
	UnpaidDays     string `json:"unpaid_days"`
	IsPaid         bool   `json:"is_paid"`
	Reason         string `json:"reason"`
}

func toPayStatusDTO(r leave.PaidUnpaidResult) PayStatusDTO {
	return PayStatusDTO{
		LeaveRequestID: r.LeaveRequestID,
		PaidDays:       r.PaidDays.String(),
		UnpaidDays:     r.UnpaidDays.String(),
		IsPaid:         r.IsPaid,
		Reason:         string(r.Reason),
	}
}

type MonthDTO struct {
	Month  string `json:"month"`
	Paid   string `json:"paid"`
	Unpaid string `json:"unpaid"`
	Total  string `json:"total"`
}

type MonthlyBreakdownDTO struct {
	EmployeeID string     `json:"employee_id"`
	Months     []MonthDTO `json:"months"`
}

func toMonthlyDTO(b leave.MonthlyBreakdown) MonthlyBreakdownDTO {
	dto := MonthlyBreakdownDTO{EmployeeID: string(b.EmployeeID), Months: []MonthDTO{}}
	for _, k := range b.MonthKeys() {
		m := b.Months[k]
		dto.Months = append(dto.Months, MonthDTO{
			Month:  k,
			Paid:   m.Paid.String(),
			Unpaid: m.Unpaid.String(),
			Total:  m.Total.String(),
		})
	}
	return dto
}

// =============================================================================
// ADJUSTMENTS AND HOLIDAYS
// =============================================================================

type AdjustmentRequest struct {
	LeaveType      string          `json:"leave_type"`
	Delta          decimal.Decimal `json:"delta"`
	EffectiveDate  string          `json:"effective_date"`
	Reason         string          `json:"reason"`
	IdempotencyKey string          `json:"idempotency_key"`
}

type TransactionDTO struct {
	ID             string `json:"id"`
	EmployeeID     string `json:"employee_id"`
	LeaveType      string `json:"leave_type"`
	EffectiveAt    string `json:"effective_at"`
	Delta          string `json:"delta"`
	Type           string `json:"type"`
	Reason         string `json:"reason,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	CreatedBy      string `json:"created_by,omitempty"`
}

func toTransactionDTO(tx generic.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:             string(tx.ID),
		EmployeeID:     string(tx.EntityID),
		LeaveType:      string(tx.AccountID),
		EffectiveAt:    tx.EffectiveAt.String(),
		Delta:          tx.Delta.String(),
		Type:           string(tx.Type),
		Reason:         tx.Reason,
		IdempotencyKey: tx.IdempotencyKey,
		CreatedBy:      tx.CreatedBy,
	}
}

type HolidayDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

func toHolidayDTO(h generic.Holiday) HolidayDTO {
	return HolidayDTO{ID: h.ID, Date: h.Date.String(), Name: h.Name, Recurring: h.Recurring}
}

type RecomputeDTO struct {
	Changed int `json:"changed"`
}
