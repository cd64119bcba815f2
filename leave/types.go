/*
Package leave implements leave balances, accrual and paid/unpaid classification.

PURPOSE:
  Given an employee's tenure, classification and probation window, the set
  of leave policies, the adjustments ledger and the employee's leave
  requests, this package answers three questions:
    - How many days has the employee earned, used, and got pending?
    - How many days of a given request are paid versus unpaid?
    - How do paid/unpaid days fall into calendar months?

KEY CONCEPTS IN THIS FILE (types.go):
  - LeaveType / LeaveStatus / ProbationStatus / Classification: closed enums
  - Employee, LeavePolicy, LeaveRequest: the persisted inputs
  - EntitlementSnapshot, PaidUnpaidResult, MonthlyBreakdown: computed outputs

DATA FLOW:
  policies + tenure      -> entitlement          (accrual.go, policy.go)
  entitlement + requests -> balances              (balance.go)
  balance replay + probation -> paid/unpaid split (apportion.go, probation.go)

  Nothing computed here is persisted except the paid flag stamped on a
  request at creation (see service.go).

SEE ALSO:
  - engine.go: Read-only queries over a Repository
  - service.go: Mutations (create/approve/reject/adjust/probation)
  - generic/period.go: Calendar splitter shared by balance and apportion
*/
package leave

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// LEAVE TYPE
// =============================================================================

type LeaveType string

const (
	LeaveAnnual      LeaveType = "annual"
	LeaveSick        LeaveType = "sick"
	LeaveCasual      LeaveType = "casual"
	LeaveEmergency   LeaveType = "emergency"
	LeaveMaternity   LeaveType = "maternity"
	LeavePaternity   LeaveType = "paternity"
	LeaveBereavement LeaveType = "bereavement"
	LeaveUnpaid      LeaveType = "unpaid"
)

// LeaveTypes lists every leave type in reporting order.
var LeaveTypes = []LeaveType{
	LeaveAnnual, LeaveSick, LeaveCasual, LeaveEmergency,
	LeaveMaternity, LeavePaternity, LeaveBereavement, LeaveUnpaid,
}

func (t LeaveType) Valid() bool {
	switch t {
	case LeaveAnnual, LeaveSick, LeaveCasual, LeaveEmergency,
		LeaveMaternity, LeavePaternity, LeaveBereavement, LeaveUnpaid:
		return true
	}
	return false
}

// Account is the ledger account holding adjustments for this leave type.
func (t LeaveType) Account() generic.AccountID { return generic.AccountID(t) }

func ParseLeaveType(s string) (LeaveType, error) {
	t := LeaveType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown leave type %q", generic.ErrInvalidInput, s)
	}
	return t, nil
}

// =============================================================================
// LEAVE STATUS - pending -> approved | rejected, both terminal
// =============================================================================

type LeaveStatus string

const (
	StatusPending  LeaveStatus = "pending"
	StatusApproved LeaveStatus = "approved"
	StatusRejected LeaveStatus = "rejected"
)

func (s LeaveStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s LeaveStatus) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected:
		return true
	case StatusPending:
		return false
	}
	return false
}

// Blocking reports whether a request in this status reserves its dates.
func (s LeaveStatus) Blocking() bool {
	switch s {
	case StatusPending, StatusApproved:
		return true
	case StatusRejected:
		return false
	}
	return false
}

func ParseLeaveStatus(s string) (LeaveStatus, error) {
	st := LeaveStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown leave status %q", generic.ErrInvalidInput, s)
	}
	return st, nil
}

// =============================================================================
// PROBATION STATUS
// =============================================================================

type ProbationStatus string

const (
	ProbationNone       ProbationStatus = "none"
	ProbationActive     ProbationStatus = "active"
	ProbationExtended   ProbationStatus = "extended"
	ProbationCompleted  ProbationStatus = "completed"
	ProbationTerminated ProbationStatus = "terminated"
)

func (s ProbationStatus) Valid() bool {
	switch s {
	case ProbationNone, ProbationActive, ProbationExtended, ProbationCompleted, ProbationTerminated:
		return true
	}
	return false
}

// InProgress reports whether the employee is currently serving probation.
func (s ProbationStatus) InProgress() bool {
	return s == ProbationActive || s == ProbationExtended
}

func ParseProbationStatus(s string) (ProbationStatus, error) {
	if s == "" {
		return ProbationNone, nil
	}
	st := ProbationStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown probation status %q", generic.ErrInvalidInput, s)
	}
	return st, nil
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Classification groups employees for policy applicability. The zero value
// means unclassified; on a policy it means "applies to unclassified employees"
// (and to everyone in fallback resolution mode).
type Classification string

const (
	Unclassified Classification = ""
	Onshore      Classification = "onshore"
	Offshore     Classification = "offshore"
)

func (c Classification) Valid() bool {
	switch c {
	case Unclassified, Onshore, Offshore:
		return true
	}
	return false
}

func (c Classification) String() string {
	if c == Unclassified {
		return "unclassified"
	}
	return string(c)
}

func ParseClassification(s string) (Classification, error) {
	if s == "unclassified" {
		return Unclassified, nil
	}
	c := Classification(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown classification %q", generic.ErrInvalidInput, s)
	}
	return c, nil
}

// =============================================================================
// EMPLOYEE
// =============================================================================

// Probation is the employee's probation record. Start and End may be nil
// for legacy rows; see OverlapsProbation for how that is treated.
type Probation struct {
	Status       ProbationStatus
	Start        *generic.TimePoint
	End          *generic.TimePoint
	DurationDays int
}

type Employee struct {
	ID             generic.EntityID
	Name           string
	Email          string
	JoinDate       generic.TimePoint
	Classification Classification
	ManagerID      generic.EntityID
	Probation      Probation
	CreatedAt      time.Time
}

func (e Employee) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: employee id is required", generic.ErrInvalidInput)
	}
	if e.JoinDate.IsZero() {
		return fmt.Errorf("%w: join date is required", generic.ErrInvalidInput)
	}
	if !e.Classification.Valid() {
		return fmt.Errorf("%w: unknown classification %q", generic.ErrInvalidInput, string(e.Classification))
	}
	if e.Probation.Status == "" {
		return fmt.Errorf("%w: probation status is required", generic.ErrInvalidInput)
	}
	if !e.Probation.Status.Valid() {
		return fmt.Errorf("%w: unknown probation status %q", generic.ErrInvalidInput, e.Probation.Status)
	}
	return nil
}

// =============================================================================
// LEAVE POLICY
// =============================================================================

type LeavePolicy struct {
	ID             string
	Name           string
	LeaveType      LeaveType
	Classification Classification
	AnnualDays     decimal.Decimal
	IsPaid         bool
	IsActive       bool
}

func (p LeavePolicy) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: policy id is required", generic.ErrInvalidInput)
	}
	if !p.LeaveType.Valid() {
		return fmt.Errorf("%w: unknown leave type %q", generic.ErrInvalidInput, p.LeaveType)
	}
	if !p.Classification.Valid() {
		return fmt.Errorf("%w: unknown classification %q", generic.ErrInvalidInput, string(p.Classification))
	}
	if p.AnnualDays.IsNegative() {
		return fmt.Errorf("%w: annual days must not be negative", generic.ErrInvalidInput)
	}
	return nil
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type LeaveRequest struct {
	ID              string
	EmployeeID      generic.EntityID
	LeaveType       LeaveType
	Start           generic.TimePoint
	End             generic.TimePoint
	TotalDays       generic.Amount
	Status          LeaveStatus
	IsHalfDay       bool
	ShortLeaveHours decimal.Decimal
	Reason          string
	SubmittedAt     time.Time

	// Decision
	DecidedBy       string
	DecidedAt       *time.Time
	RejectionReason string

	// Paid split stamped at creation (or by an explicit recompute).
	IsPaid     bool
	PaidDays   generic.Amount
	UnpaidDays generic.Amount
}

func (r LeaveRequest) Period() generic.Period {
	return generic.Period{Start: r.Start, End: r.End}
}

// Concentrated reports whether all days belong to the start date
// (half-day and short-leave requests).
func (r LeaveRequest) Concentrated() bool {
	return r.IsHalfDay || r.ShortLeaveHours.IsPositive()
}

// SortRequests orders requests chronologically by start date, then submission time.
func SortRequests(reqs []LeaveRequest) {
	sort.SliceStable(reqs, func(i, j int) bool {
		if !reqs[i].Start.Equal(reqs[j].Start) {
			return reqs[i].Start.Before(reqs[j].Start)
		}
		return reqs[i].SubmittedAt.Before(reqs[j].SubmittedAt)
	})
}

// =============================================================================
// COMPUTED OUTPUTS
// =============================================================================

// Balance is one leave type's line in an entitlement snapshot.
type Balance struct {
	LeaveType          LeaveType
	PolicyID           string
	IsPaid             bool
	Entitled           generic.Amount
	Adjustments        generic.Amount
	Used               generic.Amount
	Pending            generic.Amount
	Remaining          generic.Amount
	UtilizationPercent decimal.Decimal
}

// EntitlementSnapshot is computed per query and never stored.
type EntitlementSnapshot struct {
	EmployeeID generic.EntityID
	Window     generic.Period
	AsOf       generic.TimePoint
	Balances   map[LeaveType]Balance

	// Unresolved holds leave types skipped because no policy resolved.
	Unresolved map[LeaveType]string
}

// Types returns the snapshot's leave types in reporting order.
func (s EntitlementSnapshot) Types() []LeaveType {
	var out []LeaveType
	for _, t := range LeaveTypes {
		if _, ok := s.Balances[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// PaidReason explains how a paid/unpaid split was decided.
type PaidReason string

const (
	ReasonBalance      PaidReason = "balance"       // covered (fully or partly) by balance
	ReasonProbation    PaidReason = "probation"     // overlaps probation, all unpaid
	ReasonUnpaidPolicy PaidReason = "unpaid_policy" // policy marks the type unpaid
	ReasonNoPolicy     PaidReason = "no_policy"     // policy or employee lookup failed
)

type PaidUnpaidResult struct {
	LeaveRequestID string
	PaidDays       generic.Amount
	UnpaidDays     generic.Amount
	IsPaid         bool
	Reason         PaidReason
}

// MonthSplit is the part of one request falling in one calendar month.
type MonthSplit struct {
	Month  string // YYYY-MM
	Period generic.Period
	Total  generic.Amount
	Paid   generic.Amount
	Unpaid generic.Amount
}

type MonthAmounts struct {
	Paid   generic.Amount
	Unpaid generic.Amount
	Total  generic.Amount
}

func (m MonthAmounts) add(s MonthSplit) MonthAmounts {
	return MonthAmounts{
		Paid:   m.Paid.Add(s.Paid),
		Unpaid: m.Unpaid.Add(s.Unpaid),
		Total:  m.Total.Add(s.Total),
	}
}

type MonthlyBreakdown struct {
	EmployeeID generic.EntityID
	Months     map[string]MonthAmounts
}

// MonthKeys returns the breakdown's months in chronological order.
func (b MonthlyBreakdown) MonthKeys() []string {
	keys := make([]string, 0, len(b.Months))
	for k := range b.Months {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
