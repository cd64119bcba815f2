package leave

import (
	"fmt"
	"strings"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// STRUCTURED ERRORS - Each unwraps to a generic sentinel
// =============================================================================

// RecordKind names what a NotFoundError was looking for.
type RecordKind string

const (
	KindEmployee RecordKind = "employee"
	KindPolicy   RecordKind = "policy"
	KindRequest  RecordKind = "leave request"
	KindHoliday  RecordKind = "holiday"
)

// NotFoundError reports a missing employee, policy or request.
type NotFoundError struct {
	Kind RecordKind
	ID   string
	// Policy lookups have no ID; they carry the resolution key instead.
	LeaveType      LeaveType
	Classification Classification
}

func (e *NotFoundError) Error() string {
	if e.Kind == KindPolicy && e.ID == "" {
		return fmt.Sprintf("no active %s policy for %s employees", e.LeaveType, e.Classification)
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	if e.Kind == KindPolicy {
		return generic.ErrPolicyNotFound
	}
	return generic.ErrEntityNotFound
}

func EmployeeNotFound(id generic.EntityID) error {
	return &NotFoundError{Kind: KindEmployee, ID: string(id)}
}

func RequestNotFound(id string) error {
	return &NotFoundError{Kind: KindRequest, ID: id}
}

func PolicyNotFound(id string) error {
	return &NotFoundError{Kind: KindPolicy, ID: id}
}

// InvalidRangeError reports an end date before the start date or a
// non-positive day count. It is always surfaced, never corrected.
type InvalidRangeError struct {
	Start  generic.TimePoint
	End    generic.TimePoint
	Days   generic.Amount
	Detail string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid leave range %s to %s: %s", e.Start, e.End, e.Detail)
}

func (e *InvalidRangeError) Unwrap() error { return generic.ErrInvalidRange }

// ConflictError reports that a new request overlaps an existing pending or
// approved request of the same employee.
type ConflictError struct {
	EmployeeID generic.EntityID
	Existing   LeaveRequest
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("overlaps existing %s %s leave from %s to %s",
		e.Existing.Status, e.Existing.LeaveType, e.Existing.Start, e.Existing.End)
}

func (e *ConflictError) Unwrap() error { return generic.ErrConflict }

// PolicyAmbiguityError reports more than one active policy at the same
// specificity for a (leave type, classification) pair.
type PolicyAmbiguityError struct {
	LeaveType      LeaveType
	Classification Classification
	PolicyIDs      []string
}

func (e *PolicyAmbiguityError) Error() string {
	return fmt.Sprintf("%d active %s policies match %s employees: %s",
		len(e.PolicyIDs), e.LeaveType, e.Classification, strings.Join(e.PolicyIDs, ", "))
}

func (e *PolicyAmbiguityError) Unwrap() error { return generic.ErrPolicyAmbiguous }

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EmployeeID generic.EntityID
	LeaveType  LeaveType
	Available  generic.Amount
	Requested  generic.Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: available %s, requested %s",
		e.LeaveType, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return generic.ErrInsufficientBalance }

// TransitionError reports a lifecycle change that is not allowed.
type TransitionError struct {
	Subject string
	From    string
	To      string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Subject, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return generic.ErrInvalidTransition }
