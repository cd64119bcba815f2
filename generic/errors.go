/*
errors.go - Centralized error types for the engine

PURPOSE:
  All sentinel errors in one place for consistency and discoverability.
  The leave package wraps these with structured errors that carry context
  (employee, leave type, conflicting dates) and Unwrap back to a sentinel,
  so callers and the HTTP layer only ever switch on errors.Is.

ERROR CATEGORIES:
  1. Lookup errors - Missing employee, policy or request
  2. Validation errors - Invalid ranges, conflicts, bad transitions
  3. Store errors - Idempotency and concurrency failures

SEE ALSO:
  - leave/errors.go: Structured errors wrapping these sentinels
  - api/handlers.go: Maps sentinels to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is the root of every "record missing" error.
	ErrNotFound = errors.New("not found")

	// ErrPolicyNotFound is returned when no leave policy resolves.
	ErrPolicyNotFound = fmt.Errorf("policy %w", ErrNotFound)

	// ErrEntityNotFound is returned when a referenced employee or request doesn't exist.
	ErrEntityNotFound = fmt.Errorf("entity %w", ErrNotFound)

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidRange is returned for a bad leave range or non-positive day count.
	ErrInvalidRange = errors.New("invalid range")

	// ErrConflict is returned when a new request overlaps an existing one.
	ErrConflict = errors.New("conflicting request")

	// ErrPolicyAmbiguous is returned when more than one policy matches at the same specificity.
	ErrPolicyAmbiguous = errors.New("ambiguous policy")

	// ErrInvalidTransition is returned for a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidInput is returned for malformed caller input (unknown enum values, missing fields).
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrInsufficientBalance is returned when an adjustment would push a balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrConcurrentModification is returned when the store aborts a transaction
	// because a concurrent writer touched the same rows.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsConflict returns true if the error reports a clash with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrPolicyAmbiguous)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
