/*
Package factory converts JSON policy definitions into leave policies.

PURPOSE:
  Leave policies are configuration: HR edits them through the admin API or
  a seed file, and the engine only ever sees leave.LeavePolicy values. This
  package owns the JSON shape and the defaults applied while parsing.

JSON SCHEMA:
  {
    "id": "annual-onshore",
    "name": "Annual leave (onshore)",
    "leave_type": "annual",
    "classification": "onshore",
    "annual_days": 20,
    "is_paid": true,
    "is_active": true
  }

DEFAULTS:
  - id:             generated (uuid) when empty
  - name:           "<leave_type> leave" when empty
  - classification: empty or "unclassified" means the unclassified bucket
  - is_paid:        true, except for the "unpaid" leave type
  - is_active:      true

USAGE:
  f := factory.NewPolicyFactory()
  policy, err := f.ParsePolicy(jsonString)
  policies, err := f.ParsePolicies(r) // a JSON array, e.g. a seed file

SEE ALSO:
  - factory/defaults.go: Built-in policy set used by `-seed`
  - leave/policy.go: How policies are resolved per employee
*/
package factory

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a leave policy.
type PolicyJSON struct {
	ID             string          `json:"id,omitempty"`
	Name           string          `json:"name,omitempty"`
	LeaveType      string          `json:"leave_type"`
	Classification string          `json:"classification,omitempty"`
	AnnualDays     decimal.Decimal `json:"annual_days"`
	IsPaid         *bool           `json:"is_paid,omitempty"`
	IsActive       *bool           `json:"is_active,omitempty"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to leave.LeavePolicy values.
type PolicyFactory struct {
	// NewID generates ids for policies that arrive without one.
	NewID func() string
}

func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{NewID: uuid.NewString}
}

// ParsePolicy parses a single JSON object.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (leave.LeavePolicy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return leave.LeavePolicy{}, fmt.Errorf("%w: failed to parse policy JSON: %v", generic.ErrInvalidInput, err)
	}
	return f.FromJSON(pj)
}

// ParsePolicies reads a JSON array of policies. The first invalid entry
// fails the whole batch.
func (f *PolicyFactory) ParsePolicies(r io.Reader) ([]leave.LeavePolicy, error) {
	var pjs []PolicyJSON
	if err := json.NewDecoder(r).Decode(&pjs); err != nil {
		return nil, fmt.Errorf("%w: failed to parse policy list: %v", generic.ErrInvalidInput, err)
	}

	out := make([]leave.LeavePolicy, 0, len(pjs))
	for i, pj := range pjs {
		p, err := f.FromJSON(pj)
		if err != nil {
			return nil, fmt.Errorf("policy %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// FromJSON applies defaults and validates.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (leave.LeavePolicy, error) {
	leaveType, err := leave.ParseLeaveType(pj.LeaveType)
	if err != nil {
		return leave.LeavePolicy{}, err
	}
	class, err := leave.ParseClassification(pj.Classification)
	if err != nil {
		return leave.LeavePolicy{}, err
	}

	p := leave.LeavePolicy{
		ID:             pj.ID,
		Name:           pj.Name,
		LeaveType:      leaveType,
		Classification: class,
		AnnualDays:     pj.AnnualDays,
		IsPaid:         leaveType != leave.LeaveUnpaid,
		IsActive:       true,
	}
	if pj.IsPaid != nil {
		p.IsPaid = *pj.IsPaid
	}
	if pj.IsActive != nil {
		p.IsActive = *pj.IsActive
	}
	if p.ID == "" {
		p.ID = f.newID()
	}
	if p.Name == "" {
		p.Name = fmt.Sprintf("%s leave", leaveType)
	}

	if err := p.Validate(); err != nil {
		return leave.LeavePolicy{}, err
	}
	return p, nil
}

// ToJSON converts a policy back to its JSON form. Every field is explicit.
func (f *PolicyFactory) ToJSON(p leave.LeavePolicy) PolicyJSON {
	paid, active := p.IsPaid, p.IsActive
	return PolicyJSON{
		ID:             p.ID,
		Name:           p.Name,
		LeaveType:      string(p.LeaveType),
		Classification: p.Classification.String(),
		AnnualDays:     p.AnnualDays,
		IsPaid:         &paid,
		IsActive:       &active,
	}
}

func (f *PolicyFactory) newID() string {
	if f.NewID == nil {
		return uuid.NewString()
	}
	return f.NewID()
}
