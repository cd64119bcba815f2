package leave

import (
	"fmt"
	"sort"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// POLICY RESOLUTION
// =============================================================================

// ResolutionMode selects how a policy is matched to an employee.
type ResolutionMode string

const (
	// ResolveStrict matches only the policy whose classification equals the
	// employee's. Unclassified employees match only unclassified policies.
	ResolveStrict ResolutionMode = "strict"

	// ResolveFallback prefers the classification-specific policy and falls
	// back to an unclassified one when none exists. Meant for data migration.
	ResolveFallback ResolutionMode = "fallback"
)

func (m ResolutionMode) Valid() bool {
	switch m {
	case ResolveStrict, ResolveFallback:
		return true
	}
	return false
}

func ParseResolutionMode(s string) (ResolutionMode, error) {
	if s == "" {
		return ResolveStrict, nil
	}
	m := ResolutionMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown policy resolution mode %q", generic.ErrInvalidInput, s)
	}
	return m, nil
}

// ResolvePolicy returns the single active policy for leaveType that applies to
// an employee of classification c.
//
// Failures:
//   - *NotFoundError when nothing matches
//   - *PolicyAmbiguityError when two or more active policies match at the
//     same specificity
func ResolvePolicy(policies []LeavePolicy, leaveType LeaveType, c Classification, mode ResolutionMode) (LeavePolicy, error) {
	if p, ok, err := pick(policies, leaveType, c); ok || err != nil {
		return p, err
	}

	if mode == ResolveFallback && c != Unclassified {
		if p, ok, err := pick(policies, leaveType, Unclassified); ok || err != nil {
			return p, err
		}
	}

	return LeavePolicy{}, &NotFoundError{Kind: KindPolicy, LeaveType: leaveType, Classification: c}
}

func pick(policies []LeavePolicy, leaveType LeaveType, c Classification) (LeavePolicy, bool, error) {
	var matches []LeavePolicy
	for _, p := range policies {
		if p.IsActive && p.LeaveType == leaveType && p.Classification == c {
			matches = append(matches, p)
		}
	}

	switch len(matches) {
	case 0:
		return LeavePolicy{}, false, nil
	case 1:
		return matches[0], true, nil
	default:
		ids := make([]string, len(matches))
		for i, p := range matches {
			ids[i] = p.ID
		}
		sort.Strings(ids)
		return LeavePolicy{}, false, &PolicyAmbiguityError{LeaveType: leaveType, Classification: c, PolicyIDs: ids}
	}
}
