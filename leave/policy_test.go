package leave_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

func resolverPolicies() []leave.LeavePolicy {
	inactive := policy("annual-offshore-old", leave.LeaveAnnual, leave.Offshore, 30, true)
	inactive.IsActive = false
	return []leave.LeavePolicy{
		policy("annual-onshore", leave.LeaveAnnual, leave.Onshore, 25, true),
		policy("annual-generic", leave.LeaveAnnual, leave.Unclassified, 20, true),
		policy("sick-onshore", leave.LeaveSick, leave.Onshore, 10, true),
		inactive,
	}
}

func TestResolvePolicy_Strict(t *testing.T) {
	policies := resolverPolicies()

	tests := []struct {
		name   string
		lt     leave.LeaveType
		class  leave.Classification
		wantID string
	}{
		{"classified employee gets exact match", leave.LeaveAnnual, leave.Onshore, "annual-onshore"},
		{"unclassified employee gets unclassified policy", leave.LeaveAnnual, leave.Unclassified, "annual-generic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := leave.ResolvePolicy(policies, tt.lt, tt.class, leave.ResolveStrict)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, p.ID)
		})
	}
}

func TestResolvePolicy_Strict_NoFallbackToGeneric(t *testing.T) {
	// GIVEN: Only an inactive offshore annual policy and an active generic one
	// WHEN: Resolving for an offshore employee in strict mode
	// THEN: Policy not found (the generic policy is NOT used)
	_, err := leave.ResolvePolicy(resolverPolicies(), leave.LeaveAnnual, leave.Offshore, leave.ResolveStrict)

	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrPolicyNotFound)
	assert.True(t, generic.IsNotFound(err))

	var nf *leave.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, leave.KindPolicy, nf.Kind)
	assert.Equal(t, leave.Offshore, nf.Classification)
}

func TestResolvePolicy_Strict_UnclassifiedEmployeeIgnoresSpecificPolicies(t *testing.T) {
	_, err := leave.ResolvePolicy(resolverPolicies(), leave.LeaveSick, leave.Unclassified, leave.ResolveStrict)
	assert.ErrorIs(t, err, generic.ErrPolicyNotFound)
}

func TestResolvePolicy_Fallback(t *testing.T) {
	policies := resolverPolicies()

	// No offshore policy: falls back to generic
	p, err := leave.ResolvePolicy(policies, leave.LeaveAnnual, leave.Offshore, leave.ResolveFallback)
	require.NoError(t, err)
	assert.Equal(t, "annual-generic", p.ID)

	// Both exist: specific wins
	p, err = leave.ResolvePolicy(policies, leave.LeaveAnnual, leave.Onshore, leave.ResolveFallback)
	require.NoError(t, err)
	assert.Equal(t, "annual-onshore", p.ID)

	// Unclassified employee: same as strict
	p, err = leave.ResolvePolicy(policies, leave.LeaveAnnual, leave.Unclassified, leave.ResolveFallback)
	require.NoError(t, err)
	assert.Equal(t, "annual-generic", p.ID)

	// Nothing at either level
	_, err = leave.ResolvePolicy(policies, leave.LeaveMaternity, leave.Onshore, leave.ResolveFallback)
	assert.ErrorIs(t, err, generic.ErrPolicyNotFound)
}

func TestResolvePolicy_Ambiguous(t *testing.T) {
	// GIVEN: Two active onshore annual policies
	// THEN: PolicyAmbiguityError listing both, in both modes
	policies := append(resolverPolicies(), policy("annual-onshore-2", leave.LeaveAnnual, leave.Onshore, 22, true))

	for _, mode := range []leave.ResolutionMode{leave.ResolveStrict, leave.ResolveFallback} {
		_, err := leave.ResolvePolicy(policies, leave.LeaveAnnual, leave.Onshore, mode)

		var amb *leave.PolicyAmbiguityError
		require.ErrorAs(t, err, &amb, "mode %s", mode)
		assert.Equal(t, []string{"annual-onshore", "annual-onshore-2"}, amb.PolicyIDs)
		assert.ErrorIs(t, err, generic.ErrPolicyAmbiguous)
	}
}

func TestResolvePolicy_Fallback_AmbiguousGeneric(t *testing.T) {
	policies := []leave.LeavePolicy{
		policy("g1", leave.LeaveCasual, leave.Unclassified, 5, true),
		policy("g2", leave.LeaveCasual, leave.Unclassified, 6, true),
	}
	_, err := leave.ResolvePolicy(policies, leave.LeaveCasual, leave.Offshore, leave.ResolveFallback)
	assert.ErrorIs(t, err, generic.ErrPolicyAmbiguous)
}

func TestParseResolutionMode(t *testing.T) {
	m, err := leave.ParseResolutionMode("")
	require.NoError(t, err)
	assert.Equal(t, leave.ResolveStrict, m)

	m, err = leave.ParseResolutionMode("fallback")
	require.NoError(t, err)
	assert.Equal(t, leave.ResolveFallback, m)

	_, err = leave.ParseResolutionMode("loose")
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}
