package factory_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

func newFactory() *factory.PolicyFactory {
	f := factory.NewPolicyFactory()
	f.NewID = func() string { return "generated" }
	return f
}

func TestParsePolicy(t *testing.T) {
	// GIVEN a full policy definition
	f := newFactory()
	p, err := f.ParsePolicy(`{
		"id": "annual-onshore",
		"name": "Annual leave (onshore)",
		"leave_type": "annual",
		"classification": "onshore",
		"annual_days": 20.5,
		"is_paid": true,
		"is_active": false
	}`)

	// THEN every field is carried over
	require.NoError(t, err)
	assert.Equal(t, "annual-onshore", p.ID)
	assert.Equal(t, "Annual leave (onshore)", p.Name)
	assert.Equal(t, leave.LeaveAnnual, p.LeaveType)
	assert.Equal(t, leave.Onshore, p.Classification)
	assert.Equal(t, "20.5", p.AnnualDays.String())
	assert.True(t, p.IsPaid)
	assert.False(t, p.IsActive)
}

func TestParsePolicy_Defaults(t *testing.T) {
	f := newFactory()

	t.Run("minimal paid type", func(t *testing.T) {
		p, err := f.ParsePolicy(`{"leave_type": "sick", "annual_days": "10"}`)
		require.NoError(t, err)
		assert.Equal(t, "generated", p.ID)
		assert.Equal(t, "sick leave", p.Name)
		assert.Equal(t, leave.Unclassified, p.Classification)
		assert.True(t, p.IsPaid)
		assert.True(t, p.IsActive)
	})

	t.Run("unpaid type defaults to unpaid", func(t *testing.T) {
		p, err := f.ParsePolicy(`{"leave_type": "unpaid", "annual_days": 0}`)
		require.NoError(t, err)
		assert.False(t, p.IsPaid)
	})

	t.Run("explicit unclassified", func(t *testing.T) {
		p, err := f.ParsePolicy(`{"leave_type": "casual", "classification": "unclassified", "annual_days": 7}`)
		require.NoError(t, err)
		assert.Equal(t, leave.Unclassified, p.Classification)
	})
}

func TestParsePolicy_Invalid(t *testing.T) {
	f := newFactory()
	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"leave_type": `},
		{"unknown type", `{"leave_type": "sabbatical", "annual_days": 5}`},
		{"unknown classification", `{"leave_type": "annual", "classification": "remote", "annual_days": 5}`},
		{"negative days", `{"leave_type": "annual", "annual_days": -1}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ParsePolicy(tc.json)
			require.Error(t, err)
			assert.True(t, generic.IsClientError(err), "got %v", err)
		})
	}
}

func TestParsePolicies(t *testing.T) {
	f := newFactory()

	ps, err := f.ParsePolicies(strings.NewReader(`[
		{"id": "a", "leave_type": "annual", "annual_days": 20},
		{"id": "s", "leave_type": "sick", "annual_days": 10}
	]`))
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "a", ps[0].ID)
	assert.Equal(t, "s", ps[1].ID)

	// one bad entry fails the batch and names its index
	_, err = f.ParsePolicies(strings.NewReader(`[
		{"id": "a", "leave_type": "annual", "annual_days": 20},
		{"id": "b", "leave_type": "nope", "annual_days": 1}
	]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy 1")
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := newFactory()
	for _, p := range factory.DefaultPolicies() {
		back, err := f.FromJSON(f.ToJSON(p))
		require.NoError(t, err)
		assert.Equal(t, p.ID, back.ID)
		assert.Equal(t, p.Classification, back.Classification)
		assert.True(t, p.AnnualDays.Equal(back.AnnualDays))
		assert.Equal(t, p.IsPaid, back.IsPaid)
		assert.Equal(t, p.IsActive, back.IsActive)
	}
}

func TestDefaultPolicies_ResolveForEveryEmployee(t *testing.T) {
	// GIVEN the seed set
	ps := factory.DefaultPolicies()

	// THEN every type resolves in strict mode for every classification
	for _, c := range []leave.Classification{leave.Onshore, leave.Offshore, leave.Unclassified} {
		for _, lt := range leave.LeaveTypes {
			p, err := leave.ResolvePolicy(ps, lt, c, leave.ResolveStrict)
			require.NoError(t, err, "%s/%s", lt, c)
			assert.Equal(t, c, p.Classification)
			assert.Equal(t, lt != leave.LeaveUnpaid, p.IsPaid)
			require.NoError(t, p.Validate())
		}
	}

	annual, err := leave.ResolvePolicy(ps, leave.LeaveAnnual, leave.Onshore, leave.ResolveStrict)
	require.NoError(t, err)
	assert.Equal(t, "annual-onshore", annual.ID)
	assert.Equal(t, "20", annual.AnnualDays.String())
}
