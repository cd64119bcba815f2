package factory

import (
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// BUILT-IN POLICY SET
// =============================================================================

type preset struct {
	leaveType leave.LeaveType
	name      string
	days      map[leave.Classification]int64
	paid      bool
}

var presets = []preset{
	{leave.LeaveAnnual, "Annual leave", perClass(20, 15, 15), true},
	{leave.LeaveSick, "Sick leave", perClass(10, 10, 10), true},
	{leave.LeaveCasual, "Casual leave", perClass(7, 7, 7), true},
	{leave.LeaveEmergency, "Emergency leave", perClass(3, 3, 3), true},
	{leave.LeaveMaternity, "Maternity leave", perClass(90, 90, 90), true},
	{leave.LeavePaternity, "Paternity leave", perClass(10, 10, 10), true},
	{leave.LeaveBereavement, "Bereavement leave", perClass(5, 5, 5), true},
	{leave.LeaveUnpaid, "Unpaid leave", perClass(0, 0, 0), false},
}

func perClass(onshore, offshore, unclassified int64) map[leave.Classification]int64 {
	return map[leave.Classification]int64{
		leave.Onshore:      onshore,
		leave.Offshore:     offshore,
		leave.Unclassified: unclassified,
	}
}

// DefaultPolicies returns the policy set loaded by `server -seed`: one
// active policy per leave type and classification, so every employee
// resolves under strict mode. IDs look like "annual-onshore" or "sick".
func DefaultPolicies() []leave.LeavePolicy {
	classes := []leave.Classification{leave.Onshore, leave.Offshore, leave.Unclassified}

	out := make([]leave.LeavePolicy, 0, len(presets)*len(classes))
	for _, p := range presets {
		for _, c := range classes {
			id, name := string(p.leaveType), p.name
			if c != leave.Unclassified {
				id += "-" + string(c)
				name += " (" + string(c) + ")"
			}
			out = append(out, leave.LeavePolicy{
				ID:             id,
				Name:           name,
				LeaveType:      p.leaveType,
				Classification: c,
				AnnualDays:     decimal.NewFromInt(p.days[c]),
				IsPaid:         p.paid,
				IsActive:       true,
			})
		}
	}
	return out
}
