package leave

import (
	"fmt"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// PROBATION OVERLAP
// =============================================================================

// Window returns the probation period when both dates are recorded.
func (p Probation) Window() (generic.Period, bool) {
	if p.Start == nil || p.End == nil {
		return generic.Period{}, false
	}
	return generic.Period{Start: *p.Start, End: *p.End}, true
}

// OverlapsProbation reports whether leave intersects the probation window
// (closed interval, so sharing a single boundary day counts).
//
//   - active/extended without both dates: true, the leave is treated as unpaid
//   - completed/terminated: the recorded window still classifies historical
//     leave; without dates there is nothing to overlap
//   - none: false
func OverlapsProbation(leave generic.Period, p Probation) bool {
	switch p.Status {
	case ProbationActive, ProbationExtended:
		w, ok := p.Window()
		if !ok {
			return true
		}
		return leave.Overlaps(w)
	case ProbationCompleted, ProbationTerminated:
		w, ok := p.Window()
		return ok && leave.Overlaps(w)
	case ProbationNone:
		return false
	}
	return false
}

// =============================================================================
// PROBATION TRANSITIONS
// =============================================================================
//
//   none ──Begin──> active ──Extend──> extended
//                     │                   │
//                     ├──Complete─────────┼──> completed
//                     └──Terminate────────┴──> terminated

// Begin starts a probation of durationDays calendar days on start (inclusive).
func (p *Probation) Begin(start generic.TimePoint, durationDays int) error {
	if p.Status != ProbationNone && p.Status != "" {
		return &TransitionError{Subject: "probation", From: string(p.Status), To: string(ProbationActive)}
	}
	if durationDays <= 0 {
		return fmt.Errorf("%w: probation duration must be positive", generic.ErrInvalidInput)
	}
	end := start.AddDays(durationDays - 1)
	p.Status = ProbationActive
	p.Start = &start
	p.End = &end
	p.DurationDays = durationDays
	return nil
}

// Complete ends probation on at. Completing early pulls the end date in.
func (p *Probation) Complete(at generic.TimePoint) error {
	if !p.Status.InProgress() {
		return &TransitionError{Subject: "probation", From: string(p.Status), To: string(ProbationCompleted)}
	}
	p.closeAt(at)
	p.Status = ProbationCompleted
	return nil
}

// Extend moves the end date forward to newEnd.
func (p *Probation) Extend(newEnd generic.TimePoint) error {
	if !p.Status.InProgress() {
		return &TransitionError{Subject: "probation", From: string(p.Status), To: string(ProbationExtended)}
	}
	if p.End != nil && !newEnd.After(*p.End) {
		return fmt.Errorf("%w: new probation end %s must be after %s", generic.ErrInvalidInput, newEnd, *p.End)
	}
	if p.Start != nil && newEnd.Before(*p.Start) {
		return fmt.Errorf("%w: new probation end %s is before its start %s", generic.ErrInvalidInput, newEnd, *p.Start)
	}
	p.End = &newEnd
	if p.Start != nil {
		p.DurationDays = generic.Period{Start: *p.Start, End: newEnd}.DayCount()
	}
	p.Status = ProbationExtended
	return nil
}

// Terminate ends probation on at without completion.
func (p *Probation) Terminate(at generic.TimePoint) error {
	if !p.Status.InProgress() {
		return &TransitionError{Subject: "probation", From: string(p.Status), To: string(ProbationTerminated)}
	}
	p.closeAt(at)
	p.Status = ProbationTerminated
	return nil
}

func (p *Probation) closeAt(at generic.TimePoint) {
	if p.Start != nil && at.Before(*p.Start) {
		at = *p.Start
	}
	if p.End == nil || at.Before(*p.End) {
		p.End = &at
	}
}
