package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/vitality/internal/types"
)

// Decision is the outcome of evaluating one rule at one instant
type Decision struct {
	// Rule is the rule's new state. It is always a copy; the input is never mutated.
	Rule *types.ReminderRule
	// Fire reports whether exactly one job should be emitted
	Fire bool
	// FiredAt is the scheduled instant the emitted job stands for
	FiredAt time.Time
	// Changed reports whether Rule differs from the input and must be persisted
	Changed bool
	// Err is set for a scheduling inconsistency; Rule is then Cancelled
	Err error
}

// NewRule builds a Scheduled rule anchored at start (or now when start is zero).
// The first fire is the anchor itself when it lies in the future, otherwise the
// first occurrence after now.
func NewRule(id, subjectID, kind, message string, freq types.Frequency, start, now time.Time) (*types.ReminderRule, error) {
	anchor := start
	if anchor.IsZero() {
		anchor = now
	}
	rule := &types.ReminderRule{
		ID:        id,
		SubjectID: strings.TrimSpace(subjectID),
		Kind:      strings.TrimSpace(kind),
		Message:   strings.TrimSpace(message),
		Frequency: freq,
		State:     types.RuleScheduled,
		AnchorAt:  anchor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	next, err := NextAfter(anchor, freq, now)
	if err != nil {
		return nil, err
	}
	if anchor.After(now) {
		next = anchor
	}
	rule.NextFireAt = next
	return rule, nil
}

// Evaluate is the pure state machine step for one rule at instant now.
//
// A due rule fires at most once per call regardless of how many instants were
// missed. LastFiredAt becomes the latest scheduled instant <= now (or the snoozed
// instant if later) and NextFireAt the first occurrence after now, so the whole
// backlog collapses into one job.
func Evaluate(rule *types.ReminderRule, now time.Time) Decision {
	r := rule.Clone()
	d := Decision{Rule: r}

	if r.State == types.RuleCancelled || now.Before(r.NextFireAt) {
		return d
	}

	r.State = types.RuleFired
	firedAt := r.NextFireAt
	scheduled, ok, err := LatestAtOrBefore(r.AnchorAt, r.Frequency, now)
	if err != nil {
		return inconsistent(d, now, fmt.Errorf("%w: rule %s: %v", types.ErrSchedulingInconsistency, r.ID, err))
	}
	if ok && scheduled.After(firedAt) {
		firedAt = scheduled
	}

	next, err := NextAfter(r.AnchorAt, r.Frequency, now)
	if err != nil {
		return inconsistent(d, now, fmt.Errorf("%w: rule %s: %v", types.ErrSchedulingInconsistency, r.ID, err))
	}
	if !next.After(now) || !next.After(firedAt) {
		return inconsistent(d, now, fmt.Errorf("%w: rule %s computed next fire %s not after now %s",
			types.ErrSchedulingInconsistency, r.ID, next.Format(time.RFC3339), now.Format(time.RFC3339)))
	}
	if r.LastFiredAt != nil && !firedAt.After(*r.LastFiredAt) {
		return inconsistent(d, now, fmt.Errorf("%w: rule %s fire instant %s not after last fire %s",
			types.ErrSchedulingInconsistency, r.ID, firedAt.Format(time.RFC3339), r.LastFiredAt.Format(time.RFC3339)))
	}

	r.LastFiredAt = &firedAt
	r.NextFireAt = next
	r.State = types.RuleScheduled
	r.UpdatedAt = now
	d.Fire = true
	d.FiredAt = firedAt
	d.Changed = true
	return d
}

func inconsistent(d Decision, now time.Time, err error) Decision {
	d.Rule.State = types.RuleCancelled
	d.Rule.UpdatedAt = now
	d.Fire = false
	d.Changed = true
	d.Err = err
	return d
}

// Snooze defers the rule's next fire by delta from the later of now and its current NextFireAt
func Snooze(rule *types.ReminderRule, now time.Time, delta time.Duration) (*types.ReminderRule, error) {
	if rule.State == types.RuleCancelled {
		return nil, fmt.Errorf("cannot snooze rule %s: %w", rule.ID, types.ErrRuleCancelled)
	}
	if delta <= 0 {
		return nil, types.NewValidationError("snooze", "delta must be positive (got %v)", delta)
	}
	r := rule.Clone()
	base := r.NextFireAt
	if now.After(base) {
		base = now
	}
	r.NextFireAt = base.Add(delta)
	r.State = types.RuleSnoozed
	r.UpdatedAt = now
	return r, nil
}

// Cancel moves a rule to the terminal Cancelled state
func Cancel(rule *types.ReminderRule, now time.Time) *types.ReminderRule {
	r := rule.Clone()
	if r.State != types.RuleCancelled {
		r.State = types.RuleCancelled
		r.UpdatedAt = now
	}
	return r
}

// Changes is a partial update to a rule's user-editable fields
type Changes struct {
	Kind      *string
	Message   *string
	Frequency *types.Frequency
}

// Apply returns a copy of rule with the changes applied. A frequency change keeps
// the anchor and recomputes NextFireAt under the new cadence.
func Apply(rule *types.ReminderRule, c Changes, now time.Time) (*types.ReminderRule, error) {
	if rule.State == types.RuleCancelled {
		return nil, fmt.Errorf("cannot update rule %s: %w", rule.ID, types.ErrRuleCancelled)
	}
	r := rule.Clone()
	if c.Kind != nil {
		r.Kind = strings.TrimSpace(*c.Kind)
	}
	if c.Message != nil {
		r.Message = strings.TrimSpace(*c.Message)
	}
	if c.Frequency != nil && *c.Frequency != r.Frequency {
		if !c.Frequency.IsValid() {
			return nil, types.NewValidationError("frequency", "must be one of daily, weekly, monthly (got %q)", string(*c.Frequency))
		}
		r.Frequency = *c.Frequency
		from := now
		if r.LastFiredAt != nil && r.LastFiredAt.After(from) {
			from = *r.LastFiredAt
		}
		next, err := NextAfter(r.AnchorAt, r.Frequency, from)
		if err != nil {
			return nil, err
		}
		r.NextFireAt = next
		r.State = types.RuleScheduled
	}
	r.UpdatedAt = now
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
