package types

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is the recurrence cadence of a reminder rule
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// IsValid checks if the frequency value is valid
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// ParseFrequency parses a frequency name (case-insensitive)
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", NewValidationError("frequency", "must be one of daily, weekly, monthly (got %q)", s)
	}
	return f, nil
}

// RuleState is the lifecycle state of a reminder rule
type RuleState string

const (
	// RuleScheduled is the initial and resting state: NextFireAt is set, waiting
	RuleScheduled RuleState = "scheduled"
	// RuleFired is transient: entered when due, left immediately after the job is emitted
	RuleFired RuleState = "fired"
	// RuleSnoozed means the user deferred the next fire by a fixed delta
	RuleSnoozed RuleState = "snoozed"
	// RuleCancelled is terminal: no further jobs are ever produced
	RuleCancelled RuleState = "cancelled"
)

// IsValid checks if the rule state value is valid
func (s RuleState) IsValid() bool {
	switch s {
	case RuleScheduled, RuleFired, RuleSnoozed, RuleCancelled:
		return true
	}
	return false
}

// IsActive reports whether a rule in this state can still fire
func (s RuleState) IsActive() bool {
	return s == RuleScheduled || s == RuleSnoozed || s == RuleFired
}

// ReminderRule is a recurring reminder owned by the scheduler
type ReminderRule struct {
	ID          string     `json:"id"`
	SubjectID   string     `json:"subject_id"`
	Kind        string     `json:"kind"`
	Message     string     `json:"message"`
	Frequency   Frequency  `json:"frequency"`
	State       RuleState  `json:"state"`
	AnchorAt    time.Time  `json:"anchor_at"`
	LastFiredAt *time.Time `json:"last_fired_at,omitempty"`
	NextFireAt  time.Time  `json:"next_fire_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validate checks if the rule has valid field values and respects its fire-time invariant
func (r *ReminderRule) Validate() error {
	if strings.TrimSpace(r.SubjectID) == "" {
		return NewValidationError("subject_id", "is required")
	}
	if strings.TrimSpace(r.Kind) == "" {
		return NewValidationError("kind", "is required")
	}
	if strings.TrimSpace(r.Message) == "" {
		return NewValidationError("message", "is required")
	}
	if len(r.Message) > 1000 {
		return NewValidationError("message", "must be 1000 characters or less (got %d)", len(r.Message))
	}
	if !r.Frequency.IsValid() {
		return NewValidationError("frequency", "must be one of daily, weekly, monthly (got %q)", string(r.Frequency))
	}
	if !r.State.IsValid() {
		return NewValidationError("state", "invalid rule state %q", string(r.State))
	}
	if r.AnchorAt.IsZero() {
		return NewValidationError("anchor_at", "is required")
	}
	// A cancelled rule never fires again, so its fire times are historical only
	if r.State != RuleCancelled && r.LastFiredAt != nil && !r.NextFireAt.After(*r.LastFiredAt) {
		return fmt.Errorf("%w: rule %s next_fire_at %s is not after last_fired_at %s",
			ErrSchedulingInconsistency, r.ID, r.NextFireAt.Format(time.RFC3339), r.LastFiredAt.Format(time.RFC3339))
	}
	return nil
}

// Clone returns a deep copy of the rule
func (r *ReminderRule) Clone() *ReminderRule {
	if r == nil {
		return nil
	}
	c := *r
	if r.LastFiredAt != nil {
		t := *r.LastFiredAt
		c.LastFiredAt = &t
	}
	return &c
}
