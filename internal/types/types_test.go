package types

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"
)

func TestMetricValueRanges(t *testing.T) {
	tests := []struct {
		metric MetricType
		value  float64
		ok     bool
	}{
		{MetricCount, 0, true},
		{MetricCount, 250, true},
		{MetricCount, -1, false},
		{MetricMotility, 0, true},
		{MetricMotility, 100, true},
		{MetricMotility, 100.1, false},
		{MetricMorphology, -0.5, false},
		{MetricMorphology, math.NaN(), false},
		{MetricCount, math.Inf(1), false},
		{MetricType("weight"), 80, false},
	}
	for _, tt := range tests {
		err := tt.metric.ValidateValue(tt.value)
		if tt.ok && err != nil {
			t.Errorf("%s=%v: unexpected error %v", tt.metric, tt.value, err)
		}
		if !tt.ok && !IsValidation(err) {
			t.Errorf("%s=%v: expected validation error, got %v", tt.metric, tt.value, err)
		}
	}
}

func TestParseMetricType(t *testing.T) {
	m, err := ParseMetricType("  Motility ")
	if err != nil || m != MetricMotility {
		t.Fatalf("ParseMetricType = %q, %v", m, err)
	}
	if _, err := ParseMetricType("volume"); !IsValidation(err) {
		t.Errorf("expected validation error for unknown metric, got %v", err)
	}
}

func TestSampleValidate(t *testing.T) {
	valid := MetricSample{SubjectID: "alice", Metric: MetricCount, TakenAt: time.Now(), Value: 40}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid sample rejected: %v", err)
	}

	noSubject := valid
	noSubject.SubjectID = " "
	noTime := valid
	noTime.TakenAt = time.Time{}
	for name, s := range map[string]MetricSample{"subject": noSubject, "taken_at": noTime} {
		var verr *ValidationError
		if err := s.Validate(); !errors.As(err, &verr) {
			t.Errorf("%s: expected *ValidationError, got %v", name, err)
		}
	}
}

func TestSubjectValidate(t *testing.T) {
	if err := (&Subject{ID: "alice", Email: "alice@example.com"}).Validate(); err != nil {
		t.Errorf("valid subject rejected: %v", err)
	}
	if err := (&Subject{ID: "alice", Email: "alice"}).Validate(); !IsValidation(err) {
		t.Errorf("expected invalid email, got %v", err)
	}
	if err := (&Subject{Email: "a@b"}).Validate(); !IsValidation(err) {
		t.Errorf("expected missing id, got %v", err)
	}
}

func TestParseFrequency(t *testing.T) {
	for _, s := range []string{"daily", "WEEKLY", " monthly"} {
		if _, err := ParseFrequency(s); err != nil {
			t.Errorf("ParseFrequency(%q): %v", s, err)
		}
	}
	if _, err := ParseFrequency("hourly"); !IsValidation(err) {
		t.Errorf("expected validation error for hourly, got %v", err)
	}
}

func TestRuleStates(t *testing.T) {
	for _, s := range []RuleState{RuleScheduled, RuleFired, RuleSnoozed} {
		if !s.IsActive() {
			t.Errorf("%s should be active", s)
		}
	}
	if RuleCancelled.IsActive() {
		t.Error("cancelled should not be active")
	}
	if RuleState("paused").IsValid() {
		t.Error("paused should not be valid")
	}
}

func TestReminderRuleValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	base := ReminderRule{
		ID: "r1", SubjectID: "alice", Kind: "medication", Message: "take it",
		Frequency: FrequencyDaily, State: RuleScheduled, AnchorAt: now, NextFireAt: now.Add(24 * time.Hour),
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	long := base
	long.Message = strings.Repeat("x", 1001)
	if err := long.Validate(); !IsValidation(err) {
		t.Errorf("expected long message rejected, got %v", err)
	}

	stale := base
	fired := now.Add(24 * time.Hour)
	stale.LastFiredAt = &fired
	if err := stale.Validate(); !errors.Is(err, ErrSchedulingInconsistency) {
		t.Errorf("expected scheduling inconsistency, got %v", err)
	}

	stale.State = RuleCancelled
	if err := stale.Validate(); err != nil {
		t.Errorf("cancelled rule should skip fire-time check, got %v", err)
	}
}

func TestReminderRuleCloneIsDeep(t *testing.T) {
	fired := time.Now()
	r := &ReminderRule{ID: "r1", LastFiredAt: &fired}
	c := r.Clone()
	*c.LastFiredAt = fired.Add(time.Hour)
	if !r.LastFiredAt.Equal(fired) {
		t.Error("clone shares LastFiredAt with original")
	}
	if (*ReminderRule)(nil).Clone() != nil {
		t.Error("nil clone should be nil")
	}
}

func TestJobTransition(t *testing.T) {
	now := time.Now()
	job := NewJob("j1", "alice", Payload{Subject: "s", Body: "b"}, now)
	if err := job.Validate(); err != nil {
		t.Fatalf("valid job rejected: %v", err)
	}

	if err := job.Transition(JobFailedPermanent, errors.New("bad address"), now); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if job.FinishedAt == nil || job.LastError != "bad address" {
		t.Errorf("terminal job not stamped: %+v", job)
	}
	if err := job.Transition(JobDelivered, nil, now); !errors.Is(err, ErrJobTerminal) {
		t.Errorf("expected ErrJobTerminal, got %v", err)
	}
}

func TestErrorMatching(t *testing.T) {
	wrapped := fmt.Errorf("failed to load: %w", NewNotFoundError("reminder", "r9"))
	if !IsNotFound(wrapped) || IsValidation(wrapped) {
		t.Errorf("not-found matching broken for %v", wrapped)
	}
	var nf *NotFoundError
	if !errors.As(wrapped, &nf) || nf.ID != "r9" {
		t.Errorf("errors.As did not recover NotFoundError")
	}
	if got := NewValidationError("", "bad").Error(); got != "invalid input: bad" {
		t.Errorf("unexpected message %q", got)
	}
}
