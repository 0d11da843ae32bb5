package types

import (
	"fmt"
	"time"
)

// JobStatus is the delivery status of a notification job
type JobStatus string

const (
	JobPending         JobStatus = "pending"
	JobDelivered       JobStatus = "delivered"
	JobFailedTransient JobStatus = "failed-transient"
	JobFailedPermanent JobStatus = "failed-permanent"
)

// IsValid checks if the job status value is valid
func (s JobStatus) IsValid() bool {
	switch s {
	case JobPending, JobDelivered, JobFailedTransient, JobFailedPermanent:
		return true
	}
	return false
}

// IsTerminal reports whether no further attempts will be made
func (s JobStatus) IsTerminal() bool {
	return s == JobDelivered || s == JobFailedTransient || s == JobFailedPermanent
}

// Payload is the content of a notification
type Payload struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	// Source names the producer, e.g. "reminder:medication" or "broadcast"
	Source string `json:"source,omitempty"`
	RuleID string `json:"rule_id,omitempty"`
}

// NotificationJob is one delivery unit. Jobs are owned by the dispatcher
// for the duration of a batch.
type NotificationJob struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Payload   Payload   `json:"payload"`
	Attempt   int       `json:"attempt"`
	Status    JobStatus `json:"status"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	// FinishedAt is set once the job reaches a terminal status
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewJob creates a pending job for a recipient
func NewJob(id, recipient string, payload Payload, now time.Time) *NotificationJob {
	return &NotificationJob{
		ID:        id,
		Recipient: recipient,
		Payload:   payload,
		Status:    JobPending,
		CreatedAt: now,
	}
}

// Validate checks if the job has valid field values
func (j *NotificationJob) Validate() error {
	if j.ID == "" {
		return NewValidationError("id", "is required")
	}
	if j.Recipient == "" {
		return NewValidationError("recipient", "is required")
	}
	if j.Payload.Body == "" {
		return NewValidationError("payload.body", "is required")
	}
	if !j.Status.IsValid() {
		return NewValidationError("status", "invalid job status %q", string(j.Status))
	}
	return nil
}

// Transition moves the job to a new status. Terminal statuses are final.
func (j *NotificationJob) Transition(to JobStatus, lastErr error, now time.Time) error {
	if j.Status.IsTerminal() {
		return fmt.Errorf("%w: job %s is %s, cannot move to %s", ErrJobTerminal, j.ID, j.Status, to)
	}
	if !to.IsValid() {
		return NewValidationError("status", "invalid job status %q", string(to))
	}
	j.Status = to
	if lastErr != nil {
		j.LastError = lastErr.Error()
	}
	if to.IsTerminal() {
		t := now
		j.FinishedAt = &t
	}
	return nil
}

// BatchResult summarizes one dispatch batch. Jobs holds only the failed jobs.
type BatchResult struct {
	Delivered int                `json:"delivered"`
	Failed    int                `json:"failed"`
	Jobs      []*NotificationJob `json:"jobs"`
}

// InboxItem is an in-app notification persisted for a subject
type InboxItem struct {
	ID        string     `json:"id"`
	SubjectID string     `json:"subject_id"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	Source    string     `json:"source,omitempty"`
	JobID     string     `json:"job_id"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

// DeliveryAttempt is the audit record of one finished job
type DeliveryAttempt struct {
	JobID      string    `json:"job_id"`
	Recipient  string    `json:"recipient"`
	Source     string    `json:"source,omitempty"`
	RuleID     string    `json:"rule_id,omitempty"`
	Attempts   int       `json:"attempts"`
	Status     JobStatus `json:"status"`
	LastError  string    `json:"last_error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}
