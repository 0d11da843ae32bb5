package sqlite

import (
	"context"
	"fmt"

	"github.com/steveyegge/vitality/internal/types"
)

// DeliveryFilter narrows ListDeliveries
type DeliveryFilter struct {
	Status types.JobStatus // empty = any
	RuleID string          // empty = any
	Limit  int             // 0 = 100
}

// RecordDelivery appends the terminal outcome of a job
func (s *SQLiteStorage) RecordDelivery(ctx context.Context, a *types.DeliveryAttempt) error {
	if !a.Status.IsValid() {
		return types.NewValidationError("status", "invalid job status %q", string(a.Status))
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delivery_attempts (job_id, recipient, source, rule_id, attempts, status, last_error, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.JobID, a.Recipient, a.Source, a.RuleID, a.Attempts, string(a.Status), a.LastError, toNanos(a.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	return nil
}

// ListDeliveries returns recorded outcomes, most recent first
func (s *SQLiteStorage) ListDeliveries(ctx context.Context, filter DeliveryFilter) ([]*types.DeliveryAttempt, error) {
	query := `
		SELECT job_id, recipient, source, rule_id, attempts, status, last_error, finished_at
		FROM delivery_attempts
		WHERE 1 = 1`
	var args []interface{}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.RuleID != "" {
		query += ` AND rule_id = ?`
		args = append(args, filter.RuleID)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY finished_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	var out []*types.DeliveryAttempt
	for rows.Next() {
		var (
			a          types.DeliveryAttempt
			status     string
			finishedAt int64
		)
		if err := rows.Scan(&a.JobID, &a.Recipient, &a.Source, &a.RuleID, &a.Attempts, &status,
			&a.LastError, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		a.Status = types.JobStatus(status)
		a.FinishedAt = fromNanos(finishedAt)
		out = append(out, &a)
	}
	return out, rows.Err()
}
