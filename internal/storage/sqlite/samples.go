package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/steveyegge/vitality/internal/types"
)

// AppendSample stores a new sample. Samples are never updated; a second sample
// with the same (subject, metric, taken_at) key is rejected.
func (s *SQLiteStorage) AppendSample(ctx context.Context, sample *types.MetricSample) error {
	if err := sample.Validate(); err != nil {
		return err
	}
	exists, err := s.subjectExists(ctx, sample.SubjectID)
	if err != nil {
		return err
	}
	if !exists {
		return types.NewNotFoundError("subject", sample.SubjectID)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO metric_samples (subject_id, metric, taken_at, value, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, sample.SubjectID, string(sample.Metric), toNanos(sample.TakenAt), sample.Value, toNanos(time.Now()))
	if isUniqueViolation(err) {
		return types.NewValidationError("taken_at", "a %s sample already exists at %s",
			sample.Metric, sample.TakenAt.UTC().Format(time.RFC3339))
	}
	if err != nil {
		return fmt.Errorf("failed to append sample: %w", err)
	}
	return nil
}

// ListSamples returns a subject's samples for one metric in ascending time order
func (s *SQLiteStorage) ListSamples(ctx context.Context, subjectID string, metric types.MetricType) ([]types.MetricSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT taken_at, value FROM metric_samples
		WHERE subject_id = ? AND metric = ?
		ORDER BY taken_at ASC
	`, subjectID, string(metric))
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	defer rows.Close()

	var samples []types.MetricSample
	for rows.Next() {
		var (
			takenAt int64
			value   float64
		)
		if err := rows.Scan(&takenAt, &value); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, types.MetricSample{
			SubjectID: subjectID,
			Metric:    metric,
			TakenAt:   fromNanos(takenAt),
			Value:     value,
		})
	}
	return samples, rows.Err()
}
