package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/steveyegge/vitality/internal/types"
)

// SaveRecommendation stores a generated recommendation
func (s *SQLiteStorage) SaveRecommendation(ctx context.Context, rec *types.Recommendation) error {
	b := rec.Basis
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recommendations (
			id, subject_id, metric, text, direction, confidence, slope, samples,
			state, latest, target, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.SubjectID, string(rec.Metric), rec.Text,
		string(b.Trend.Direction), b.Trend.Confidence, b.Trend.Slope, b.Trend.Samples,
		string(b.Status.State), b.Status.Latest, b.Status.Target, toNanos(rec.CreatedAt))
	if isForeignKeyViolation(err) {
		return types.NewNotFoundError("subject", rec.SubjectID)
	}
	if err != nil {
		return fmt.Errorf("failed to save recommendation: %w", err)
	}
	return nil
}

// ListRecommendations returns a subject's recommendations created at or after since,
// newest first. A zero since returns the full history.
func (s *SQLiteStorage) ListRecommendations(ctx context.Context, subjectID string, since time.Time) ([]*types.Recommendation, error) {
	var sinceNanos int64
	if !since.IsZero() {
		sinceNanos = toNanos(since)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, metric, text, direction, confidence, slope, samples,
		       state, latest, target, created_at
		FROM recommendations
		WHERE subject_id = ? AND created_at >= ?
		ORDER BY created_at DESC, id
	`, subjectID, sinceNanos)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	defer rows.Close()

	var recs []*types.Recommendation
	for rows.Next() {
		var (
			rec       types.Recommendation
			metric    string
			direction string
			state     string
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &metric, &rec.Text, &direction,
			&rec.Basis.Trend.Confidence, &rec.Basis.Trend.Slope, &rec.Basis.Trend.Samples,
			&state, &rec.Basis.Status.Latest, &rec.Basis.Status.Target, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		rec.SubjectID = subjectID
		rec.Metric = types.MetricType(metric)
		rec.Basis.Trend.Metric = rec.Metric
		rec.Basis.Trend.Direction = types.Direction(direction)
		rec.Basis.Status.Metric = rec.Metric
		rec.Basis.Status.State = types.GoalState(state)
		rec.CreatedAt = fromNanos(createdAt)
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}
