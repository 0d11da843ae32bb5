package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/steveyegge/vitality/internal/types"
)

// CreateSubject registers a new subject
func (s *SQLiteStorage) CreateSubject(ctx context.Context, subject *types.Subject) error {
	if err := subject.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subjects (id, email, display_name, created_at)
		VALUES (?, ?, ?, ?)
	`, subject.ID, subject.Email, subject.DisplayName, toNanos(subject.CreatedAt))
	if isUniqueViolation(err) {
		return types.NewValidationError("id", "subject %s already exists", subject.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create subject: %w", err)
	}
	return nil
}

// GetSubject returns a subject by id
func (s *SQLiteStorage) GetSubject(ctx context.Context, id string) (*types.Subject, error) {
	var (
		subject   types.Subject
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, created_at FROM subjects WHERE id = ?
	`, id).Scan(&subject.ID, &subject.Email, &subject.DisplayName, &createdAt)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError("subject", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}
	subject.CreatedAt = fromNanos(createdAt)
	return &subject, nil
}

// ListSubjects returns all subjects ordered by id
func (s *SQLiteStorage) ListSubjects(ctx context.Context) ([]*types.Subject, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, display_name, created_at FROM subjects ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []*types.Subject
	for rows.Next() {
		var (
			subject   types.Subject
			createdAt int64
		)
		if err := rows.Scan(&subject.ID, &subject.Email, &subject.DisplayName, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subject.CreatedAt = fromNanos(createdAt)
		subjects = append(subjects, &subject)
	}
	return subjects, rows.Err()
}

func (s *SQLiteStorage) subjectExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM subjects WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check subject: %w", err)
	}
	return true, nil
}
