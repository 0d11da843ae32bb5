package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/steveyegge/vitality/internal/types"
)

// AddInboxItem stores an in-app notification. Re-delivering the same job is a no-op.
func (s *SQLiteStorage) AddInboxItem(ctx context.Context, item *types.InboxItem) error {
	if item.SubjectID == "" || item.Body == "" || item.JobID == "" {
		return types.NewValidationError("inbox_item", "subject_id, body and job_id are required")
	}
	exists, err := s.subjectExists(ctx, item.SubjectID)
	if err != nil {
		return err
	}
	if !exists {
		return types.NewNotFoundError("subject", item.SubjectID)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO inbox_items (id, subject_id, subject, body, source, job_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO NOTHING
	`, item.ID, item.SubjectID, item.Subject, item.Body, item.Source, item.JobID, toNanos(item.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to add inbox item: %w", err)
	}
	return nil
}

// ListInbox returns a subject's inbox newest first
func (s *SQLiteStorage) ListInbox(ctx context.Context, subjectID string, unreadOnly bool) ([]*types.InboxItem, error) {
	query := `
		SELECT id, subject_id, subject, body, source, job_id, created_at, read_at
		FROM inbox_items
		WHERE subject_id = ?`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}
	defer rows.Close()

	var items []*types.InboxItem
	for rows.Next() {
		var (
			item      types.InboxItem
			createdAt int64
			readAt    sql.NullInt64
		)
		if err := rows.Scan(&item.ID, &item.SubjectID, &item.Subject, &item.Body, &item.Source,
			&item.JobID, &createdAt, &readAt); err != nil {
			return nil, fmt.Errorf("failed to scan inbox item: %w", err)
		}
		item.CreatedAt = fromNanos(createdAt)
		item.ReadAt = fromNullNanos(readAt)
		items = append(items, &item)
	}
	return items, rows.Err()
}

// MarkInboxRead marks an item read. Marking an already-read item keeps the first read time.
func (s *SQLiteStorage) MarkInboxRead(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE inbox_items SET read_at = COALESCE(read_at, ?) WHERE id = ?
	`, toNanos(at), id)
	if err != nil {
		return fmt.Errorf("failed to mark inbox item read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return types.NewNotFoundError("inbox item", id)
	}
	return nil
}
