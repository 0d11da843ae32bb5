package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/steveyegge/vitality/internal/types"
)

const reminderColumns = `id, subject_id, kind, message, frequency, state,
	anchor_at, anchor_tz, anchor_offset, last_fired_at, next_fire_at, created_at, updated_at`

// CreateReminder inserts a new rule
func (s *SQLiteStorage) CreateReminder(ctx context.Context, rule *types.ReminderRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	exists, err := s.subjectExists(ctx, rule.SubjectID)
	if err != nil {
		return err
	}
	if !exists {
		return types.NewNotFoundError("subject", rule.SubjectID)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reminder_rules (`+reminderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rule.ID, rule.SubjectID, rule.Kind, rule.Message, string(rule.Frequency), string(rule.State),
		toNanos(rule.AnchorAt), zoneName(rule.AnchorAt), zoneOffset(rule.AnchorAt),
		nullNanos(rule.LastFiredAt), toNanos(rule.NextFireAt),
		toNanos(rule.CreatedAt), toNanos(rule.UpdatedAt))
	if isUniqueViolation(err) {
		return types.NewValidationError("id", "reminder %s already exists", rule.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}
	return nil
}

// GetReminder returns a rule by id
func (s *SQLiteStorage) GetReminder(ctx context.Context, id string) (*types.ReminderRule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminder_rules WHERE id = ?`, id)
	rule, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError("reminder", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return rule, nil
}

// UpdateReminder overwrites the mutable fields of a rule
func (s *SQLiteStorage) UpdateReminder(ctx context.Context, rule *types.ReminderRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE reminder_rules
		SET kind = ?, message = ?, frequency = ?, state = ?, anchor_at = ?, anchor_tz = ?,
		    anchor_offset = ?, last_fired_at = ?, next_fire_at = ?, updated_at = ?
		WHERE id = ?
	`, rule.Kind, rule.Message, string(rule.Frequency), string(rule.State), toNanos(rule.AnchorAt),
		zoneName(rule.AnchorAt), zoneOffset(rule.AnchorAt), nullNanos(rule.LastFiredAt), toNanos(rule.NextFireAt), toNanos(rule.UpdatedAt), rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return types.NewNotFoundError("reminder", rule.ID)
	}
	return nil
}

// DeleteReminder removes a rule
func (s *SQLiteStorage) DeleteReminder(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reminder_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return types.NewNotFoundError("reminder", id)
	}
	return nil
}

// ListActiveReminders returns every rule that is not cancelled, soonest first
func (s *SQLiteStorage) ListActiveReminders(ctx context.Context) ([]*types.ReminderRule, error) {
	return s.queryReminders(ctx, `
		SELECT `+reminderColumns+` FROM reminder_rules
		WHERE state != 'cancelled'
		ORDER BY next_fire_at, id
	`)
}

// ListReminders returns all of a subject's rules, including cancelled ones
func (s *SQLiteStorage) ListReminders(ctx context.Context, subjectID string) ([]*types.ReminderRule, error) {
	return s.queryReminders(ctx, `
		SELECT `+reminderColumns+` FROM reminder_rules
		WHERE subject_id = ?
		ORDER BY created_at, id
	`, subjectID)
}

func (s *SQLiteStorage) queryReminders(ctx context.Context, query string, args ...interface{}) ([]*types.ReminderRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	var rules []*types.ReminderRule
	for rows.Next() {
		rule, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReminder(row scanner) (*types.ReminderRule, error) {
	var (
		rule                                      types.ReminderRule
		frequency, state, tz                      string
		anchorAt, nextFireAt, createdAt, updatedAt int64
		offset                                    int
		lastFiredAt                               sql.NullInt64
	)
	if err := row.Scan(&rule.ID, &rule.SubjectID, &rule.Kind, &rule.Message, &frequency, &state,
		&anchorAt, &tz, &offset, &lastFiredAt, &nextFireAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	loc := anchorLocation(tz, offset)
	rule.Frequency = types.Frequency(frequency)
	rule.State = types.RuleState(state)
	rule.AnchorAt = fromNanos(anchorAt).In(loc)
	rule.LastFiredAt = fromNullNanos(lastFiredAt)
	if rule.LastFiredAt != nil {
		t := rule.LastFiredAt.In(loc)
		rule.LastFiredAt = &t
	}
	rule.NextFireAt = fromNanos(nextFireAt).In(loc)
	rule.CreatedAt = fromNanos(createdAt)
	rule.UpdatedAt = fromNanos(updatedAt)
	return &rule, nil
}

func zoneName(t time.Time) string {
	return t.Location().String()
}

func zoneOffset(t time.Time) int {
	_, offset := t.Zone()
	return offset
}

// anchorLocation restores a stored zone. Zones that are not in the tz database
// (unnamed or custom fixed offsets, as parsed from RFC 3339 input) come back
// as a fixed zone.
func anchorLocation(name string, offset int) *time.Location {
	if name == "" {
		return time.FixedZone("", offset)
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone(name, offset)
}
