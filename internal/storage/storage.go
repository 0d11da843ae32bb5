package storage

import (
	"context"
	"time"

	"github.com/steveyegge/vitality/internal/storage/sqlite"
	"github.com/steveyegge/vitality/internal/types"
)

// DefaultPath is where the database lives when nothing else is configured
const DefaultPath = ".vitality/vitality.db"

// Storage defines the interface for durable health-tracking storage
type Storage interface {
	// Subjects
	CreateSubject(ctx context.Context, subject *types.Subject) error
	GetSubject(ctx context.Context, id string) (*types.Subject, error)
	ListSubjects(ctx context.Context) ([]*types.Subject, error)

	// Samples (append-only)
	AppendSample(ctx context.Context, sample *types.MetricSample) error
	ListSamples(ctx context.Context, subjectID string, metric types.MetricType) ([]types.MetricSample, error)

	// Recommendations (append-only)
	SaveRecommendation(ctx context.Context, rec *types.Recommendation) error
	ListRecommendations(ctx context.Context, subjectID string, since time.Time) ([]*types.Recommendation, error)

	// Reminder rules
	CreateReminder(ctx context.Context, rule *types.ReminderRule) error
	GetReminder(ctx context.Context, id string) (*types.ReminderRule, error)
	UpdateReminder(ctx context.Context, rule *types.ReminderRule) error
	DeleteReminder(ctx context.Context, id string) error
	ListActiveReminders(ctx context.Context) ([]*types.ReminderRule, error)
	ListReminders(ctx context.Context, subjectID string) ([]*types.ReminderRule, error)

	// Inbox
	AddInboxItem(ctx context.Context, item *types.InboxItem) error
	ListInbox(ctx context.Context, subjectID string, unreadOnly bool) ([]*types.InboxItem, error)
	MarkInboxRead(ctx context.Context, id string, at time.Time) error

	// Delivery audit
	RecordDelivery(ctx context.Context, attempt *types.DeliveryAttempt) error
	ListDeliveries(ctx context.Context, filter sqlite.DeliveryFilter) ([]*types.DeliveryAttempt, error)

	// Lifecycle
	SchemaVersion(ctx context.Context) (int, error)
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".vitality/vitality.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: DefaultPath,
	}
}

// NewStorage creates a new SQLite storage backend
// The ctx parameter is currently unused but kept for API consistency
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	return sqlite.New(cfg.Path)
}
