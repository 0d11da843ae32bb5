package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/vitality/internal/types"
)

// Store is the durable home of reminder rules. GetReminder, UpdateReminder and
// DeleteReminder return a *types.NotFoundError for unknown ids.
type Store interface {
	CreateReminder(ctx context.Context, rule *types.ReminderRule) error
	GetReminder(ctx context.Context, id string) (*types.ReminderRule, error)
	UpdateReminder(ctx context.Context, rule *types.ReminderRule) error
	DeleteReminder(ctx context.Context, id string) error
	ListActiveReminders(ctx context.Context) ([]*types.ReminderRule, error)
	ListReminders(ctx context.Context, subjectID string) ([]*types.ReminderRule, error)
}

// Config holds scheduler configuration
type Config struct {
	Interval    time.Duration // Tick interval for Run (default: 1m)
	SnoozeDelta time.Duration // Deferral applied by Snooze (default: 1h)
	Parallelism int           // Max rules evaluated concurrently per tick (default: 8)
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Interval:    time.Minute,
		SnoozeDelta: time.Hour,
		Parallelism: 8,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive (got %v)", c.Interval)
	}
	if c.SnoozeDelta <= 0 {
		return fmt.Errorf("snooze_delta must be positive (got %v)", c.SnoozeDelta)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1 (got %d)", c.Parallelism)
	}
	return nil
}

// Failure reports a rule that could not be evaluated cleanly on a tick
type Failure struct {
	RuleID string
	Err    error
}

// TickResult is everything one scheduler pass produced
type TickResult struct {
	Jobs []*types.NotificationJob
	// Failures holds scheduling inconsistencies (rules forced to Cancelled)
	// and store errors for individual rules. Other rules are unaffected.
	Failures []Failure
}

// Scheduler owns reminder rule state. All mutation goes through it, and a rule
// is touched by at most one operation at a time.
type Scheduler struct {
	store  Store
	cfg    Config
	locks  *ruleLocks
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock injects the time source used by Create, Update, Cancel and Run
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithIDGenerator injects the id source for rules and jobs
func WithIDGenerator(newID func() string) Option {
	return func(s *Scheduler) { s.newID = newID }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler creates a scheduler over store
func NewScheduler(store Store, cfg Config, opts ...Option) (*Scheduler, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}
	s := &Scheduler{
		store: store,
		cfg:   cfg,
		locks: newRuleLocks(),
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// CreateRequest describes a new reminder
type CreateRequest struct {
	SubjectID string
	Kind      string
	Message   string
	Frequency types.Frequency
	// StartAt anchors the cadence; zero means now
	StartAt time.Time
}

// Create persists a new Scheduled rule
func (s *Scheduler) Create(ctx context.Context, req CreateRequest) (*types.ReminderRule, error) {
	rule, err := NewRule(s.newID(), req.SubjectID, req.Kind, req.Message, req.Frequency, req.StartAt, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateReminder(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}
	s.logger.Debug("reminder created", "rule_id", rule.ID, "subject_id", rule.SubjectID,
		"frequency", rule.Frequency, "next_fire_at", rule.NextFireAt)
	return rule, nil
}

// Get returns a rule by id
func (s *Scheduler) Get(ctx context.Context, id string) (*types.ReminderRule, error) {
	return s.store.GetReminder(ctx, id)
}

// List returns all rules for a subject
func (s *Scheduler) List(ctx context.Context, subjectID string) ([]*types.ReminderRule, error) {
	return s.store.ListReminders(ctx, subjectID)
}

// Cancel moves a rule to Cancelled. It takes effect no later than the next tick.
// Cancelling an already cancelled rule is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, id, func(r *types.ReminderRule) (*types.ReminderRule, error) {
		if r.State == types.RuleCancelled {
			return nil, nil
		}
		return Cancel(r, s.now()), nil
	})
	if err == nil {
		s.logger.Info("reminder cancelled", "rule_id", id)
	}
	return err
}

// Snooze defers a rule's next fire by the configured delta
func (s *Scheduler) Snooze(ctx context.Context, id string) (*types.ReminderRule, error) {
	return s.mutate(ctx, id, func(r *types.ReminderRule) (*types.ReminderRule, error) {
		return Snooze(r, s.now(), s.cfg.SnoozeDelta)
	})
}

// Update applies a partial change to a rule
func (s *Scheduler) Update(ctx context.Context, id string, c Changes) (*types.ReminderRule, error) {
	return s.mutate(ctx, id, func(r *types.ReminderRule) (*types.ReminderRule, error) {
		return Apply(r, c, s.now())
	})
}

// Delete removes a rule permanently
func (s *Scheduler) Delete(ctx context.Context, id string) error {
	unlock := s.locks.lock(id)
	defer unlock()
	if err := s.store.DeleteReminder(ctx, id); err != nil {
		return fmt.Errorf("failed to delete reminder %s: %w", id, err)
	}
	return nil
}

// mutate runs fn on the freshly loaded rule under the rule's lock and persists the result.
// fn returning (nil, nil) means nothing to write; the current rule is returned.
func (s *Scheduler) mutate(ctx context.Context, id string, fn func(*types.ReminderRule) (*types.ReminderRule, error)) (*types.ReminderRule, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	current, err := s.store.GetReminder(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := fn(current)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return current, nil
	}
	if err := s.store.UpdateReminder(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to update reminder %s: %w", id, err)
	}
	return updated, nil
}

// Tick evaluates every active rule at instant now. Rules are evaluated in parallel
// up to the configured limit; each rule is re-read under its lock so a cancellation
// recorded before the tick is always observed. A failure on one rule never stops
// the others. The returned error is non-nil only when the rule list itself
// cannot be read or ctx is done.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (TickResult, error) {
	rules, err := s.store.ListActiveReminders(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("failed to list active reminders: %w", err)
	}

	var (
		mu     sync.Mutex
		result TickResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)

	for _, r := range rules {
		id := r.ID
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			job, err := s.evaluate(gctx, id, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, Failure{RuleID: id, Err: err})
			}
			if job != nil {
				result.Jobs = append(result.Jobs, job)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, fmt.Errorf("tick interrupted: %w", err)
	}

	sort.Slice(result.Jobs, func(i, j int) bool { return result.Jobs[i].Payload.RuleID < result.Jobs[j].Payload.RuleID })
	sort.Slice(result.Failures, func(i, j int) bool { return result.Failures[i].RuleID < result.Failures[j].RuleID })
	return result, nil
}

func (s *Scheduler) evaluate(ctx context.Context, id string, now time.Time) (*types.NotificationJob, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	rule, err := s.store.GetReminder(ctx, id)
	if err != nil {
		if types.IsNotFound(err) {
			// Deleted after the list was read
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load reminder: %w", err)
	}

	d := Evaluate(rule, now)
	if !d.Changed {
		return nil, nil
	}
	if err := s.store.UpdateReminder(ctx, d.Rule); err != nil {
		return nil, fmt.Errorf("failed to persist reminder state: %w", err)
	}
	if d.Err != nil {
		s.logger.Error("reminder cancelled after scheduling inconsistency",
			"rule_id", id, "subject_id", rule.SubjectID, "error", d.Err)
		return nil, d.Err
	}
	if !d.Fire {
		return nil, nil
	}

	job := types.NewJob(s.newID(), d.Rule.SubjectID, types.Payload{
		Subject: "Reminder: " + d.Rule.Kind,
		Body:    d.Rule.Message,
		Source:  "reminder:" + d.Rule.Kind,
		RuleID:  d.Rule.ID,
	}, now)
	s.logger.Debug("reminder fired", "rule_id", id, "fired_at", d.FiredAt, "next_fire_at", d.Rule.NextFireAt)
	return job, nil
}

// Run ticks immediately (collapsing any downtime backlog) and then every
// configured interval, handing emitted jobs to out. It never delivers jobs
// itself. The caller must keep receiving from out until Run returns, since jobs
// fired on the final tick are sent after cancellation. Run returns nil when ctx
// is cancelled.
func (s *Scheduler) Run(ctx context.Context, out chan<- *types.NotificationJob) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("reminder scheduler started", "interval", s.cfg.Interval)
	for {
		if err := s.runOnce(ctx, out); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				s.logger.Info("reminder scheduler stopped")
				return nil
			}
			s.logger.Error("reminder tick failed", "error", err)
		}

		select {
		case <-ctx.Done():
			s.logger.Info("reminder scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, out chan<- *types.NotificationJob) error {
	res, err := s.Tick(ctx, s.now())
	for _, f := range res.Failures {
		s.logger.Warn("reminder rule failed on tick", "rule_id", f.RuleID, "error", f.Err)
	}
	// The rules behind these jobs have already advanced, so every job is handed
	// off even when ctx is done. The consumer drains out until Run returns.
	for _, job := range res.Jobs {
		out <- job
	}
	return err
}
