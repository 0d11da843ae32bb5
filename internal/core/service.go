// Package core wires the trend engine, goal evaluator, recommendation generator,
// reminder scheduler and notification dispatcher over a durable store, and exposes
// the operations the CLI and REPL call.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/vitality/internal/goals"
	"github.com/steveyegge/vitality/internal/notify"
	"github.com/steveyegge/vitality/internal/recommend"
	"github.com/steveyegge/vitality/internal/reminder"
	"github.com/steveyegge/vitality/internal/storage"
	"github.com/steveyegge/vitality/internal/storage/sqlite"
	"github.com/steveyegge/vitality/internal/trend"
	"github.com/steveyegge/vitality/internal/types"
)

// Options configures a Service. Zero-valued Trend, Scheduler and Dispatcher
// sections select their package defaults; Tolerance and CoolDown are used as given.
type Options struct {
	Store storage.Storage // required

	Trend      trend.Config
	Goals      map[types.MetricType]types.Goal // nil = goals.DefaultGoals()
	Tolerance  float64
	CoolDown   time.Duration
	Scheduler  reminder.Config
	Dispatcher notify.Config

	// Sender is the default delivery channel (nil = in-app inbox)
	Sender       notify.Sender
	Personalizer recommend.Personalizer

	Clock  func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

// DefaultOptions returns options with every tunable at its default
func DefaultOptions(store storage.Storage) Options {
	return Options{
		Store:      store,
		Trend:      trend.DefaultConfig(),
		Tolerance:  goals.DefaultTolerance,
		CoolDown:   recommend.DefaultCoolDown,
		Scheduler:  reminder.DefaultConfig(),
		Dispatcher: notify.DefaultConfig(),
	}
}

// Service is the health-tracking core
type Service struct {
	store      storage.Storage
	engine     *trend.Engine
	evaluator  *goals.Evaluator
	generator  *recommend.Generator
	scheduler  *reminder.Scheduler
	dispatcher *notify.Dispatcher
	sender     notify.Sender
	coolDown   time.Duration
	now        func() time.Time
	newID      func() string
	logger     *slog.Logger
}

// New creates a Service
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Trend == (trend.Config{}) {
		opts.Trend = trend.DefaultConfig()
	}
	if opts.Scheduler == (reminder.Config{}) {
		opts.Scheduler = reminder.DefaultConfig()
	}
	if opts.Dispatcher == (notify.Config{}) {
		opts.Dispatcher = notify.DefaultConfig()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	engine, err := trend.NewEngine(opts.Trend)
	if err != nil {
		return nil, err
	}
	evaluator, err := goals.NewEvaluator(opts.Goals, opts.Tolerance)
	if err != nil {
		return nil, fmt.Errorf("invalid goals: %w", err)
	}

	genOpts := []recommend.Option{
		recommend.WithClock(opts.Clock),
		recommend.WithIDGenerator(opts.NewID),
		recommend.WithLogger(opts.Logger),
	}
	if opts.Personalizer != nil {
		genOpts = append(genOpts, recommend.WithPersonalizer(opts.Personalizer))
	}
	generator, err := recommend.NewGenerator(nil, opts.CoolDown, genOpts...)
	if err != nil {
		return nil, err
	}

	scheduler, err := reminder.NewScheduler(opts.Store, opts.Scheduler,
		reminder.WithClock(opts.Clock),
		reminder.WithIDGenerator(opts.NewID),
		reminder.WithLogger(opts.Logger),
	)
	if err != nil {
		return nil, err
	}

	dispatcher, err := notify.NewDispatcher(opts.Dispatcher,
		notify.WithRecorder(opts.Store),
		notify.WithLogger(opts.Logger),
		notify.WithClock(opts.Clock),
	)
	if err != nil {
		return nil, err
	}

	sender := opts.Sender
	if sender == nil {
		sender = notify.NewInboxSender(opts.Store)
	}

	return &Service{
		store:      opts.Store,
		engine:     engine,
		evaluator:  evaluator,
		generator:  generator,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		sender:     sender,
		coolDown:   opts.CoolDown,
		now:        opts.Clock,
		newID:      opts.NewID,
		logger:     opts.Logger,
	}, nil
}

// Store returns the underlying store
func (s *Service) Store() storage.Storage { return s.store }

// Scheduler returns the reminder scheduler
func (s *Service) Scheduler() *reminder.Scheduler { return s.scheduler }

// Goals returns the configured goals
func (s *Service) Goals() map[types.MetricType]types.Goal { return s.evaluator.Goals() }

// RegisterSubject adds a subject to the registry
func (s *Service) RegisterSubject(ctx context.Context, id, email, displayName string) (*types.Subject, error) {
	subject := &types.Subject{ID: id, Email: email, DisplayName: displayName, CreatedAt: s.now()}
	if err := s.store.CreateSubject(ctx, subject); err != nil {
		return nil, err
	}
	s.logger.Info("subject registered", "subject_id", id)
	return subject, nil
}

// IngestSample validates and appends one measurement
func (s *Service) IngestSample(ctx context.Context, subjectID string, metric types.MetricType, takenAt time.Time, value float64) error {
	sample := &types.MetricSample{SubjectID: subjectID, Metric: metric, TakenAt: takenAt, Value: value}
	if err := s.store.AppendSample(ctx, sample); err != nil {
		return err
	}
	s.logger.Debug("sample ingested", "subject_id", subjectID, "metric", metric, "value", value)
	return nil
}

func (s *Service) series(ctx context.Context, subjectID string, metric types.MetricType) (*trend.Series, error) {
	if !metric.IsValid() {
		return nil, types.NewValidationError("metric", "unknown metric type %q", string(metric))
	}
	if _, err := s.store.GetSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	samples, err := s.store.ListSamples(ctx, subjectID, metric)
	if err != nil {
		return nil, err
	}
	return trend.NewSeries(subjectID, metric, samples)
}

// GetTrend classifies a subject's metric history. window <= 0 uses the configured default.
func (s *Service) GetTrend(ctx context.Context, subjectID string, metric types.MetricType, window int) (types.TrendResult, error) {
	series, err := s.series(ctx, subjectID, metric)
	if err != nil {
		return types.TrendResult{}, err
	}
	return s.engine.Compute(series, window), nil
}

// GetGoalStatus compares the latest value and trend against the metric's goal.
// A subject with no samples is off-track with Latest reported as 0.
func (s *Service) GetGoalStatus(ctx context.Context, subjectID string, metric types.MetricType) (types.GoalStatus, error) {
	series, err := s.series(ctx, subjectID, metric)
	if err != nil {
		return types.GoalStatus{}, err
	}
	status, _, err := s.statusFor(series)
	return status, err
}

func (s *Service) statusFor(series *trend.Series) (types.GoalStatus, types.TrendResult, error) {
	tr := s.engine.Compute(series, 0)
	latest := math.NaN()
	if sample, ok := series.Latest(); ok {
		latest = sample.Value
	}
	status, err := s.evaluator.Evaluate(series.Metric(), latest, tr)
	if err != nil {
		return types.GoalStatus{}, tr, err
	}
	if math.IsNaN(status.Latest) {
		status.Latest = 0
	}
	return status, tr, nil
}

// ListRecommendations returns a subject's recommendation history, newest first
func (s *Service) ListRecommendations(ctx context.Context, subjectID string) ([]*types.Recommendation, error) {
	if _, err := s.store.GetSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	return s.store.ListRecommendations(ctx, subjectID, time.Time{})
}

// RefreshRecommendations evaluates every metric for a subject and persists the
// advice the cool-down allows. It returns only the newly created recommendations.
func (s *Service) RefreshRecommendations(ctx context.Context, subjectID string) ([]*types.Recommendation, error) {
	if _, err := s.store.GetSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	history, err := s.store.ListRecommendations(ctx, subjectID, s.now().Add(-s.coolDown))
	if err != nil {
		return nil, err
	}

	var created []*types.Recommendation
	for _, metric := range types.AllMetrics {
		series, err := s.series(ctx, subjectID, metric)
		if err != nil {
			return created, err
		}
		status, tr, err := s.statusFor(series)
		if err != nil {
			return created, err
		}
		rec, ok := s.generator.Generate(subjectID, tr, status, history)
		if !ok {
			continue
		}
		rec = s.generator.Personalize(ctx, rec)
		if err := s.store.SaveRecommendation(ctx, rec); err != nil {
			return created, fmt.Errorf("failed to save recommendation for %s: %w", metric, err)
		}
		history = append(history, rec)
		created = append(created, rec)
	}
	s.logger.Debug("recommendations refreshed", "subject_id", subjectID, "created", len(created))
	return created, nil
}

// DeliverRecommendations sends each recommendation to its subject through the default channel
func (s *Service) DeliverRecommendations(ctx context.Context, recs []*types.Recommendation) types.BatchResult {
	jobs := make([]*types.NotificationJob, 0, len(recs))
	for _, rec := range recs {
		jobs = append(jobs, types.NewJob(s.newID(), rec.SubjectID, types.Payload{
			Subject: "New advice about your " + string(rec.Metric),
			Body:    rec.Text,
			Source:  "recommendation:" + string(rec.Metric),
		}, s.now()))
	}
	return s.Dispatch(ctx, jobs, nil)
}

// Report bundles goals, trends, statuses and raw samples for every metric
func (s *Service) Report(ctx context.Context, subjectID string) (*types.Report, error) {
	if _, err := s.store.GetSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	report := &types.Report{
		SubjectID: subjectID,
		Goals:     s.evaluator.Goals(),
		Trends:    make(map[types.MetricType]types.TrendResult),
		Statuses:  make(map[types.MetricType]types.GoalStatus),
		Metrics:   make(map[types.MetricType][]types.MetricSample),
	}
	for _, metric := range types.AllMetrics {
		series, err := s.series(ctx, subjectID, metric)
		if err != nil {
			return nil, err
		}
		status, tr, err := s.statusFor(series)
		if err != nil {
			return nil, err
		}
		report.Trends[metric] = tr
		report.Statuses[metric] = status
		report.Metrics[metric] = series.Samples()
	}
	return report, nil
}

// CreateReminder schedules a rule anchored at the current time
func (s *Service) CreateReminder(ctx context.Context, subjectID, kind, message string, frequency types.Frequency) (*types.ReminderRule, error) {
	return s.ScheduleReminder(ctx, reminder.CreateRequest{
		SubjectID: subjectID,
		Kind:      kind,
		Message:   message,
		Frequency: frequency,
	})
}

// ScheduleReminder schedules a rule with an explicit anchor
func (s *Service) ScheduleReminder(ctx context.Context, req reminder.CreateRequest) (*types.ReminderRule, error) {
	return s.scheduler.Create(ctx, req)
}

// CancelReminder cancels a rule. It produces no job from the next tick on.
func (s *Service) CancelReminder(ctx context.Context, ruleID string) error {
	return s.scheduler.Cancel(ctx, ruleID)
}

// SnoozeReminder defers a rule by the configured snooze delta
func (s *Service) SnoozeReminder(ctx context.Context, ruleID string) (*types.ReminderRule, error) {
	return s.scheduler.Snooze(ctx, ruleID)
}

// UpdateReminder edits a rule's kind, message or frequency
func (s *Service) UpdateReminder(ctx context.Context, ruleID string, changes reminder.Changes) (*types.ReminderRule, error) {
	return s.scheduler.Update(ctx, ruleID, changes)
}

// DeleteReminder removes a rule permanently
func (s *Service) DeleteReminder(ctx context.Context, ruleID string) error {
	return s.scheduler.Delete(ctx, ruleID)
}

// ListReminders returns all of a subject's rules
func (s *Service) ListReminders(ctx context.Context, subjectID string) ([]*types.ReminderRule, error) {
	if _, err := s.store.GetSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	return s.scheduler.List(ctx, subjectID)
}

// Tick runs one scheduler pass at now. Per-rule failures are in the result,
// each carrying its rule id.
func (s *Service) Tick(ctx context.Context, now time.Time) (reminder.TickResult, error) {
	res, err := s.scheduler.Tick(ctx, now)
	for _, f := range res.Failures {
		s.logger.Warn("reminder rule failed on tick", "rule_id", f.RuleID, "error", f.Err)
	}
	return res, err
}

// Dispatch delivers jobs through sender (nil = the default channel)
func (s *Service) Dispatch(ctx context.Context, jobs []*types.NotificationJob, sender notify.Sender) types.BatchResult {
	if sender == nil {
		sender = s.sender
	}
	res := s.dispatcher.Dispatch(ctx, jobs, sender)
	for _, job := range res.Jobs {
		s.logger.Warn("notification not delivered",
			"job_id", job.ID, "recipient", job.Recipient, "status", job.Status,
			"attempts", job.Attempt, "error", job.LastError)
	}
	return res
}

// Broadcast sends one notice to every registered subject, such as an
// upcoming Q&A session announcement
func (s *Service) Broadcast(ctx context.Context, subject, body string) (types.BatchResult, error) {
	if body == "" {
		return types.BatchResult{}, types.NewValidationError("body", "is required")
	}
	subjects, err := s.store.ListSubjects(ctx)
	if err != nil {
		return types.BatchResult{}, err
	}
	jobs := make([]*types.NotificationJob, 0, len(subjects))
	for _, sub := range subjects {
		jobs = append(jobs, types.NewJob(s.newID(), sub.ID, types.Payload{
			Subject: subject,
			Body:    body,
			Source:  "broadcast",
		}, s.now()))
	}
	s.logger.Info("broadcasting notice", "recipients", len(jobs))
	return s.Dispatch(ctx, jobs, nil), nil
}

// Inbox returns a subject's in-app notifications
func (s *Service) Inbox(ctx context.Context, subjectID string, unreadOnly bool) ([]*types.InboxItem, error) {
	if _, err := s.store.GetSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	return s.store.ListInbox(ctx, subjectID, unreadOnly)
}

// MarkRead marks an inbox item read
func (s *Service) MarkRead(ctx context.Context, itemID string) error {
	return s.store.MarkInboxRead(ctx, itemID, s.now())
}

// Deliveries returns recorded delivery outcomes
func (s *Service) Deliveries(ctx context.Context, filter sqlite.DeliveryFilter) ([]*types.DeliveryAttempt, error) {
	return s.store.ListDeliveries(ctx, filter)
}
