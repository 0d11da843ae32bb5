package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/steveyegge/vitality/internal/types"
)

// Sender is the abstract delivery capability. Returned errors are classified
// with IsPermanent; wrap with Permanent or Transient to be explicit.
type Sender interface {
	Send(ctx context.Context, job *types.NotificationJob) error
}

// SenderFunc adapts a function to Sender
type SenderFunc func(ctx context.Context, job *types.NotificationJob) error

// Send calls f
func (f SenderFunc) Send(ctx context.Context, job *types.NotificationJob) error { return f(ctx, job) }

// Recorder receives every job once it reaches a terminal status
type Recorder interface {
	RecordDelivery(ctx context.Context, attempt *types.DeliveryAttempt) error
}

// Config holds dispatcher configuration
type Config struct {
	Workers           int           // Worker pool size, independent of batch size (default: 4)
	MaxAttempts       int           // Total send attempts per job, including the first (default: 3)
	InitialBackoff    time.Duration // Delay before the second attempt (default: 200ms)
	MaxBackoff        time.Duration // Backoff cap (default: 5s)
	BackoffMultiplier float64       // Backoff growth factor (default: 2.0)
	Timeout           time.Duration // Per-attempt send timeout (default: 10s)

	// RateLimit caps outbound sends per second across all workers (0 = unlimited)
	RateLimit float64
	RateBurst int

	Breaker BreakerConfig
}

// DefaultConfig returns the default dispatcher configuration
func DefaultConfig() Config {
	return Config{
		Workers:           4,
		MaxAttempts:       3,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Timeout:           10 * time.Second,
		RateLimit:         0,
		RateBurst:         1,
		Breaker:           DefaultBreakerConfig(),
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1 (got %d)", c.Workers)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1 (got %d)", c.MaxAttempts)
	}
	if c.InitialBackoff < 0 || c.MaxBackoff < 0 {
		return fmt.Errorf("backoff durations must be non-negative")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff (%v) must be >= initial_backoff (%v)", c.MaxBackoff, c.InitialBackoff)
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff_multiplier must be >= 1 (got %v)", c.BackoffMultiplier)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive (got %v)", c.Timeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be non-negative (got %v)", c.RateLimit)
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("rate_burst must be at least 1 when rate_limit is set (got %d)", c.RateBurst)
	}
	return c.Breaker.Validate()
}

// Dispatcher delivers batches of jobs. It is safe for concurrent use; the rate
// limiter and circuit breaker are shared across batches.
type Dispatcher struct {
	cfg      Config
	limiter  *rate.Limiter
	breaker  *CircuitBreaker
	recorder Recorder
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithRecorder records terminal jobs
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithClock injects the time source used for FinishedAt stamps
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a dispatcher
func NewDispatcher(cfg Config, opts ...Option) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dispatcher config: %w", err)
	}
	d := &Dispatcher{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if cfg.RateLimit > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	if cfg.Breaker.Enabled {
		d.breaker = NewCircuitBreaker(cfg.Breaker, d.logger)
	}
	return d, nil
}

// Breaker returns the circuit breaker, or nil when disabled
func (d *Dispatcher) Breaker() *CircuitBreaker { return d.breaker }

// Dispatch attempts every job independently and returns once all jobs are terminal.
//
// Cancelling ctx stops new jobs from starting: jobs still queued are reported
// Failed-Transient with ErrDispatchCancelled, while sends already in flight run
// to completion or their per-attempt timeout and are not retried again.
func (d *Dispatcher) Dispatch(ctx context.Context, jobs []*types.NotificationJob, sender Sender) types.BatchResult {
	if len(jobs) == 0 {
		return types.BatchResult{}
	}

	workers := d.cfg.Workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	queue := make(chan *types.NotificationJob)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				d.deliver(ctx, job, sender)
			}
		}()
	}

feed:
	for i, job := range jobs {
		if job == nil {
			continue
		}
		select {
		case queue <- job:
		case <-ctx.Done():
			for _, rest := range jobs[i:] {
				if rest != nil && !rest.Status.IsTerminal() {
					d.finish(ctx, rest, types.JobFailedTransient, ErrDispatchCancelled)
				}
			}
			break feed
		}
	}
	close(queue)
	wg.Wait()

	var result types.BatchResult
	for _, job := range jobs {
		if job == nil {
			continue
		}
		if job.Status == types.JobDelivered {
			result.Delivered++
			continue
		}
		result.Failed++
		result.Jobs = append(result.Jobs, job)
	}

	d.logger.Info("dispatch batch finished",
		"jobs", len(jobs), "delivered", result.Delivered, "failed", result.Failed)
	return result
}

// deliver runs the retry loop for one job. It never returns an error: the
// outcome is recorded on the job itself.
func (d *Dispatcher) deliver(ctx context.Context, job *types.NotificationJob, sender Sender) {
	if job.Status.IsTerminal() {
		return
	}
	if err := job.Validate(); err != nil {
		d.finish(ctx, job, types.JobFailedPermanent, err)
		return
	}

	var lastErr error
	backoff := d.cfg.InitialBackoff

retry:
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		job.Attempt = attempt
		err := d.attempt(ctx, job, sender)
		if err == nil {
			if attempt > 1 {
				d.logger.Info("notification delivered after retries", "job_id", job.ID, "attempts", attempt)
			}
			d.finish(ctx, job, types.JobDelivered, nil)
			return
		}
		lastErr = err

		if IsPermanent(err) {
			d.logger.Warn("notification failed permanently",
				"job_id", job.ID, "recipient", job.Recipient, "attempt", attempt, "error", err)
			d.finish(ctx, job, types.JobFailedPermanent, err)
			return
		}

		if attempt == d.cfg.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			lastErr = fmt.Errorf("retry abandoned, dispatch cancelled: %w", err)
			break
		}

		d.logger.Debug("notification attempt failed, retrying",
			"job_id", job.ID, "attempt", attempt, "max_attempts", d.cfg.MaxAttempts, "backoff", backoff, "error", err)

		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * d.cfg.BackoffMultiplier)
			if backoff > d.cfg.MaxBackoff {
				backoff = d.cfg.MaxBackoff
			}
		case <-ctx.Done():
			lastErr = fmt.Errorf("retry abandoned, dispatch cancelled during backoff: %w", err)
			break retry
		}
	}

	d.logger.Warn("notification failed after retries",
		"job_id", job.ID, "recipient", job.Recipient, "attempts", job.Attempt, "error", lastErr)
	d.finish(ctx, job, types.JobFailedTransient, lastErr)
}

// attempt performs one bounded send. The send context is detached from batch
// cancellation so an in-flight send is never abandoned, only timed out.
func (d *Dispatcher) attempt(ctx context.Context, job *types.NotificationJob, sender Sender) error {
	if d.breaker != nil {
		if err := d.breaker.Allow(); err != nil {
			return Transient(fmt.Errorf("job %s: %w", job.ID, err))
		}
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return Transient(fmt.Errorf("rate limiter: %w", err))
		}
	}

	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.Timeout)
	defer cancel()

	// Hand the sender its own copy so a slow send that outlives the timeout
	// cannot race with status updates on the job
	snapshot := *job
	done := make(chan error, 1)
	go func() { done <- sender.Send(attemptCtx, &snapshot) }()

	var err error
	select {
	case err = <-done:
	case <-attemptCtx.Done():
		err = Transient(fmt.Errorf("send timed out after %v: %w", d.cfg.Timeout, attemptCtx.Err()))
	}

	if d.breaker != nil {
		switch {
		case err == nil:
			d.breaker.RecordSuccess()
		case !IsPermanent(err):
			d.breaker.RecordFailure()
		}
	}
	return err
}

func (d *Dispatcher) finish(ctx context.Context, job *types.NotificationJob, status types.JobStatus, err error) {
	if terr := job.Transition(status, err, d.now()); terr != nil {
		d.logger.Error("invalid job transition", "job_id", job.ID, "error", terr)
		return
	}
	if d.recorder == nil {
		return
	}
	rec := &types.DeliveryAttempt{
		JobID:      job.ID,
		Recipient:  job.Recipient,
		Source:     job.Payload.Source,
		RuleID:     job.Payload.RuleID,
		Attempts:   job.Attempt,
		Status:     job.Status,
		LastError:  job.LastError,
		FinishedAt: *job.FinishedAt,
	}
	if rerr := d.recorder.RecordDelivery(context.WithoutCancel(ctx), rec); rerr != nil {
		d.logger.Warn("failed to record delivery attempt", "job_id", job.ID, "error", rerr)
	}
}
