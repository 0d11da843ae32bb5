package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/vitality/internal/types"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 4 * time.Millisecond
	cfg.Timeout = time.Second
	return cfg
}

func newTestDispatcher(t *testing.T, cfg Config, opts ...Option) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(cfg, opts...)
	require.NoError(t, err)
	return d
}

func makeJobs(n int) []*types.NotificationJob {
	jobs := make([]*types.NotificationJob, n)
	for i := range jobs {
		jobs[i] = types.NewJob(fmt.Sprintf("job-%d", i+1), fmt.Sprintf("user-%d", i+1),
			types.Payload{Subject: "Reminder", Body: "Log your results"}, time.Now())
	}
	return jobs
}

// countingSender tracks attempts per job id and delegates the outcome to fn
type countingSender struct {
	mu       sync.Mutex
	attempts map[string]int
	fn       func(job *types.NotificationJob, attempt int) error
}

func newCountingSender(fn func(job *types.NotificationJob, attempt int) error) *countingSender {
	return &countingSender{attempts: make(map[string]int), fn: fn}
}

func (s *countingSender) Send(ctx context.Context, job *types.NotificationJob) error {
	s.mu.Lock()
	s.attempts[job.ID]++
	n := s.attempts[job.ID]
	s.mu.Unlock()
	return s.fn(job, n)
}

func (s *countingSender) count(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[id]
}

func TestDispatchIsolatesPermanentFailure(t *testing.T) {
	d := newTestDispatcher(t, testConfig())
	sender := newCountingSender(func(job *types.NotificationJob, attempt int) error {
		if job.ID == "job-3" {
			return Permanent(errors.New("mailbox does not exist"))
		}
		return nil
	})

	jobs := makeJobs(5)
	res := d.Dispatch(context.Background(), jobs, sender)

	assert.Equal(t, 4, res.Delivered)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Jobs, 1)
	assert.Equal(t, "job-3", res.Jobs[0].ID)
	assert.Equal(t, types.JobFailedPermanent, res.Jobs[0].Status)
	assert.Contains(t, res.Jobs[0].LastError, "mailbox does not exist")
	assert.Equal(t, 1, sender.count("job-3"), "permanent failures are never retried")

	for _, job := range jobs {
		if job.ID == "job-3" {
			continue
		}
		assert.Equal(t, types.JobDelivered, job.Status, job.ID)
		assert.Equal(t, 1, job.Attempt)
		assert.Equal(t, 1, sender.count(job.ID))
		assert.NotNil(t, job.FinishedAt)
	}
}

func TestDispatchRetryBound(t *testing.T) {
	cfg := testConfig()
	d := newTestDispatcher(t, cfg)
	sender := newCountingSender(func(job *types.NotificationJob, attempt int) error {
		return Transient(errors.New("503 service unavailable"))
	})

	jobs := makeJobs(1)
	res := d.Dispatch(context.Background(), jobs, sender)

	assert.Equal(t, 0, res.Delivered)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, cfg.MaxAttempts, sender.count("job-1"))
	assert.Equal(t, cfg.MaxAttempts, jobs[0].Attempt)
	assert.Equal(t, types.JobFailedTransient, jobs[0].Status)
}

func TestDispatchRecoversAfterTransientFailure(t *testing.T) {
	d := newTestDispatcher(t, testConfig())
	sender := newCountingSender(func(job *types.NotificationJob, attempt int) error {
		if attempt < 3 {
			return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
		}
		return nil
	})

	jobs := makeJobs(2)
	res := d.Dispatch(context.Background(), jobs, sender)
	assert.Equal(t, 2, res.Delivered)
	assert.Empty(t, res.Jobs)
	assert.Equal(t, 3, jobs[0].Attempt)
}

func TestDispatchTimeoutIsTransient(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.MaxAttempts = 2
	d := newTestDispatcher(t, cfg)

	release := make(chan struct{})
	defer close(release)
	sender := newCountingSender(func(job *types.NotificationJob, attempt int) error {
		// Ignores its context entirely
		<-release
		return nil
	})

	start := time.Now()
	jobs := makeJobs(1)
	res := d.Dispatch(context.Background(), jobs, sender)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, types.JobFailedTransient, jobs[0].Status)
	assert.Equal(t, 2, sender.count("job-1"))
	assert.Contains(t, jobs[0].LastError, "timed out")
}

func TestDispatchBoundedWorkers(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 3
	d := newTestDispatcher(t, cfg)

	var inFlight, peak atomic.Int64
	sender := SenderFunc(func(ctx context.Context, job *types.NotificationJob) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})

	res := d.Dispatch(context.Background(), makeJobs(20), sender)
	assert.Equal(t, 20, res.Delivered)
	assert.LessOrEqual(t, peak.Load(), int64(3))
}

func TestDispatchCancellation(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 1
	d := newTestDispatcher(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var once sync.Once
	sender := SenderFunc(func(sendCtx context.Context, job *types.NotificationJob) error {
		once.Do(func() {
			close(started)
			cancel()
		})
		// The in-flight send is not cut short by batch cancellation
		select {
		case <-sendCtx.Done():
			return sendCtx.Err()
		case <-time.After(10 * time.Millisecond):
			return nil
		}
	})

	jobs := makeJobs(4)
	res := d.Dispatch(ctx, jobs, sender)
	<-started

	assert.Equal(t, types.JobDelivered, jobs[0].Status, "in-flight job finishes")
	assert.Equal(t, 4, res.Delivered+res.Failed, "every job is accounted for")
	for _, job := range res.Jobs {
		assert.Equal(t, types.JobFailedTransient, job.Status)
		assert.NotEmpty(t, job.LastError)
	}
	for _, job := range jobs {
		assert.True(t, job.Status.IsTerminal(), job.ID)
	}
}

func TestDispatchRejectsInvalidJobs(t *testing.T) {
	d := newTestDispatcher(t, testConfig())
	jobs := makeJobs(2)
	jobs[1].Recipient = ""
	sender := newCountingSender(func(job *types.NotificationJob, attempt int) error { return nil })

	res := d.Dispatch(context.Background(), jobs, sender)
	assert.Equal(t, 1, res.Delivered)
	require.Len(t, res.Jobs, 1)
	assert.Equal(t, types.JobFailedPermanent, res.Jobs[0].Status)
	assert.Zero(t, sender.count(jobs[1].ID))
}

func TestDispatchSkipsTerminalJobs(t *testing.T) {
	d := newTestDispatcher(t, testConfig())
	jobs := makeJobs(1)
	require.NoError(t, jobs[0].Transition(types.JobDelivered, nil, time.Now()))
	sender := newCountingSender(func(job *types.NotificationJob, attempt int) error { return errors.New("boom") })

	res := d.Dispatch(context.Background(), jobs, sender)
	assert.Equal(t, 1, res.Delivered)
	assert.Zero(t, sender.count("job-1"))
	assert.Equal(t, types.JobDelivered, jobs[0].Status)
}

type memRecorder struct {
	mu      sync.Mutex
	records []*types.DeliveryAttempt
}

func (r *memRecorder) RecordDelivery(ctx context.Context, a *types.DeliveryAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, a)
	return nil
}

func TestDispatchRecordsTerminalJobs(t *testing.T) {
	rec := &memRecorder{}
	d := newTestDispatcher(t, testConfig(), WithRecorder(rec))
	sender := newCountingSender(func(job *types.NotificationJob, attempt int) error {
		if job.ID == "job-2" {
			return Permanent(errors.New("rejected"))
		}
		return nil
	})

	d.Dispatch(context.Background(), makeJobs(3), sender)
	require.Len(t, rec.records, 3)
	statuses := map[string]types.JobStatus{}
	for _, r := range rec.records {
		statuses[r.JobID] = r.Status
		assert.Equal(t, 1, r.Attempts)
	}
	assert.Equal(t, types.JobFailedPermanent, statuses["job-2"])
	assert.Equal(t, types.JobDelivered, statuses["job-1"])
}

func TestDispatchCircuitBreakerFailsFast(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 1
	cfg.MaxAttempts = 1
	cfg.Breaker = BreakerConfig{Enabled: true, FailureThreshold: 2, SuccessThreshold: 1, OpenTimeout: time.Hour}
	d := newTestDispatcher(t, cfg)

	sender := newCountingSender(func(job *types.NotificationJob, attempt int) error {
		return errors.New("connection reset by peer")
	})
	res := d.Dispatch(context.Background(), makeJobs(5), sender)

	assert.Equal(t, 5, res.Failed)
	assert.Equal(t, CircuitOpen, d.Breaker().State())
	total := 0
	for i := 1; i <= 5; i++ {
		total += sender.count(fmt.Sprintf("job-%d", i))
	}
	assert.Equal(t, 2, total, "sends stop once the breaker opens")
}

func TestDispatchRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 100
	cfg.RateBurst = 1
	d := newTestDispatcher(t, cfg)

	start := time.Now()
	res := d.Dispatch(context.Background(), makeJobs(5), SenderFunc(func(ctx context.Context, job *types.NotificationJob) error { return nil }))
	assert.Equal(t, 5, res.Delivered)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestDispatchEmptyBatch(t *testing.T) {
	d := newTestDispatcher(t, testConfig())
	res := d.Dispatch(context.Background(), nil, SenderFunc(func(ctx context.Context, job *types.NotificationJob) error { return nil }))
	assert.Equal(t, types.BatchResult{}, res)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"no attempts", func(c *Config) { c.MaxAttempts = 0 }},
		{"max below initial", func(c *Config) { c.MaxBackoff = time.Millisecond }},
		{"shrinking backoff", func(c *Config) { c.BackoffMultiplier = 0.5 }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"rate without burst", func(c *Config) { c.RateLimit = 5; c.RateBurst = 0 }},
		{"bad breaker", func(c *Config) { c.Breaker.Enabled = true; c.Breaker.FailureThreshold = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
