// Package config loads deployment configuration from an optional YAML file and
// VITALITY_* environment variables, and sets up the process logger.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/vitality/internal/goals"
	"github.com/steveyegge/vitality/internal/notify"
	"github.com/steveyegge/vitality/internal/recommend"
	"github.com/steveyegge/vitality/internal/reminder"
	"github.com/steveyegge/vitality/internal/storage"
	"github.com/steveyegge/vitality/internal/trend"
	"github.com/steveyegge/vitality/internal/types"
)

// Deployment environments
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Delivery channels
const (
	ChannelInbox   = "inbox"   // persist to the in-app inbox
	ChannelConsole = "console" // print to stdout
	ChannelEmail   = "email"   // resolve the subject's address, then print
)

// Config is the full deployment configuration
type Config struct {
	// Env selects log format and level: "local", "dev" or "prod"
	Env string `yaml:"env"`

	Database        DatabaseConfig       `yaml:"database"`
	Trend           TrendConfig          `yaml:"trend"`
	Goals           map[string]float64   `yaml:"goals"` // metric -> target
	Recommendations RecommendationConfig `yaml:"recommendations"`
	Scheduler       SchedulerConfig      `yaml:"scheduler"`
	Dispatcher      DispatcherConfig     `yaml:"dispatcher"`
	Delivery        DeliveryConfig       `yaml:"delivery"`
	AI              AIConfig             `yaml:"ai"`
}

// DatabaseConfig locates the SQLite database
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// TrendConfig mirrors trend.Config
type TrendConfig struct {
	HalfLife Duration `yaml:"half_life"`
	Epsilon  float64  `yaml:"epsilon"`
	Window   int      `yaml:"window"`
}

// RecommendationConfig controls goal tolerance and advice suppression
type RecommendationConfig struct {
	Tolerance float64  `yaml:"tolerance"`
	CoolDown  Duration `yaml:"cool_down"`
}

// SchedulerConfig mirrors reminder.Config
type SchedulerConfig struct {
	Interval    Duration `yaml:"interval"`
	SnoozeDelta Duration `yaml:"snooze_delta"`
	Parallelism int      `yaml:"parallelism"`
}

// DispatcherConfig mirrors notify.Config
type DispatcherConfig struct {
	Workers           int           `yaml:"workers"`
	MaxAttempts       int           `yaml:"max_attempts"`
	InitialBackoff    Duration      `yaml:"initial_backoff"`
	MaxBackoff        Duration      `yaml:"max_backoff"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	Timeout           Duration      `yaml:"timeout"`
	RateLimit         float64       `yaml:"rate_limit"`
	RateBurst         int           `yaml:"rate_burst"`
	Breaker           BreakerConfig `yaml:"breaker"`
}

// BreakerConfig mirrors notify.BreakerConfig
type BreakerConfig struct {
	Enabled          bool     `yaml:"enabled"`
	FailureThreshold int      `yaml:"failure_threshold"`
	SuccessThreshold int      `yaml:"success_threshold"`
	OpenTimeout      Duration `yaml:"open_timeout"`
}

// DeliveryConfig selects where dispatched notifications go
type DeliveryConfig struct {
	Channel string `yaml:"channel"`
}

// AIConfig controls optional personalization of recommendation text.
// The API key is read from ANTHROPIC_API_KEY and never from the file.
type AIConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Model         string   `yaml:"model"`
	MaxConcurrent int      `yaml:"max_concurrent"`
	Timeout       Duration `yaml:"timeout"`
}

// DefaultConfig returns the configuration used when no file or environment overrides exist
func DefaultConfig() *Config {
	tc := trend.DefaultConfig()
	sc := reminder.DefaultConfig()
	dc := notify.DefaultConfig()

	goalTargets := make(map[string]float64)
	for m, g := range goals.DefaultGoals() {
		goalTargets[string(m)] = g.Target
	}

	return &Config{
		Env:      EnvLocal,
		Database: DatabaseConfig{Path: storage.DefaultPath},
		Trend: TrendConfig{
			HalfLife: Duration(tc.HalfLife),
			Epsilon:  tc.Epsilon,
			Window:   tc.Window,
		},
		Goals: goalTargets,
		Recommendations: RecommendationConfig{
			Tolerance: goals.DefaultTolerance,
			CoolDown:  Duration(recommend.DefaultCoolDown),
		},
		Scheduler: SchedulerConfig{
			Interval:    Duration(sc.Interval),
			SnoozeDelta: Duration(sc.SnoozeDelta),
			Parallelism: sc.Parallelism,
		},
		Dispatcher: DispatcherConfig{
			Workers:           dc.Workers,
			MaxAttempts:       dc.MaxAttempts,
			InitialBackoff:    Duration(dc.InitialBackoff),
			MaxBackoff:        Duration(dc.MaxBackoff),
			BackoffMultiplier: dc.BackoffMultiplier,
			Timeout:           Duration(dc.Timeout),
			RateLimit:         dc.RateLimit,
			RateBurst:         dc.RateBurst,
			Breaker: BreakerConfig{
				Enabled:          dc.Breaker.Enabled,
				FailureThreshold: dc.Breaker.FailureThreshold,
				SuccessThreshold: dc.Breaker.SuccessThreshold,
				OpenTimeout:      Duration(dc.Breaker.OpenTimeout),
			},
		},
		Delivery: DeliveryConfig{Channel: ChannelInbox},
		AI: AIConfig{
			Enabled:       false,
			Model:         "claude-3-5-haiku-20241022",
			MaxConcurrent: 3,
			Timeout:       Duration(30 * time.Second),
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if path is
// non-empty), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks every section. Domain sections are checked by their own packages.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("env must be one of local, dev, prod (got %q)", c.Env)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path is required")
	}
	if err := c.TrendEngineConfig().Validate(); err != nil {
		return fmt.Errorf("trend: %w", err)
	}
	if _, err := c.GoalSet(); err != nil {
		return fmt.Errorf("goals: %w", err)
	}
	if t := c.Recommendations.Tolerance; t < 0 || t > 1 || math.IsNaN(t) {
		return fmt.Errorf("recommendations.tolerance must be between 0 and 1 (got %v)", t)
	}
	if c.Recommendations.CoolDown < 0 {
		return fmt.Errorf("recommendations.cool_down must be non-negative (got %v)", c.Recommendations.CoolDown)
	}
	if err := c.SchedulerConfig().Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := c.DispatcherConfig().Validate(); err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}
	switch c.Delivery.Channel {
	case ChannelInbox, ChannelConsole, ChannelEmail:
	default:
		return fmt.Errorf("delivery.channel must be one of inbox, console, email (got %q)", c.Delivery.Channel)
	}
	if c.AI.Enabled {
		if strings.TrimSpace(c.AI.Model) == "" {
			return errors.New("ai.model is required when ai is enabled")
		}
		if c.AI.MaxConcurrent < 1 {
			return fmt.Errorf("ai.max_concurrent must be at least 1 (got %d)", c.AI.MaxConcurrent)
		}
		if c.AI.Timeout <= 0 {
			return fmt.Errorf("ai.timeout must be positive (got %v)", c.AI.Timeout)
		}
	}
	return nil
}

// TrendEngineConfig converts the trend section
func (c *Config) TrendEngineConfig() trend.Config {
	return trend.Config{
		HalfLife: c.Trend.HalfLife.Std(),
		Epsilon:  c.Trend.Epsilon,
		Window:   c.Trend.Window,
	}
}

// GoalSet converts the goals section. Metrics missing from the file keep their defaults.
func (c *Config) GoalSet() (map[types.MetricType]types.Goal, error) {
	out := goals.DefaultGoals()
	for name, target := range c.Goals {
		m, err := types.ParseMetricType(name)
		if err != nil {
			return nil, err
		}
		out[m] = types.Goal{Metric: m, Target: target}
	}
	if err := goals.ValidateGoals(out); err != nil {
		return nil, err
	}
	return out, nil
}

// SchedulerConfig converts the scheduler section
func (c *Config) SchedulerConfig() reminder.Config {
	return reminder.Config{
		Interval:    c.Scheduler.Interval.Std(),
		SnoozeDelta: c.Scheduler.SnoozeDelta.Std(),
		Parallelism: c.Scheduler.Parallelism,
	}
}

// DispatcherConfig converts the dispatcher section
func (c *Config) DispatcherConfig() notify.Config {
	d := c.Dispatcher
	return notify.Config{
		Workers:           d.Workers,
		MaxAttempts:       d.MaxAttempts,
		InitialBackoff:    d.InitialBackoff.Std(),
		MaxBackoff:        d.MaxBackoff.Std(),
		BackoffMultiplier: d.BackoffMultiplier,
		Timeout:           d.Timeout.Std(),
		RateLimit:         d.RateLimit,
		RateBurst:         d.RateBurst,
		Breaker: notify.BreakerConfig{
			Enabled:          d.Breaker.Enabled,
			FailureThreshold: d.Breaker.FailureThreshold,
			SuccessThreshold: d.Breaker.SuccessThreshold,
			OpenTimeout:      d.Breaker.OpenTimeout.Std(),
		},
	}
}
