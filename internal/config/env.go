package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ApplyEnv overrides fields from environment variables. Unset variables keep
// the current value.
//
// Environment variables:
//   - VITALITY_ENV: local, dev or prod (default: local)
//   - VITALITY_DB: database path (default: .vitality/vitality.db)
//   - VITALITY_TREND_HALF_LIFE, VITALITY_TREND_EPSILON, VITALITY_TREND_WINDOW
//   - VITALITY_GOAL_COUNT, VITALITY_GOAL_MOTILITY, VITALITY_GOAL_MORPHOLOGY: targets
//   - VITALITY_GOAL_TOLERANCE: fraction of target treated as close enough (default: 0.05)
//   - VITALITY_RECOMMEND_COOL_DOWN: identical-advice suppression window (default: 7d)
//   - VITALITY_SCHEDULER_INTERVAL, VITALITY_SCHEDULER_SNOOZE, VITALITY_SCHEDULER_PARALLELISM
//   - VITALITY_DISPATCH_WORKERS, VITALITY_DISPATCH_MAX_ATTEMPTS, VITALITY_DISPATCH_TIMEOUT
//   - VITALITY_DISPATCH_RATE_LIMIT: sends per second, 0 for unlimited (default: 0)
//   - VITALITY_DISPATCH_BREAKER: enable the delivery circuit breaker (default: false)
//   - VITALITY_DELIVERY_CHANNEL: inbox, console or email (default: inbox)
//   - VITALITY_AI_ENABLED, VITALITY_AI_MODEL: advice personalization
//
// Returns an error if any environment variable has an invalid value.
func (c *Config) ApplyEnv() error {
	if err := parseEnvString("VITALITY_ENV", &c.Env); err != nil {
		return err
	}
	if err := parseEnvString("VITALITY_DB", &c.Database.Path); err != nil {
		return err
	}

	if err := parseEnvDuration("VITALITY_TREND_HALF_LIFE", &c.Trend.HalfLife); err != nil {
		return err
	}
	if err := parseEnvFloat("VITALITY_TREND_EPSILON", &c.Trend.Epsilon); err != nil {
		return err
	}
	if err := parseEnvInt("VITALITY_TREND_WINDOW", &c.Trend.Window); err != nil {
		return err
	}

	for _, name := range []string{"count", "motility", "morphology"} {
		key := "VITALITY_GOAL_" + strings.ToUpper(name)
		if os.Getenv(key) == "" {
			continue
		}
		var target float64
		if err := parseEnvFloat(key, &target); err != nil {
			return err
		}
		if c.Goals == nil {
			c.Goals = make(map[string]float64)
		}
		c.Goals[name] = target
	}
	if err := parseEnvFloat("VITALITY_GOAL_TOLERANCE", &c.Recommendations.Tolerance); err != nil {
		return err
	}
	if err := parseEnvDuration("VITALITY_RECOMMEND_COOL_DOWN", &c.Recommendations.CoolDown); err != nil {
		return err
	}

	if err := parseEnvDuration("VITALITY_SCHEDULER_INTERVAL", &c.Scheduler.Interval); err != nil {
		return err
	}
	if err := parseEnvDuration("VITALITY_SCHEDULER_SNOOZE", &c.Scheduler.SnoozeDelta); err != nil {
		return err
	}
	if err := parseEnvInt("VITALITY_SCHEDULER_PARALLELISM", &c.Scheduler.Parallelism); err != nil {
		return err
	}

	if err := parseEnvInt("VITALITY_DISPATCH_WORKERS", &c.Dispatcher.Workers); err != nil {
		return err
	}
	if err := parseEnvInt("VITALITY_DISPATCH_MAX_ATTEMPTS", &c.Dispatcher.MaxAttempts); err != nil {
		return err
	}
	if err := parseEnvDuration("VITALITY_DISPATCH_TIMEOUT", &c.Dispatcher.Timeout); err != nil {
		return err
	}
	if err := parseEnvFloat("VITALITY_DISPATCH_RATE_LIMIT", &c.Dispatcher.RateLimit); err != nil {
		return err
	}
	if err := parseEnvBool("VITALITY_DISPATCH_BREAKER", &c.Dispatcher.Breaker.Enabled); err != nil {
		return err
	}

	if err := parseEnvString("VITALITY_DELIVERY_CHANNEL", &c.Delivery.Channel); err != nil {
		return err
	}
	if err := parseEnvBool("VITALITY_AI_ENABLED", &c.AI.Enabled); err != nil {
		return err
	}
	return parseEnvString("VITALITY_AI_MODEL", &c.AI.Model)
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvDuration parses a Duration (Go syntax, or whole days/weeks) from an environment variable
func parseEnvDuration(key string, dest *Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := parseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = Duration(parsed)
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	*dest = value
	return nil
}
