package rulecache

import (
	"fmt"
	"log/slog"
	"time"

	"slack-bridge/internal/pkg/config"
)

// Config controls how often the rule snapshot is refreshed.
//
// Environment variables:
//   - RULE_REFRESH_SCHEDULE: cron expression (default: "*/5 * * * *")
//   - RULE_REFRESH_TIMEZONE: IANA timezone name (default: "UTC")
//   - RULE_REFRESH_TIMEOUT: duration, 1s-5m (default: 30s)
type Config struct {
	// Schedule is a five-field cron expression.
	Schedule string `yaml:"schedule"`

	// Timezone is the IANA zone the schedule is evaluated in.
	Timezone string `yaml:"timezone"`

	// Timeout bounds one refresh, including a file reload.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig refreshes every five minutes.
func DefaultConfig() Config {
	return Config{
		Schedule: "*/5 * * * *",
		Timezone: "UTC",
		Timeout:  30 * time.Second,
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidateDuration(c.Timeout, time.Second, 5*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("timeout: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv overlays environment variables on base. Invalid values
// fall back to base with a warning; the returned config is always usable.
func LoadConfigFromEnv(base Config, logger *slog.Logger, metrics *Metrics) Config {
	cfg := base
	fallbackApplied := false

	warn := func(field string, applied bool, warnings []string) {
		if !applied {
			return
		}
		fallbackApplied = true
		metrics.recordFallback(field)
		for _, w := range warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", w))
		}
	}

	schedule := config.LoadEnvWithFallback("RULE_REFRESH_SCHEDULE", cfg.Schedule, config.ValidateCronSchedule)
	cfg.Schedule = schedule.Value
	warn("schedule", schedule.FallbackApplied, schedule.Warnings)

	tz := config.LoadEnvWithFallback("RULE_REFRESH_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = tz.Value
	warn("timezone", tz.FallbackApplied, tz.Warnings)

	timeout := config.LoadEnvDuration("RULE_REFRESH_TIMEOUT", cfg.Timeout, func(d time.Duration) error {
		return config.ValidateDuration(d, time.Second, 5*time.Minute)
	})
	cfg.Timeout = timeout.Value
	warn("timeout", timeout.FallbackApplied, timeout.Warnings)

	metrics.configLoaded(fallbackApplied)
	return cfg
}
