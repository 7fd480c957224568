package config

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/okian/readiness/internal/adapters/cache"
	"github.com/okian/readiness/internal/domain/alerting"
	"github.com/okian/readiness/internal/domain/readiness"
	"github.com/okian/readiness/internal/domain/registry"
	"github.com/okian/readiness/internal/domain/risk"
	"github.com/okian/readiness/internal/domain/workload"
	"github.com/okian/readiness/pkg/logger"
)

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.MaxRangeDays <= 0:
		return fmt.Errorf("%w: max_range_days must be positive", ErrInvalidConfig)
	case c.QueueSize <= 0 || c.WorkerCount <= 0 || c.DedupeSize <= 0:
		return fmt.Errorf("%w: queue_size, worker_count and dedupe_size must be positive", ErrInvalidConfig)
	case c.RateLimitRPS < 0 || (c.RateLimitRPS > 0 && c.RateLimitBurst <= 0):
		return fmt.Errorf("%w: rate limit needs rps >= 0 and a positive burst", ErrInvalidConfig)
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	switch c.CacheBackend {
	case cache.BackendMemory, cache.BackendRedis, cache.BackendNone:
	default:
		return fmt.Errorf("%w: cache_backend %q", ErrInvalidConfig, c.CacheBackend)
	}

	if err := c.WorkloadOptions().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.ChronicWindow > c.MaxRangeDays {
		return fmt.Errorf("%w: chronic_window %d exceeds max_range_days %d", ErrInvalidConfig, c.ChronicWindow, c.MaxRangeDays)
	}
	if _, err := c.ObserveOptions(); err != nil {
		return err
	}
	if _, err := c.Predictor(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	reg, err := c.Registry()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Scorer(reg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.AlertEngine(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.RefreshEnabled {
		if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(c.RefreshSchedule); err != nil {
			return fmt.Errorf("%w: refresh_schedule: %v", ErrInvalidConfig, err)
		}
		if c.RefreshLookbackDays <= 0 || c.RefreshConcurrency <= 0 {
			return fmt.Errorf("%w: refresh lookback and concurrency must be positive", ErrInvalidConfig)
		}
	}
	return nil
}

// WorkloadOptions returns the configured default workload windows.
func (c *Config) WorkloadOptions() workload.Options {
	return workload.Options{
		AcuteWindow:        c.AcuteWindow,
		ChronicWindow:      c.ChronicWindow,
		MinChronicFraction: c.MinChronicFraction,
		Method:             workload.Method(c.WorkloadMethod),
	}
}

// Registry returns the built-in registry extended by configured entries.
func (c *Config) Registry() (*registry.Registry, error) {
	return registry.New(append(registry.Defaults(), c.RegistryEntries...)...)
}

// Scorer builds the readiness scorer.
func (c *Config) Scorer(reg *registry.Registry) (*readiness.Scorer, error) {
	rc := readiness.DefaultConfig()
	rc.Weights = c.ReadinessWeights
	rc.SleepOptimalHours = c.SleepOptimalHours
	rc.BaselineDays = c.HRVBaselineDays
	rc.MinBaselineSamples = c.MinBaselineSamples
	if rc.BaselineDays <= 0 || rc.MinBaselineSamples <= 0 {
		return nil, fmt.Errorf("%w: baseline days and samples must be positive", readiness.ErrInvalidConfig)
	}
	return readiness.NewScorer(rc, reg)
}

// AlertEngine builds the alert engine from the configured or built-in rules.
func (c *Config) AlertEngine() (*alerting.Engine, error) {
	rules := c.AlertRules
	if len(rules) == 0 {
		rules = alerting.DefaultRules(c.AlertDataGapDays)
	}
	return alerting.NewEngine(rules)
}

// ObserveOptions returns the alert observation windows.
func (c *Config) ObserveOptions() (alerting.ObserveOptions, error) {
	o := alerting.ObserveOptions{
		TrailingDays:   c.AlertTrailingDays,
		MinPriorScores: c.AlertMinPriorScores,
		Lookback:       c.AlertLookbackDays,
	}
	if o.TrailingDays <= 0 || o.MinPriorScores <= 0 || o.MinPriorScores > o.TrailingDays {
		return o, fmt.Errorf("%w: alert_min_prior_scores must be in [1, alert_trailing_days]", ErrInvalidConfig)
	}
	if o.Lookback < 0 || o.Lookback > c.MaxRangeDays {
		return o, fmt.Errorf("%w: alert_lookback_days must be in [0, max_range_days]", ErrInvalidConfig)
	}
	return o, nil
}

// Predictor builds the risk predictor from the baseline coefficients and
// the configured confidence thresholds.
func (c *Config) Predictor() (*risk.Predictor, error) {
	m := risk.Baseline()
	m.MinCoverage = c.RiskMinCoverage
	m.HighCoverage = c.RiskHighCoverage
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return risk.NewPredictor(m), nil
}
