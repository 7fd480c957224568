// Package config defines service configuration structures and loading hooks.
//
// Scalar settings are flat keys so they can be set from the environment
// (READINESS_<KEY>). Alert rules, readiness weights and registry entries
// are nested and come from the YAML file only.
package config

import (
	"runtime"
	"time"

	"github.com/okian/readiness/internal/domain/alerting"
	"github.com/okian/readiness/internal/domain/readiness"
	"github.com/okian/readiness/internal/domain/registry"
	"github.com/okian/readiness/internal/domain/risk"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite metric store; ":memory:" keeps data in process.
	DBPath string `koanf:"db_path"`

	// QueueSize bounds the in-memory ingestion queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize sets the number of remembered batch ids.
	DedupeSize int `koanf:"dedupe_size"`

	// CacheBackend is memory, redis or none.
	CacheBackend    string        `koanf:"cache_backend"`
	CacheMaxEntries int           `koanf:"cache_max_entries"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	RedisAddr       string        `koanf:"redis_addr"`
	RedisPassword   string        `koanf:"redis_password"`
	RedisDB         int           `koanf:"redis_db"`

	// Workload defaults.
	AcuteWindow        int     `koanf:"acute_window"`
	ChronicWindow      int     `koanf:"chronic_window"`
	MinChronicFraction float64 `koanf:"min_chronic_fraction"`
	WorkloadMethod     string  `koanf:"workload_method"`

	// MaxRangeDays bounds query date ranges.
	MaxRangeDays int `koanf:"max_range_days"`

	// Readiness scorer settings.
	ReadinessWeights   readiness.Weights `koanf:"readiness_weights"`
	SleepOptimalHours  float64           `koanf:"sleep_optimal_hours"`
	HRVBaselineDays    int               `koanf:"hrv_baseline_days"`
	MinBaselineSamples int               `koanf:"min_baseline_samples"`

	// AlertDataGapDays is the data_gap threshold of the built-in rules.
	AlertDataGapDays int `koanf:"alert_data_gap_days"`
	// AlertRules replaces the built-in rules when non-empty.
	AlertRules []alerting.Rule `koanf:"alert_rules"`
	// AlertTrailingDays is the readiness window a drop is measured against.
	AlertTrailingDays   int `koanf:"alert_trailing_days"`
	AlertMinPriorScores int `koanf:"alert_min_prior_scores"`
	// AlertLookbackDays is how far before a range data gaps are traced.
	AlertLookbackDays int `koanf:"alert_lookback_days"`

	// Risk confidence: shares of the chronic window with sessions needed
	// for medium and high confidence.
	RiskMinCoverage  float64 `koanf:"risk_min_coverage"`
	RiskHighCoverage float64 `koanf:"risk_high_coverage"`

	// RegistryEntries extend or override the built-in metric registry.
	RegistryEntries []registry.Entry `koanf:"registry"`

	// Nightly refresh.
	RefreshEnabled      bool          `koanf:"refresh_enabled"`
	RefreshSchedule     string        `koanf:"refresh_schedule"`
	RefreshLookbackDays int           `koanf:"refresh_lookback_days"`
	RefreshConcurrency  int           `koanf:"refresh_concurrency"`
	RefreshTimeout      time.Duration `koanf:"refresh_timeout"`

	// RateLimitRPS limits query requests per second; zero disables it.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`
}

// New creates a Config holding the defaults.
func New() *Config {
	rc := readiness.DefaultConfig()
	obs := alerting.DefaultObserveOptions()
	rm := risk.Baseline()
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		DBPath:              "data/readiness.db",
		QueueSize:           1024,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          50_000,
		CacheBackend:        "memory",
		CacheMaxEntries:     10_000,
		CacheTTL:            6 * time.Hour,
		RedisAddr:           "localhost:6379",
		AcuteWindow:         7,
		ChronicWindow:       28,
		MinChronicFraction:  0.5,
		WorkloadMethod:      "rolling",
		MaxRangeDays:        366,
		ReadinessWeights:    rc.Weights,
		SleepOptimalHours:   rc.SleepOptimalHours,
		HRVBaselineDays:     rc.BaselineDays,
		MinBaselineSamples:  rc.MinBaselineSamples,
		AlertDataGapDays:    alerting.DefaultDataGapDays,
		AlertTrailingDays:   obs.TrailingDays,
		AlertMinPriorScores: obs.MinPriorScores,
		AlertLookbackDays:   obs.Lookback,
		RiskMinCoverage:     rm.MinCoverage,
		RiskHighCoverage:    rm.HighCoverage,
		RefreshEnabled:      true,
		RefreshSchedule:     "0 0 3 * * *",
		RefreshLookbackDays: 28,
		RefreshConcurrency:  4,
		RefreshTimeout:      30 * time.Minute,
		RateLimitRPS:        0,
		RateLimitBurst:      50,
	}
}
