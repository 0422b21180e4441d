// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load(ctx) layers defaults, an optional YAML file and environment vars.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// EpochDate is the administrative cutoff as a civil date, e.g. "2025-01-01".
	// Contributions before this date never count toward the current period.
	EpochDate string `koanf:"epoch_date"`

	// EpochTimezone names the civil timezone the cutoff date is read in.
	EpochTimezone string `koanf:"epoch_timezone"`

	// BatchSize bounds how many users refresh concurrently in one batch.
	BatchSize int `koanf:"batch_size"`

	// BatchPauseMS is the explicit pause between refresh batches, spacing
	// calls under the provider's per-token rate limit.
	BatchPauseMS int `koanf:"batch_pause_ms"`

	// MaxEventPages bounds how far back the activity-feed fallback pages.
	MaxEventPages int `koanf:"max_event_pages"`

	// MaxCommitPagesPerRepo bounds per-repository commit paging in the
	// repo-enumeration fallback.
	MaxCommitPagesPerRepo int `koanf:"max_commit_pages_per_repo"`

	// QueryVariants is how many alternate search-query phrasings are tried
	// before the primary stage is abandoned.
	QueryVariants int `koanf:"query_variants"`

	// FallbackConfidenceFloor is the count below which the event-scan
	// fallback is considered low-confidence and the repo-enumeration
	// fallback also runs.
	FallbackConfidenceFloor int `koanf:"fallback_confidence_floor"`

	// RequestTimeoutMS is the per-request timeout for provider calls.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// RetryMax bounds retries of transient provider failures per request.
	RetryMax int `koanf:"retry_max"`

	// RateLimitRPS and RateLimitBurst shape the shared provider budget.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// Storage selects the store backend: "memory" or "postgres".
	Storage string `koanf:"storage"`

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `koanf:"postgres_dsn"`

	// GitHubAPIBase, GitLabAPIBase and BitbucketAPIBase override the
	// provider API endpoints (useful for enterprise installs and tests).
	GitHubAPIBase    string `koanf:"github_api_base"`
	GitLabAPIBase    string `koanf:"gitlab_api_base"`
	BitbucketAPIBase string `koanf:"bitbucket_api_base"`

	// RefreshIntervalMinutes enables the periodic background refresh when
	// positive. Zero disables it; refreshes then run only on demand.
	RefreshIntervalMinutes int `koanf:"refresh_interval_minutes"`

	// ScoreWeights overrides the published weight table. Changing any
	// weight re-ranks every user, so overrides should ship with a full
	// recompute.
	ScoreWeights map[string]float64 `koanf:"score_weights"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		Addr:                    ":9090",
		EpochDate:               "2025-01-01",
		EpochTimezone:           "Asia/Seoul",
		BatchSize:               3,
		BatchPauseMS:            1000,
		MaxEventPages:           10,
		MaxCommitPagesPerRepo:   10,
		QueryVariants:           3,
		FallbackConfidenceFloor: 10,
		RequestTimeoutMS:        10_000,
		RetryMax:                2,
		RateLimitRPS:            5.0,
		RateLimitBurst:          5,
		Storage:                 "memory",
		GitHubAPIBase:           "https://api.github.com",
		GitLabAPIBase:           "https://gitlab.com/api/v4",
		BitbucketAPIBase:        "https://api.bitbucket.org/2.0",
	}
}
