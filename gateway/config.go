package gateway

import (
	"os"
	"strconv"
	"time"

	"github.com/pavann19/resilient-microservices/source"
	"github.com/pavann19/resilient-microservices/upstream"
)

// Config holds gateway configuration.
type Config struct {
	// Listen port
	Port int

	// Upstream base URLs
	CryptoBaseURL   string
	SearchBaseURL   string
	FallbackBaseURL string

	// Optional token for the search upstreams, attached as a request header
	GitHubToken string

	// Search queries
	StatsQuery   string
	LineageQuery string

	// Per-attempt request timeout
	RequestTimeout time.Duration

	// Retry settings
	MaxAttempts   int
	RetryBaseWait time.Duration
	RetryMaxWait  time.Duration
	RetryFactor   float64

	// Cooldown durations; the price upstream throttles harder, so it cools
	// down longer than the search upstreams
	CryptoCooldown time.Duration
	SearchCooldown time.Duration

	// Outbound rate limiting per upstream client
	RateLimitRPS   float64
	RateLimitBurst int

	// Circuit breaker
	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
	BreakerFailures    uint32

	// Optional bound on one whole aggregate evaluation (0 = none)
	AggregateTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:               8080,
		CryptoBaseURL:      "https://api.coingecko.com",
		SearchBaseURL:      "https://api.github.com",
		FallbackBaseURL:    "http://fallback:8000",
		StatsQuery:         source.DefaultStatsQuery,
		LineageQuery:       source.DefaultLineageQuery,
		RequestTimeout:     5 * time.Second,
		MaxAttempts:        3,
		RetryBaseWait:      500 * time.Millisecond,
		RetryMaxWait:       2 * time.Second,
		RetryFactor:        2.0,
		CryptoCooldown:     60 * time.Second,
		SearchCooldown:     30 * time.Second,
		RateLimitRPS:       10,
		RateLimitBurst:     10,
		BreakerMaxRequests: 3,
		BreakerInterval:    60 * time.Second,
		BreakerTimeout:     30 * time.Second,
		BreakerFailures:    8,
		AggregateTimeout:   0,
	}
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() Config {
	cfg := DefaultConfig()

	if i, err := strconv.Atoi(getEnv("PORT", "8080")); err == nil {
		cfg.Port = i
	}

	if v := getEnv("CRYPTO_API_URL", ""); v != "" {
		cfg.CryptoBaseURL = v
	}
	if v := getEnv("SEARCH_API_URL", ""); v != "" {
		cfg.SearchBaseURL = v
	}
	if v := getEnv("FALLBACK_URL", ""); v != "" {
		cfg.FallbackBaseURL = v
	}
	cfg.GitHubToken = getEnv("GITHUB_TOKEN", "")

	if v := getEnv("STATS_QUERY", ""); v != "" {
		cfg.StatsQuery = v
	}
	if v := getEnv("LINEAGE_QUERY", ""); v != "" {
		cfg.LineageQuery = v
	}

	if d, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "5s")); err == nil {
		cfg.RequestTimeout = d
	}
	if i, err := strconv.Atoi(getEnv("MAX_ATTEMPTS", "3")); err == nil {
		cfg.MaxAttempts = i
	}
	if d, err := time.ParseDuration(getEnv("RETRY_BASE_WAIT", "500ms")); err == nil {
		cfg.RetryBaseWait = d
	}
	if d, err := time.ParseDuration(getEnv("RETRY_MAX_WAIT", "2s")); err == nil {
		cfg.RetryMaxWait = d
	}
	if f, err := strconv.ParseFloat(getEnv("RETRY_FACTOR", "2.0"), 64); err == nil {
		cfg.RetryFactor = f
	}

	if d, err := time.ParseDuration(getEnv("CRYPTO_COOLDOWN", "60s")); err == nil {
		cfg.CryptoCooldown = d
	}
	if d, err := time.ParseDuration(getEnv("SEARCH_COOLDOWN", "30s")); err == nil {
		cfg.SearchCooldown = d
	}

	if f, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "10"), 64); err == nil {
		cfg.RateLimitRPS = f
	}
	if i, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "10")); err == nil {
		cfg.RateLimitBurst = i
	}

	if i, err := strconv.ParseUint(getEnv("BREAKER_MAX_REQUESTS", "3"), 10, 32); err == nil {
		cfg.BreakerMaxRequests = uint32(i)
	}
	if d, err := time.ParseDuration(getEnv("BREAKER_INTERVAL", "60s")); err == nil {
		cfg.BreakerInterval = d
	}
	if d, err := time.ParseDuration(getEnv("BREAKER_TIMEOUT", "30s")); err == nil {
		cfg.BreakerTimeout = d
	}
	if i, err := strconv.ParseUint(getEnv("BREAKER_FAILURES", "8"), 10, 32); err == nil {
		cfg.BreakerFailures = uint32(i)
	}

	if d, err := time.ParseDuration(getEnv("AGGREGATE_TIMEOUT", "0s")); err == nil {
		cfg.AggregateTimeout = d
	}

	return cfg
}

// RetryPolicy derives the upstream retry policy from the configuration.
func (c Config) RetryPolicy() upstream.RetryPolicy {
	return upstream.RetryPolicy{
		MaxAttempts: c.MaxAttempts,
		BaseWait:    c.RetryBaseWait,
		MaxWait:     c.RetryMaxWait,
		Factor:      c.RetryFactor,
	}
}

// BreakerSettings derives the upstream breaker settings from the configuration.
func (c Config) BreakerSettings() upstream.BreakerSettings {
	return upstream.BreakerSettings{
		MaxRequests:         c.BreakerMaxRequests,
		Interval:            c.BreakerInterval,
		Timeout:             c.BreakerTimeout,
		ConsecutiveFailures: c.BreakerFailures,
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
