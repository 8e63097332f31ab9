package gateway

import (
	"log/slog"

	"github.com/pavann19/resilient-microservices/internal/httpclient"
	"github.com/pavann19/resilient-microservices/source"
	"github.com/pavann19/resilient-microservices/upstream"
)

// BuildSources constructs the fixed source set the gateway aggregates:
// crypto prices, repository stats (with the static fallback tier) and
// recent-repository lineage. Each source gets its own upstream client so
// breaker and limiter state stays per-upstream.
func BuildSources(cfg Config, logger *slog.Logger) []source.Resolver {
	transportCfg := httpclient.DefaultConfig()
	transportCfg.RequestTimeout = cfg.RequestTimeout
	transport := httpclient.New(transportCfg)

	newClient := func(name string) *upstream.Client {
		return upstream.New(name,
			upstream.WithLogger(logger),
			upstream.WithHTTPClient(transport),
			upstream.WithRetryPolicy(cfg.RetryPolicy()),
			upstream.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
			upstream.WithBreakerSettings(cfg.BreakerSettings()),
		)
	}

	crypto := source.NewCrypto(newClient("crypto"), cfg.CryptoBaseURL,
		source.WithCooldown[source.PricePayload](cfg.CryptoCooldown),
		source.WithLogger[source.PricePayload](logger),
	)

	stats := source.NewStats(newClient("stats"), cfg.SearchBaseURL, cfg.StatsQuery, cfg.GitHubToken,
		source.WithCooldown[source.StatsPayload](cfg.SearchCooldown),
		source.WithFallback(source.StatsFallback(newClient("fallback"), cfg.FallbackBaseURL)),
		source.WithLogger[source.StatsPayload](logger),
	)

	lineage := source.NewLineage(newClient("lineage"), cfg.SearchBaseURL, cfg.LineageQuery, cfg.GitHubToken,
		source.WithCooldown[source.LineagePayload](cfg.SearchCooldown),
		source.WithLogger[source.LineagePayload](logger),
	)

	return []source.Resolver{crypto, stats, lineage}
}
