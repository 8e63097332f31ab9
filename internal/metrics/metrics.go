// Package metrics provides centralized Prometheus metrics for the gateway.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upstream metrics track individual calls to data providers
var (
	// UpstreamAttemptsTotal counts upstream call attempts by upstream and outcome
	UpstreamAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_attempts_total",
			Help: "Total number of upstream call attempts",
		},
		[]string{"upstream", "outcome"},
	)

	// UpstreamAttemptDuration measures upstream attempt duration in seconds
	UpstreamAttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_attempt_duration_seconds",
			Help:    "Upstream call attempt duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"upstream", "outcome"},
	)
)

// Source metrics track resolution of the resilient sources
var (
	// SourceResolutionsTotal counts source resolutions by source and status
	SourceResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_resolutions_total",
			Help: "Total number of source resolutions by resulting status",
		},
		[]string{"source", "status"},
	)

	// SourceCacheServesTotal counts how often a stale cached payload was served
	SourceCacheServesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_cache_serves_total",
			Help: "Total number of resolutions answered from the last-known-good cache",
		},
		[]string{"source"},
	)

	// SourceCooldownsTotal counts cooldown activations after rate-limit responses
	SourceCooldownsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_cooldowns_total",
			Help: "Total number of cooldown windows armed after rate-limit responses",
		},
		[]string{"source"},
	)

	// SourceUp reports the latest observed health per source (1 = UP, 0 = degraded)
	SourceUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_up",
			Help: "Whether the last resolution of the source succeeded against its primary",
		},
		[]string{"source"},
	)
)

// Gateway metrics track the aggregate endpoint
var (
	// AggregateRequestsTotal counts aggregate evaluations
	AggregateRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregate_requests_total",
			Help: "Total number of aggregate evaluations",
		},
	)

	// AggregateDuration measures time to resolve all sources
	AggregateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregate_duration_seconds",
			Help:    "Time to resolve all sources for one aggregate call",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// ObserveUpstreamAttempt records one upstream call attempt.
func ObserveUpstreamAttempt(upstream, outcome string, d time.Duration) {
	UpstreamAttemptsTotal.WithLabelValues(upstream, outcome).Inc()
	UpstreamAttemptDuration.WithLabelValues(upstream, outcome).Observe(d.Seconds())
}

// ObserveSourceResolution records the outcome of one source resolution.
func ObserveSourceResolution(source, status string, fromCache bool) {
	SourceResolutionsTotal.WithLabelValues(source, status).Inc()
	if fromCache {
		SourceCacheServesTotal.WithLabelValues(source).Inc()
	}
	if status == "UP" {
		SourceUp.WithLabelValues(source).Set(1)
	} else {
		SourceUp.WithLabelValues(source).Set(0)
	}
}
