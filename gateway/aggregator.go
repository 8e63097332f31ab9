package gateway

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pavann19/resilient-microservices/internal/metrics"
	"github.com/pavann19/resilient-microservices/source"
)

// GatewayStatus is the overall status reported on every aggregate response.
// The gateway never fails outright, so this is a constant.
const GatewayStatus = "UP"

// AggregateResult maps source names to their resolution results.
type AggregateResult struct {
	Gateway string
	Results map[string]source.Result
}

// Aggregator resolves a fixed set of sources independently. One source's
// failure, including a programming fault surfaced as a panic, never
// prevents the others from being resolved and reported.
type Aggregator struct {
	sources []source.Resolver
	timeout time.Duration
	logger  *slog.Logger
}

// AggregatorOption configures the Aggregator.
type AggregatorOption func(*Aggregator)

// WithAggregateTimeout bounds one whole aggregate evaluation. On expiry the
// in-flight sources observe cancellation and degrade to their caches.
// 0 disables the bound.
func WithAggregateTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		a.timeout = d
	}
}

// WithAggregatorLogger sets a custom logger.
func WithAggregatorLogger(logger *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// NewAggregator creates an Aggregator over the given sources.
func NewAggregator(sources []source.Resolver, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{sources: sources}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Aggregate resolves every source concurrently and collects the results by
// name. It always returns a complete result set with Gateway set to UP.
func (a *Aggregator) Aggregate(ctx context.Context) AggregateResult {
	start := time.Now()
	metrics.AggregateRequestsTotal.Inc()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	results := make([]source.Result, len(a.sources))

	var g errgroup.Group
	for i, src := range a.sources {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					a.logger.Error("source resolution panicked",
						"source", src.Name(),
						"panic", r,
					)
					results[i] = source.Result{
						Payload: src.CachedPayload(),
						Status:  source.StatusDown,
					}
				}
			}()
			results[i] = src.Resolve(ctx)
			return nil
		})
	}
	_ = g.Wait()

	out := AggregateResult{
		Gateway: GatewayStatus,
		Results: make(map[string]source.Result, len(a.sources)),
	}
	for i, src := range a.sources {
		out.Results[src.Name()] = results[i]
	}

	metrics.AggregateDuration.Observe(time.Since(start).Seconds())
	return out
}
