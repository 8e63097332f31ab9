package source

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/pavann19/resilient-microservices/internal/metrics"
	"github.com/pavann19/resilient-microservices/upstream"
)

// Status is the tri-state health label attached to every resolution.
type Status string

const (
	StatusUp       Status = "UP"
	StatusFallback Status = "FALLBACK"
	StatusDown     Status = "DOWN"
)

// Result is the output of one resolution: a payload that is always usable
// (fresh value or last-known-good cache) plus the status label.
type Result struct {
	Payload any
	Status  Status
}

// Resolver is the interface the aggregator consumes.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context) Result
	CachedPayload() any
}

// Fetcher fetches and parses one tier's payload.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Source owns the resilience state for one upstream concern. One instance
// exists per logical upstream; its cache and cooldown slots are never shared.
type Source[T any] struct {
	name        string
	primary     Fetcher[T]
	fallback    Fetcher[T]
	cooldown    time.Duration
	rateLimited func(code int) bool
	empty       func(T) bool
	clock       Clock
	logger      *slog.Logger

	mu            sync.Mutex
	cached        T
	cooldownUntil time.Time
}

// Option configures a Source.
type Option[T any] func(*Source[T])

// WithFallback sets the secondary tier, consulted only after the primary fails.
func WithFallback[T any](f Fetcher[T]) Option[T] {
	return func(s *Source[T]) {
		s.fallback = f
	}
}

// WithCooldown sets how long network calls stay suppressed after a
// rate-limit response.
func WithCooldown[T any](d time.Duration) Option[T] {
	return func(s *Source[T]) {
		s.cooldown = d
	}
}

// WithRateLimitStatuses sets which HTTP statuses this upstream uses to
// signal rate limiting.
func WithRateLimitStatuses[T any](codes ...int) Option[T] {
	return func(s *Source[T]) {
		s.rateLimited = func(code int) bool {
			return slices.Contains(codes, code)
		}
	}
}

// WithEmpty sets the predicate that classifies a successfully parsed payload
// as empty. Empty payloads never overwrite the cache.
func WithEmpty[T any](f func(T) bool) Option[T] {
	return func(s *Source[T]) {
		s.empty = f
	}
}

// WithClock sets a custom clock (useful for testing cooldown expiry).
func WithClock[T any](c Clock) Option[T] {
	return func(s *Source[T]) {
		s.clock = c
	}
}

// WithLogger sets a custom logger.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(s *Source[T]) {
		s.logger = logger
	}
}

// New creates a Source seeded with an initial last-known-good payload.
// The seed is served until the first successful non-empty fetch.
func New[T any](name string, primary Fetcher[T], seed T, opts ...Option[T]) *Source[T] {
	s := &Source[T]{
		name:     name,
		primary:  primary,
		cooldown: 30 * time.Second,
		cached:   seed,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.rateLimited == nil {
		s.rateLimited = func(code int) bool { return code == 429 }
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Name returns the source name used as the key in aggregate output.
func (s *Source[T]) Name() string { return s.name }

// CachedPayload returns the current last-known-good payload.
func (s *Source[T]) CachedPayload() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cached
}

// Cached returns the current last-known-good payload with its concrete type.
func (s *Source[T]) Cached() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cached
}

// Resolve evaluates the source once. While a cooldown is active no network
// call happens at all; otherwise the primary tier runs, then on failure the
// cooldown may be armed and the fallback tier consulted. All upstream
// errors are absorbed here.
func (s *Source[T]) Resolve(ctx context.Context) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if now.Before(s.cooldownUntil) {
		s.logger.Info("in cooldown, serving cached payload",
			"source", s.name,
			"until", s.cooldownUntil,
		)
		metrics.ObserveSourceResolution(s.name, string(StatusDown), true)
		return Result{Payload: s.cached, Status: StatusDown}
	}

	value, err := s.primary(ctx)
	if err == nil {
		return s.accept(value, StatusUp)
	}
	s.logger.Warn("primary fetch failed", "source", s.name, "error", err)

	if code, ok := upstream.StatusCode(err); ok && s.rateLimited(code) {
		s.cooldownUntil = now.Add(s.cooldown)
		metrics.SourceCooldownsTotal.WithLabelValues(s.name).Inc()
		s.logger.Info("rate limited, cooling down",
			"source", s.name,
			"status", code,
			"until", s.cooldownUntil,
		)
	}

	if s.fallback != nil {
		value, ferr := s.fallback(ctx)
		if ferr == nil {
			return s.accept(value, StatusFallback)
		}
		s.logger.Warn("fallback fetch failed", "source", s.name, "error", ferr)
	}

	metrics.ObserveSourceResolution(s.name, string(StatusDown), true)
	return Result{Payload: s.cached, Status: StatusDown}
}

// accept folds a successful fetch into the cache. A valid but empty payload
// never erases prior good data; the previous cache is returned instead.
func (s *Source[T]) accept(value T, status Status) Result {
	if s.empty != nil && s.empty(value) {
		metrics.ObserveSourceResolution(s.name, string(status), true)
		return Result{Payload: s.cached, Status: status}
	}
	s.cached = value
	metrics.ObserveSourceResolution(s.name, string(status), false)
	return Result{Payload: value, Status: status}
}
