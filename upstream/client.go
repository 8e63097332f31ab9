package upstream

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/big"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/pavann19/resilient-microservices/internal/httpclient"
	"github.com/pavann19/resilient-microservices/internal/metrics"
)

const maxResponseSize = 4 << 20 // 4MB

// BreakerSettings configures the per-client circuit breaker.
type BreakerSettings struct {
	// MaxRequests is the maximum number of requests allowed in half-open state.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state.
	Interval time.Duration

	// Timeout is the duration of the open state before transitioning to half-open.
	Timeout time.Duration

	// ConsecutiveFailures is the number of consecutive server/transport
	// failures that trips the breaker. Client errors (4xx) never count.
	ConsecutiveFailures uint32
}

// DefaultBreakerSettings returns defaults loose enough that a single
// retry-exhausting call cannot trip the breaker.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:         3,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 8,
	}
}

// Client calls one class of upstream endpoint with bounded retries.
// It holds no cache or cooldown state; that belongs to the caller.
type Client struct {
	name            string
	policy          RetryPolicy
	httpClient      *http.Client
	logger          *slog.Logger
	limiter         *rate.Limiter
	breaker         *gobreaker.CircuitBreaker[[]byte]
	breakerSettings BreakerSettings
	sleeper         Sleeper
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRetryPolicy sets retry parameters.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.policy = policy.normalized()
	}
}

// WithRateLimit sets the outbound politeness limit in requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBreakerSettings configures the circuit breaker.
func WithBreakerSettings(settings BreakerSettings) Option {
	return func(c *Client) {
		c.breakerSettings = settings
	}
}

// WithSleeper sets a custom sleeper for retry timing (useful for testing).
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		c.sleeper = s
	}
}

// New creates a Client. The name labels log entries, metrics and the
// circuit breaker.
func New(name string, opts ...Option) *Client {
	c := &Client{
		name:            name,
		policy:          DefaultRetryPolicy(),
		breakerSettings: DefaultBreakerSettings(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.httpClient == nil {
		c.httpClient = httpclient.NewDefault()
	}
	if c.limiter == nil {
		// Generous default; the limiter exists to stop a hot aggregate
		// loop from hammering a public API, not to shape traffic.
		c.limiter = rate.NewLimiter(rate.Limit(10), 10)
	}
	if c.sleeper == nil {
		c.sleeper = realSleeper{}
	}

	settings := c.breakerSettings
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info("circuit breaker state changed",
				"upstream", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return c
}

// FetchJSON performs the call with retries and returns the raw response
// body. Transport failures and 5xx responses are retried with exponential
// backoff; 4xx responses (including rate limits) fail immediately so the
// caller sees the first rate-limit observation. After the final attempt the
// returned error wraps ErrMaxAttempts and the last underlying error, so
// StatusCode still extracts the HTTP code when one was observed.
func (c *Client) FetchJSON(ctx context.Context, call Call) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		start := time.Now()
		body, err := c.breaker.Execute(func() ([]byte, error) {
			return c.fetchOnce(ctx, call)
		})
		metrics.ObserveUpstreamAttempt(c.name, outcomeLabel(err), time.Since(start))

		if err == nil {
			return body, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, c.name)
		}

		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isRetryable(err) {
			return nil, err
		}
		if attempt == c.policy.MaxAttempts {
			break
		}

		wait := backoffWait(c.policy, attempt)
		c.logger.Warn("upstream attempt failed, backing off",
			"upstream", c.name,
			"url", call.URL,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
		if err := c.sleeper.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrMaxAttempts, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, call Call) ([]byte, error) {
	if call.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, call.URL, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range call.Header {
		req.Header[key] = values
	}

	resp, err := httpclient.DoJSON(ctx, c.httpClient, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxResponseSize {
		return nil, fmt.Errorf("%w: %s", ErrResponseTooLarge, call.URL)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: call.URL, Code: resp.StatusCode, Status: resp.Status}
	}

	return body, nil
}

// isRetryable: transport failures and server errors may heal on retry,
// client errors will not. Rate-limit statuses in particular must surface
// on first observation so the caller can arm its cooldown.
func isRetryable(err error) bool {
	if errors.Is(err, ErrResponseTooLarge) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return true
}

// isBreakerSuccess determines what counts as a circuit breaker failure.
// Only server errors (5xx) and transport errors trip the breaker;
// 4xx is a client-side issue, not service degradation.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 400 && se.Code < 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

func backoffWait(policy RetryPolicy, attempt int) time.Duration {
	wait := float64(policy.BaseWait) * math.Pow(policy.Factor, float64(attempt-1))
	if wait > float64(policy.MaxWait) {
		wait = float64(policy.MaxWait)
	}
	if wait < float64(policy.BaseWait) {
		wait = float64(policy.BaseWait)
	}

	if policy.Jitter > 0 {
		jitterRange := int64(wait * policy.Jitter)
		if jitterRange > 0 {
			jitter, err := rand.Int(rand.Reader, big.NewInt(jitterRange*2))
			if err == nil {
				wait += float64(jitter.Int64()) - float64(jitterRange)
			}
		}
	}

	return time.Duration(wait)
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	default:
		if _, ok := StatusCode(err); ok {
			return "status_error"
		}
		return "transport_error"
	}
}
