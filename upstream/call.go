package upstream

import (
	"net/http"
	"time"
)

// Call describes one request to an upstream endpoint.
// A Call is immutable once constructed; build a fresh one per target.
type Call struct {
	// URL is the full request URL including any query string.
	URL string

	// Header holds extra request headers (e.g. an Authorization token).
	Header http.Header

	// Timeout bounds a single attempt. 0 uses the client's default.
	Timeout time.Duration
}

// RetryPolicy holds retry configuration. Pure configuration, no state.
type RetryPolicy struct {
	MaxAttempts int           // Total attempts, including the first (minimum 1)
	BaseWait    time.Duration // Wait before the second attempt
	MaxWait     time.Duration // Cap on the backoff wait
	Factor      float64       // Backoff multiplier (2.0 = exponential doubling)
	Jitter      float64       // Jitter factor (0.0-1.0, 0 = deterministic waits)
}

// DefaultRetryPolicy returns the policy used for the data upstreams:
// three attempts with a 500ms base wait capped at 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseWait:    500 * time.Millisecond,
		MaxWait:     2 * time.Second,
		Factor:      2.0,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseWait <= 0 {
		p.BaseWait = 500 * time.Millisecond
	}
	if p.MaxWait < p.BaseWait {
		p.MaxWait = p.BaseWait
	}
	if p.Factor < 1 {
		p.Factor = 2.0
	}
	return p
}
