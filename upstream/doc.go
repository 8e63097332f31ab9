// Package upstream provides the HTTP client used to call upstream data
// providers. It performs a single GET per call with bounded retries and
// exponential backoff, gated by an outbound rate limiter and a circuit
// breaker. Rate-limit and other client-error responses fail fast so the
// caller can react (arm a cooldown, switch to a fallback tier) without
// burning the retry budget.
package upstream
