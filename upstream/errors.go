package upstream

import (
	"errors"
	"fmt"
)

// Sentinel errors - use with errors.Is()
var (
	ErrMaxAttempts      = errors.New("upstream: max attempts exceeded")
	ErrCircuitOpen      = errors.New("upstream: circuit breaker open")
	ErrResponseTooLarge = errors.New("upstream: response too large")
)

// StatusError reports a non-2xx response from an upstream.
// Use errors.As() to extract the status code after a failed call;
// the code survives the ErrMaxAttempts wrap.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: %s returned %s", e.URL, e.Status)
}

// StatusCode returns the HTTP status code carried by err, if any.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}
