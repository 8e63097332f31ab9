// Package gateway composes the resilient sources into a single aggregate
// view and serves it over HTTP. The gateway itself is defined as UP
// whenever it can answer at all; degradation is only ever visible through
// the per-source status labels, never through error status codes.
package gateway
