// Package testutil provides test doubles for the resilience machinery:
// a fake sleeper for backoff timing, a fake clock for cooldown expiry, and
// a mock upstream server that counts calls per path.
package testutil
