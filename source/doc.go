// Package source wraps one upstream concern with the resilience state the
// gateway depends on: a seeded last-known-good cache, a cooldown gate armed
// by rate-limit responses, and an optional fallback tier. A resolution never
// returns an error; every failure is absorbed into a DOWN (or FALLBACK)
// status with the best payload available.
package source
