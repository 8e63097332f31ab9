package source

import "time"

// Clock supplies the current time. Cooldown expiry is pure arithmetic on
// Clock.Now(), so tests can drive it without real time passing.
type Clock interface {
	Now() time.Time
}

// systemClock uses wall-clock time.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
