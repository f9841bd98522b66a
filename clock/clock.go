// Package clock implements the time and randomness port used by turns.
package clock

import (
	"math/rand/v2"
	"time"
)

// System is the production clock. Timestamps are UTC.
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

func (System) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// RandomDelay draws uniformly in [min, max).
func (System) RandomDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min)
}

func (System) RandomChoice(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[rand.IntN(len(options))]
}
