// Package throttle rate-limits how often a dispatcher logs a repeated
// condition (queue-full back-off, an unknown RequestId) so a single
// misbehaving or overloaded peer cannot flood the configured Logger. It
// wraps github.com/joeycumines/go-catrate's category-keyed
// sliding-window limiter.
package throttle

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// Limiter throttles log-worthy events per category (e.g. a connection
// ID combined with a condition name).
type Limiter struct {
	limiter *catrate.Limiter
}

// DefaultRates caps a given category at 1 event/second and 20/minute,
// reasonable defaults for connection-scoped diagnostic logging: frequent
// enough to see the condition start and stop, not so frequent that a
// tight retry loop floods output.
var DefaultRates = map[time.Duration]int{
	time.Second: 1,
	time.Minute: 20,
}

// New builds a Limiter with the given rates. A nil or empty rates map
// disables throttling entirely (every event is allowed), matching
// catrate.Limiter's own behavior for a zero-rate configuration.
func New(rates map[time.Duration]int) *Limiter {
	if len(rates) == 0 {
		return &Limiter{}
	}
	return &Limiter{limiter: catrate.NewLimiter(rates)}
}

// Allow reports whether an event in category should be logged now. It is
// non-blocking and safe for concurrent use.
func (l *Limiter) Allow(category string) bool {
	if l == nil || l.limiter == nil {
		return true
	}
	_, ok := l.limiter.Allow(category)
	return ok
}
