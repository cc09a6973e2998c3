// Package breakers wraps github.com/sony/gobreaker with the
// consecutive-failure trip policy the engine's stream reconnect attempts
// use: they trip into an open
// state after repeated consecutive failures rather than a request-rate
// threshold, then probe once per Timeout before resuming.
package breakers

import (
	"time"

	"github.com/sony/gobreaker"
)

// Breaker wraps a named gobreaker.CircuitBreaker configured to trip on
// consecutive failures.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New builds a Breaker that trips after consecutiveFailures in a row
// and stays open for timeout before allowing a single probe request.
func New(name string, consecutiveFailures uint32, timeout time.Duration) *Breaker {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(st)}
}

// Execute runs fn through the breaker, short-circuiting with
// gobreaker.ErrOpenState while tripped.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	return b.cb.Execute(fn)
}

// State reports the breaker's current state for status reporting.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
