// Package breaker wraps external collaborator calls (vision/LLM, blob
// store, embedding backend) with a circuit breaker per §5, so an outage in
// one collaborator fails fast instead of exhausting retry budgets across
// every in-flight document.
package breaker

import (
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is gobreaker.ErrOpenState, returned when a breaker is open and
// rejecting calls.
var ErrOpen = gobreaker.ErrOpenState

// Breaker guards one external collaborator. It is safe for concurrent use.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// Config configures a Breaker's trip and recovery behavior.
type Config struct {
	// Name identifies the collaborator in logs and metrics (e.g. "vision",
	// "embedding", "blobstore").
	Name string
	// MaxFailures is the consecutive-failure count that trips the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before allowing a
	// single probe request through (half-open).
	OpenTimeout time.Duration
	// OnStateChange, if set, is called whenever the breaker transitions
	// state (closed, open, half-open).
	OnStateChange func(name string, from, to string)
}

// New creates a Breaker from cfg.
func New(cfg Config) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, from.String(), to.String())
		}
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Do runs fn through the breaker. When the breaker is open, fn is not
// called and Do returns an error satisfying errors.Is(err, ErrOpen).
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// State reports the breaker's current state as a string ("closed",
// "open", "half-open").
func (b *Breaker) State() string {
	return b.cb.State().String()
}
