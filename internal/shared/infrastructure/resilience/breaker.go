// Package resilience wraps calls to remote collaborators in circuit breakers.
package resilience

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/felixgeelhaar/convoy/pkg/observability"
)

// ErrUnavailable is returned while the breaker is open or saturated.
var ErrUnavailable = errors.New("dependency temporarily unavailable")

// MetricBreakerStateChanges counts breaker transitions, tagged by name and state.
const MetricBreakerStateChanges = "convoy.breaker.state_changes"

// BreakerConfig configures a breaker.
type BreakerConfig struct {
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32

	// Interval clears failure counts while closed. Zero never clears.
	Interval time.Duration

	// Timeout is how long the breaker stays open.
	Timeout time.Duration

	// FailureThreshold is the consecutive failure count that trips it.
	FailureThreshold uint32

	// Ignore marks errors that say nothing about the dependency's health,
	// such as a not-found answer. They neither trip nor reset the breaker.
	Ignore func(err error) bool
}

// DefaultBreakerConfig returns the defaults used for the fleet directory.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Breaker guards calls that return T.
type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// NewBreaker creates a named breaker.
func NewBreaker[T any](name string, cfg BreakerConfig, logger *slog.Logger, metrics observability.Metrics) *Breaker[T] {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.Counter(MetricBreakerStateChanges, 1,
				observability.T("breaker", name), observability.T("state", to.String()))
		},
	}
	if cfg.Ignore != nil {
		settings.IsExcluded = cfg.Ignore
	}

	return &Breaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn unless the breaker is open.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return result, errors.Join(ErrUnavailable, err)
	}
	return result, err
}

// State reports the breaker state ("closed", "half-open", "open").
func (b *Breaker[T]) State() string {
	return b.cb.State().String()
}
