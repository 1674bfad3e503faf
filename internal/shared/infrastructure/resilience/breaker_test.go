package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/convoy/internal/shared/infrastructure/resilience"
	"github.com/felixgeelhaar/convoy/pkg/observability"
)

var (
	errRemote   = errors.New("remote failed")
	errNotFound = errors.New("not found")
)

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	metrics := observability.NewInMemoryMetrics()
	cfg := resilience.DefaultBreakerConfig()
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Hour
	breaker := resilience.NewBreaker[string]("fleet", cfg, nil, metrics)

	for range 2 {
		_, err := breaker.Execute(func() (string, error) { return "", errRemote })
		assert.ErrorIs(t, err, errRemote)
	}
	assert.Equal(t, "open", breaker.State())

	calls := 0
	_, err := breaker.Execute(func() (string, error) {
		calls++
		return "ok", nil
	})
	assert.ErrorIs(t, err, resilience.ErrUnavailable)
	assert.Zero(t, calls)
	assert.Equal(t, int64(1), metrics.GetCounter(resilience.MetricBreakerStateChanges,
		observability.T("breaker", "fleet"), observability.T("state", "open")))
}

func TestBreaker_IgnoredErrorsDoNotTrip(t *testing.T) {
	cfg := resilience.DefaultBreakerConfig()
	cfg.FailureThreshold = 1
	cfg.Ignore = func(err error) bool { return errors.Is(err, errNotFound) }
	breaker := resilience.NewBreaker[int]("fleet", cfg, nil, nil)

	for range 3 {
		_, err := breaker.Execute(func() (int, error) { return 0, errNotFound })
		assert.ErrorIs(t, err, errNotFound)
	}
	assert.Equal(t, "closed", breaker.State())

	v, err := breaker.Execute(func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
