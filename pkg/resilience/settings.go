package resilience

import "time"

const (
	defaultBreakerWindow  = time.Minute
	defaultBreakerOpenFor = 30 * time.Second
	defaultBreakerTrips   = 5
)

// DependencySettings describes the breaker of one outbound dependency.
// openFor is how long the breaker rejects calls after tripping and failures
// the number of consecutive failures that trip it. Zero values take the
// defaults; counts reset every minute and one success closes the breaker.
func DependencySettings(name string, openFor time.Duration, failures uint32) Settings {
	if openFor <= 0 {
		openFor = defaultBreakerOpenFor
	}
	if failures == 0 {
		failures = defaultBreakerTrips
	}
	return Settings{
		Name:             name,
		Interval:         defaultBreakerWindow,
		Timeout:          openFor,
		FailureThreshold: failures,
		SuccessThreshold: 1,
	}
}
