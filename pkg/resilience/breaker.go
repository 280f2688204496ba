package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when a breaker rejects a call.
var ErrCircuitOpen = errors.New("resilience: circuit breaker open")

// Settings tunes a circuit breaker.
type Settings struct {
	Name             string
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
}

// Operation is a unit of work guarded by retry or a breaker.
type Operation func(ctx context.Context) (interface{}, error)

// CircuitBreaker wraps gobreaker with a fallback and Prometheus accounting.
type CircuitBreaker struct {
	metrics  dependencyMetrics
	cb       *gobreaker.CircuitBreaker
	fallback FallbackFunc
}

// NewCircuitBreaker builds a breaker that trips after FailureThreshold consecutive failures.
// A nil fallback behaves like NoopFallback.
func NewCircuitBreaker(s Settings, fallback FallbackFunc) *CircuitBreaker {
	metrics := newDependencyMetrics(s.Name)
	if fallback == nil {
		fallback = NoopFallback
	}
	threshold := s.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	halfOpen := s.SuccessThreshold
	if halfOpen == 0 {
		halfOpen = 1
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        metrics.dependency,
		MaxRequests: halfOpen,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(_ string, _, to gobreaker.State) {
			metrics.transition(to)
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about the dependency.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	metrics.availability(gobreaker.StateClosed)

	return &CircuitBreaker{metrics: metrics, cb: cb, fallback: fallback}
}

// Name returns the dependency label used in metrics.
func (b *CircuitBreaker) Name() string {
	return b.metrics.dependency
}

// State returns the current breaker state.
func (b *CircuitBreaker) State() gobreaker.State {
	return b.cb.State()
}

// Execute runs op through the breaker. Rejections are routed to the fallback.
func (b *CircuitBreaker) Execute(ctx context.Context, op Operation) (interface{}, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return op(ctx)
	})
	if err == nil {
		b.metrics.observe(outcomeOK)
		return result, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.metrics.observe(outcomeShortCircuited)
		return b.fallback(ctx, err)
	}

	b.metrics.observe(outcomeError)
	return nil, err
}
