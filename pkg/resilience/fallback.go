package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/richxcame/trustx/pkg/logger"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// FallbackFunc runs instead of the operation when the breaker refuses it.
type FallbackFunc func(ctx context.Context, err error) (interface{}, error)

// NoopFallback returns ErrCircuitOpen.
func NoopFallback(ctx context.Context, err error) (interface{}, error) {
	return nil, ErrCircuitOpen
}

// GracefulDegradation logs the refusal and returns ErrCircuitOpen wrapped
// with the dependency name. Extractors report it as an unavailable signal.
func GracefulDegradation(dependency string) FallbackFunc {
	return func(ctx context.Context, err error) (interface{}, error) {
		reason := "open"
		if errors.Is(err, gobreaker.ErrTooManyRequests) {
			reason = "half-open trial limit"
		}
		logger.WithContext(ctx).Warn("dependency degraded",
			zap.String("dependency", dependency),
			zap.String("breaker", reason),
		)
		return nil, fmt.Errorf("%s: %w", dependency, ErrCircuitOpen)
	}
}
