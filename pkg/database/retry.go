package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/richxcame/trustx/pkg/resilience"
)

var retryableMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"timeout",
	"too many connections",
	"server closed",
	"temporary failure",
}

// WriteRetryConfig is the retry policy for short idempotent writes.
func WriteRetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		EnableJitter:      true,
		RetryableChecker:  isPostgresRetryable,
	}
}

// WithRetry runs fn under WriteRetryConfig. Only transient Postgres failures are retried.
func WithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := resilience.Retry(ctx, WriteRetryConfig(), func(ctx context.Context) (interface{}, error) {
		return nil, fn(ctx)
	})
	return err
}

// NewBreaker returns a breaker named after the database.
func NewBreaker(name string) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(
		resilience.DependencySettings("postgres-"+sanitizeBreakerName(name), 15*time.Second, 5),
		resilience.GracefulDegradation("postgres"),
	)
}

func sanitizeBreakerName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

func isPostgresRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", // serialization, deadlock, lock not available
			"53000", "53300", "53400", // insufficient resources, too many connections, config limit
			"57P01", "57P02", "57P03", // shutdowns, cannot connect now
			"58000", "XX000":
			return true
		}
		return strings.HasPrefix(pgErr.Code, "08")
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range retryableMessages {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
