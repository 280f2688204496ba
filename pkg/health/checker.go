package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// Checker reports the health of one dependency.
type Checker func() error

// CheckerConfig holds configuration for health checkers
type CheckerConfig struct {
	Timeout time.Duration
}

// DefaultCheckerConfig returns the default checker configuration
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{Timeout: 2 * time.Second}
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseChecker returns a health check function for a database/sql handle
func DatabaseChecker(db *sql.DB) Checker {
	return DatabaseCheckerWithConfig(db, DefaultCheckerConfig())
}

// DatabaseCheckerWithConfig returns a database checker using cfg.Timeout
func DatabaseCheckerWithConfig(db *sql.DB, cfg CheckerConfig) Checker {
	return func() error {
		if db == nil {
			return errors.New("database connection is nil")
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		return db.PingContext(ctx)
	}
}

// PoolChecker returns a health check function for a pgx pool
func PoolChecker(pool Pinger) Checker {
	cfg := DefaultCheckerConfig()
	return func() error {
		if pool == nil {
			return errors.New("database pool is nil")
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		return pool.Ping(ctx)
	}
}

// RedisChecker returns a health check function for Redis
func RedisChecker(client *redis.Client) Checker {
	cfg := DefaultCheckerConfig()
	return func() error {
		if client == nil {
			return errors.New("redis client is nil")
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		return client.Ping(ctx).Err()
	}
}

// NATSChecker reports whether the event bus connection is up
func NATSChecker(conn *nats.Conn) Checker {
	return func() error {
		if conn == nil {
			return errors.New("nats connection is nil")
		}
		if status := conn.Status(); status != nats.CONNECTED {
			return fmt.Errorf("nats connection status %s", status)
		}
		return nil
	}
}

// CachedChecker memoizes the result of a checker for ttl so frequent
// readiness checks do not hammer the dependency.
type CachedChecker struct {
	checker Checker
	ttl     time.Duration

	mu        sync.Mutex
	lastErr   error
	checkedAt time.Time
}

// NewCachedChecker wraps checker with a result cache
func NewCachedChecker(checker Checker, ttl time.Duration) *CachedChecker {
	return &CachedChecker{checker: checker, ttl: ttl}
}

// Check runs the wrapped checker unless a fresh result is cached
func (c *CachedChecker) Check() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.checkedAt.IsZero() && time.Since(c.checkedAt) < c.ttl {
		return c.lastErr
	}
	c.lastErr = c.checker()
	c.checkedAt = time.Now()
	return c.lastErr
}
