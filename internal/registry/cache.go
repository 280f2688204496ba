package registry

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	redisclient "github.com/richxcame/trustx/pkg/redis"
)

const (
	cacheKeyPrefix   = "trustx:registry:advisor:"
	verificationsKey = "trustx:registry:verifications"
)

// RedisCache keeps recent lookups in Redis
type RedisCache struct {
	client *redisclient.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache whose entries expire after ttl
func NewRedisCache(client *redisclient.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns ErrNotFound on a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (*Advisor, error) {
	var a Advisor
	found, err := c.client.GetJSON(ctx, cacheKeyPrefix+key, &a)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, a *Advisor) error {
	return c.client.SetJSON(ctx, cacheKeyPrefix+key, a, c.ttl)
}

func (c *RedisCache) IncrVerifications(ctx context.Context) error {
	_, err := c.client.IncrCounter(ctx, verificationsKey)
	return err
}

func (c *RedisCache) Verifications(ctx context.Context) (int64, error) {
	n, err := c.client.Get(ctx, verificationsKey).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return n, err
}

// lookupKey identifies a lookup. An id takes precedence over the name.
func lookupKey(name, advisorID string) string {
	if advisorID != "" {
		return "id:" + strings.ToUpper(advisorID)
	}
	return "name:" + strings.ToLower(strings.Join(strings.Fields(name), " "))
}
