// Package ratelimit implements a Redis backed token bucket shared by every API replica.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/richxcame/trustx/pkg/config"
)

// IdentityType distinguishes callers that carry an analysis session from bare clients.
type IdentityType int

const (
	IdentityAnonymous IdentityType = iota
	IdentitySession
)

// Rule is the effective limit for one endpoint and identity type.
type Rule struct {
	Limit  int
	Burst  int
	Window time.Duration
}

// Result describes the outcome of a single Allow call.
type Result struct {
	Allowed      bool
	Remaining    int
	RetryAfter   time.Duration
	Limit        int
	Window       time.Duration
	ResetAfter   time.Duration
	IdentityKey  string
	EndpointKey  string
	IdentityType IdentityType
}

// tokenBucketScript refills the bucket from elapsed time and takes one token.
// Returns {allowed, remaining, retry_after_ms, reset_after_ms}.
const tokenBucketScript = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil then
  tokens = capacity
  ts = now
end

local elapsed = math.max(0, now - ts)
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
local retry_after = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  retry_after = math.ceil((1 - tokens) / rate)
end

local reset_after = math.ceil((capacity - tokens) / rate)
redis.call("HSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, ttl)
return {allowed, math.floor(tokens), retry_after, reset_after}
`

// Limiter evaluates rules against the shared bucket state.
type Limiter struct {
	client *redis.Client
	cfg    config.RateLimitConfig
	script *redis.Script
	now    func() time.Time
}

// NewLimiter creates a limiter using client for bucket storage.
func NewLimiter(client *redis.Client, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		client: client,
		cfg:    cfg,
		script: redis.NewScript(tokenBucketScript),
		now:    time.Now,
	}
}

// WithNow overrides the clock, used by tests.
func (l *Limiter) WithNow(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Enabled reports whether limiting is switched on.
func (l *Limiter) Enabled() bool {
	return l.cfg.Enabled
}

// RuleFor resolves the rule for endpoint, applying any endpoint override.
func (l *Limiter) RuleFor(endpoint string, identity IdentityType) Rule {
	rule := Rule{Limit: l.cfg.DefaultLimit, Burst: l.cfg.DefaultBurst, Window: l.cfg.Window()}
	if identity == IdentityAnonymous {
		rule.Limit = l.cfg.AnonymousLimit
		rule.Burst = l.cfg.AnonymousBurst
	}

	if override, ok := l.cfg.EndpointOverrides[endpoint]; ok {
		if identity == IdentitySession {
			if override.SessionLimit > 0 {
				rule.Limit = override.SessionLimit
			}
			if override.SessionBurst != nil {
				rule.Burst = *override.SessionBurst
			}
		} else {
			if override.AnonymousLimit > 0 {
				rule.Limit = override.AnonymousLimit
			}
			if override.AnonymousBurst != nil {
				rule.Burst = *override.AnonymousBurst
			}
		}
		if override.WindowSeconds > 0 {
			rule.Window = time.Duration(override.WindowSeconds) * time.Second
		}
	}

	rule.Burst = max(rule.Burst, 0)
	return rule
}

// Allow takes one token for identity on endpoint.
// Disabled limiters and non-positive limits always allow.
func (l *Limiter) Allow(ctx context.Context, endpoint, identity string, rule Rule, identityType IdentityType) (Result, error) {
	result := Result{
		Allowed:      true,
		Remaining:    rule.Limit,
		Limit:        rule.Limit,
		Window:       rule.Window,
		IdentityKey:  identity,
		EndpointKey:  endpoint,
		IdentityType: identityType,
	}
	if !l.cfg.Enabled || rule.Limit <= 0 {
		if rule.Limit < 0 {
			result.Remaining = 0
		}
		return result, nil
	}

	window := rule.Window
	if window <= 0 {
		window = l.cfg.Window()
	}

	ratePerMs := float64(rule.Limit) / float64(window.Milliseconds())
	capacity := rule.Limit + rule.Burst
	key := fmt.Sprintf("%s:%s:%s", l.cfg.RedisPrefix, endpoint, identity)

	raw, err := l.script.Run(ctx, l.client, []string{key},
		formatFloat(ratePerMs),
		capacity,
		l.now().UnixMilli(),
		(window * 2).Milliseconds(),
	).Result()
	if err != nil {
		return result, fmt.Errorf("ratelimit: evaluate bucket: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 4 {
		return result, fmt.Errorf("ratelimit: unexpected script reply %T", raw)
	}

	result.Allowed = toInt(values[0]) == 1
	result.Remaining = toInt(values[1])
	result.RetryAfter = time.Duration(toFloat(values[2])) * time.Millisecond
	result.ResetAfter = time.Duration(toFloat(values[3])) * time.Millisecond
	return result, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 10, 64)
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil || math.IsNaN(f) {
			return 0
		}
		return f
	default:
		return 0
	}
}
