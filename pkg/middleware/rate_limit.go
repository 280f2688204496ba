package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/trustx/pkg/common"
	"github.com/richxcame/trustx/pkg/logger"
	"github.com/richxcame/trustx/pkg/ratelimit"
	"go.uber.org/zap"
)

// SessionHeader identifies an analysis session. Callers that send a
// well-formed session id get session limits.
const SessionHeader = "X-Session-ID"

// RateLimit applies the token bucket per client. Redis failures fail open.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || !limiter.Enabled() {
			c.Next()
			return
		}

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		identity, identityType := rateLimitIdentity(c)

		rule := limiter.RuleFor(endpoint, identityType)
		result, err := limiter.Allow(c.Request.Context(), endpoint, identity, rule, identityType)
		if err != nil {
			logger.WithContext(c.Request.Context()).Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
			common.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}

		c.Next()
	}
}

// rateLimitIdentity keys both tiers on the client address. The session tier
// is shared by every session id from one address, so rotating the header
// cannot mint fresh buckets.
func rateLimitIdentity(c *gin.Context) (string, ratelimit.IdentityType) {
	ip := c.ClientIP()
	if _, err := uuid.Parse(c.GetHeader(SessionHeader)); err != nil {
		return ip, ratelimit.IdentityAnonymous
	}
	return "session:" + ip, ratelimit.IdentitySession
}
