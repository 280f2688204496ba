package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/trustx/pkg/logger"
)

const (
	// CorrelationIDHeader carries the request id in both directions.
	CorrelationIDHeader = "X-Request-ID"
	// LegacyCorrelationIDHeader is read when CorrelationIDHeader is absent.
	LegacyCorrelationIDHeader = "X-Correlation-ID"
	// CorrelationIDKey is the gin context key.
	CorrelationIDKey = "correlation_id"

	maxCorrelationIDLen = 128
)

// CorrelationID reuses a caller supplied request id or mints a UUID. The id
// is echoed back and stored in the request context for logger.WithContext.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if id == "" {
			id = c.GetHeader(LegacyCorrelationIDHeader)
		}
		if !validCorrelationID(id) {
			id = uuid.NewString()
		}

		c.Set(CorrelationIDKey, id)
		c.Request = c.Request.WithContext(logger.ContextWithCorrelationID(c.Request.Context(), id))
		c.Writer.Header().Set(CorrelationIDHeader, id)

		c.Next()
	}
}

// GetCorrelationID returns the id set by CorrelationID, or "".
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(CorrelationIDKey)
}

// Ids end up in log lines and response headers; keep them printable ASCII.
func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
