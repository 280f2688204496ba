package middleware

import (
	"errors"
	"net"
	"os"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/richxcame/trustx/pkg/common"
	"github.com/richxcame/trustx/pkg/logger"
	"go.uber.org/zap"
)

var httpPanicsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "trustx",
		Subsystem: "http",
		Name:      "panics_total",
		Help:      "Handler panics recovered by the middleware",
	},
	[]string{"route"},
)

// Recovery turns handler panics into a generic 500. The panic value and
// stack go to the log only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			httpPanicsTotal.WithLabelValues(route).Inc()

			log := logger.WithContext(c.Request.Context()).With(
				zap.String("route", route),
				zap.String("method", c.Request.Method),
				zap.String("correlation_id", GetCorrelationID(c)),
			)

			// A client that hung up mid-upload cannot be answered.
			if clientGone(rec) {
				log.Warn("client connection lost", zap.Any("error", rec))
				c.Abort()
				return
			}

			log.Error("panic recovered", zap.Any("error", rec), zap.Stack("stack"))
			common.AppErrorResponse(c, common.NewInternalServerError("internal server error"))
			c.Abort()
		}()

		c.Next()
	}
}

func clientGone(rec interface{}) bool {
	err, ok := rec.(error)
	if !ok {
		return false
	}
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if errors.As(opErr, &sysErr) {
		return errors.Is(sysErr.Err, syscall.EPIPE) || errors.Is(sysErr.Err, syscall.ECONNRESET)
	}
	return false
}
