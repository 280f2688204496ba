package fingerprint

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/trustx/pkg/common"
	"github.com/richxcame/trustx/pkg/logger"
	"github.com/richxcame/trustx/pkg/middleware"
	"go.uber.org/zap"
)

var hashPattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

// Handler handles HTTP requests for the fingerprint log
type Handler struct {
	service *Service
}

// NewHandler creates a new fingerprint handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Log fingerprints a submitted report
func (h *Handler) Log(c *gin.Context) {
	var req LogRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	result, err := h.service.Log(c.Request.Context(), req.Report)
	if err != nil {
		if errors.Is(err, ErrInvalidReport) {
			common.ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		logger.WithContext(c.Request.Context()).Error("failed to log fingerprint", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to record fingerprint")
		return
	}

	common.SuccessResponse(c, "blockchain_result", result)
}

// Verify recomputes a stored fingerprint
func (h *Handler) Verify(c *gin.Context) {
	hash := strings.ToLower(c.Param("hash"))
	if !hashPattern.MatchString(hash) {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid fingerprint hash")
		return
	}

	result, err := h.service.Verify(c.Request.Context(), hash)
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("failed to verify fingerprint", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to verify fingerprint")
		return
	}

	common.SuccessResponse(c, "verification", result)
}

// GetStats returns fingerprint log counters
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("failed to get fingerprint stats", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to get stats")
		return
	}

	common.SuccessResponse(c, "stats", stats)
}

// defaultTrailWindow applies when the audit trail request omits from.
const defaultTrailWindow = 30 * 24 * time.Hour

// AuditTrail digests the entries recorded between from and to (RFC3339).
// to defaults to now and from to 30 days before to.
func (h *Handler) AuditTrail(c *gin.Context) {
	to := time.Now().UTC()
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "to must be an RFC3339 timestamp")
			return
		}
		to = t
	}
	from := to.Add(-defaultTrailWindow)
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "from must be an RFC3339 timestamp")
			return
		}
		from = t
	}

	trail, err := h.service.AuditTrail(c.Request.Context(), from, to)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidWindow):
			common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrTrailTooLarge):
			common.ErrorResponse(c, http.StatusUnprocessableEntity, err.Error())
		default:
			logger.WithContext(c.Request.Context()).Error("failed to build audit trail", zap.Error(err))
			common.ErrorResponse(c, http.StatusInternalServerError, "failed to build audit trail")
		}
		return
	}

	common.SuccessResponse(c, "audit_trail", trail)
}

// Status reports the fingerprint log backend
func (h *Handler) Status(c *gin.Context) {
	common.SuccessResponse(c, "blockchain_status", h.service.Status(c.Request.Context()))
}

// RegisterRoutes registers fingerprint routes. The /blockchain prefix is
// kept for client compatibility.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	chain := rg.Group("/blockchain")
	{
		chain.POST("/log", h.Log)
		chain.GET("/verify/:hash", h.Verify)
		chain.GET("/stats", h.GetStats)
		chain.GET("/audit-trail", h.AuditTrail)
		chain.GET("/status", h.Status)
	}
}
