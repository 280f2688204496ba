package registry

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/trustx/pkg/common"
	"github.com/richxcame/trustx/pkg/logger"
	"github.com/richxcame/trustx/pkg/middleware"
	"github.com/richxcame/trustx/pkg/security"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for registry verification
type Handler struct {
	service *Service
}

// NewHandler creates a new registry handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// VerifyAdvisor checks an advisor against the registry
func (h *Handler) VerifyAdvisor(c *gin.Context) {
	var req VerifyAdvisorRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	result, err := h.service.Lookup(c.Request.Context(),
		security.SanitizeInput(req.AdvisorName, 200),
		security.SanitizeIdentifier(req.AdvisorID),
	)
	if err != nil {
		if errors.Is(err, ErrEmptyQuery) {
			common.ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		logger.WithContext(c.Request.Context()).Error("advisor verification failed", zap.Error(err))
		common.ErrorResponse(c, http.StatusServiceUnavailable, "advisor registry is unavailable")
		return
	}

	common.SuccessResponse(c, "verification", result)
}

// VerifyBroker checks a stock broker against the registered list
func (h *Handler) VerifyBroker(c *gin.Context) {
	var req VerifyBrokerRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	common.SuccessResponse(c, "verification", h.service.VerifyBroker(security.SanitizeInput(req.Name, 200)))
}

// VerifyFund checks a mutual fund house against the registered list
func (h *Handler) VerifyFund(c *gin.Context) {
	var req VerifyFundRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	common.SuccessResponse(c, "verification", h.service.VerifyFund(
		security.SanitizeInput(req.Name, 200),
		security.SanitizeInput(req.AMCName, 200),
	))
}

// CheckAlerts lists regulator warnings for an entity
func (h *Handler) CheckAlerts(c *gin.Context) {
	name := security.SanitizeInput(c.Query("name"), 200)
	if strings.TrimSpace(name) == "" {
		common.ErrorResponse(c, http.StatusBadRequest, "name is required")
		return
	}

	common.SuccessResponse(c, "alerts", h.service.CheckAlerts(name))
}

// RegisterRoutes registers registry routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	verify := rg.Group("/verify")
	{
		verify.POST("/advisor", h.VerifyAdvisor)
		verify.POST("/broker", h.VerifyBroker)
		verify.POST("/fund", h.VerifyFund)
		verify.GET("/alerts", h.CheckAlerts)
	}
}
