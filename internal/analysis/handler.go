package analysis

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/trustx/internal/risk"
	"github.com/richxcame/trustx/pkg/common"
	"github.com/richxcame/trustx/pkg/logger"
	"github.com/richxcame/trustx/pkg/middleware"
	"github.com/richxcame/trustx/pkg/storage"
	"github.com/richxcame/trustx/pkg/validation"
	"go.uber.org/zap"
)

// MaxImageBytes caps uploaded images
const MaxImageBytes = 8 << 20

// fileFields are the multipart field names accepted for uploads, in order.
var fileFields = []string{"file", "image", "qr_image"}

// Handler handles HTTP requests for analyses
type Handler struct {
	service *Service
}

// NewHandler creates a new analysis handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Detect analyses a text, url, image, qr or advisor submission
func (h *Handler) Detect(c *gin.Context) {
	var req DetectRequest
	var image []byte
	var imageType string

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		err := c.ShouldBind(&req)
		if err == nil {
			err = validation.ValidateStruct(&req)
		}
		if err != nil {
			middleware.RespondWithValidationError(c, err)
			return
		}
		if image, imageType, err = readUpload(c); err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
	} else if !middleware.ValidateAndBind(c, &req) {
		return
	}

	kind, err := risk.ParseInputKind(req.Type)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid input type")
		return
	}

	in := Input{
		Kind:        kind,
		Content:     req.Content,
		URL:         req.URL,
		AdvisorName: req.AdvisorName,
		AdvisorID:   req.AdvisorID,
		Image:       image,
		ImageType:   imageType,
		ClientIP:    c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	}
	if req.SessionID != "" {
		id := uuid.MustParse(req.SessionID)
		in.SessionID = &id
	}

	result, err := h.service.Detect(c.Request.Context(), in)
	if err != nil {
		appErr := common.AsAppError(err)
		if appErr.Code >= http.StatusInternalServerError {
			logger.WithContext(c.Request.Context()).Error("analysis failed", zap.String("input_kind", string(kind)), zap.Error(err))
		}
		common.AppErrorResponse(c, appErr)
		return
	}

	common.SuccessResponse(c, "analysis", result)
}

// readUpload returns the first uploaded file and its sniffed content type.
func readUpload(c *gin.Context) ([]byte, string, error) {
	var header *multipart.FileHeader
	for _, field := range fileFields {
		if fh, err := c.FormFile(field); err == nil {
			header = fh
			break
		}
	}
	if header == nil {
		return nil, "", nil
	}
	if header.Size > MaxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", MaxImageBytes)
	}

	f, err := header.Open()
	if err != nil {
		return nil, "", errors.New("failed to read uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		return nil, "", errors.New("failed to read uploaded file")
	}
	if len(data) > MaxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", MaxImageBytes)
	}

	mimeType := http.DetectContentType(data)
	if mimeType == "application/octet-stream" {
		mimeType = storage.GetMimeTypeFromExtension(header.Filename)
	}
	return data, mimeType, nil
}

// GetHistory lists recent analyses
func (h *Handler) GetHistory(c *gin.Context) {
	var q HistoryQuery
	if !middleware.ValidateAndBindQuery(c, &q) {
		return
	}

	var sessionID *uuid.UUID
	if q.SessionID != "" {
		id := uuid.MustParse(q.SessionID)
		sessionID = &id
	}

	records, err := h.service.GetHistory(c.Request.Context(), sessionID, q.Limit)
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("failed to get history", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to get history")
		return
	}

	common.SuccessResponse(c, "history", records)
}

// GetDashboard returns regulator dashboard statistics
func (h *Handler) GetDashboard(c *gin.Context) {
	stats, err := h.service.GetDashboard(c.Request.Context())
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("failed to get dashboard stats", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to get statistics")
		return
	}

	common.SuccessResponse(c, "statistics", stats)
}

// ExportDashboard downloads dashboard statistics as json or csv
func (h *Handler) ExportDashboard(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", ExportJSON))
	if format != ExportJSON && format != ExportCSV {
		common.ErrorResponse(c, http.StatusBadRequest, "format must be json or csv")
		return
	}

	stats, err := h.service.GetDashboard(c.Request.Context())
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("failed to export dashboard stats", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to export statistics")
		return
	}

	filename := fmt.Sprintf("trustx-dashboard-%s.%s", stats.LastUpdated.UTC().Format("20060102T150405Z"), format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if format == ExportJSON {
		common.SuccessResponse(c, "statistics", stats)
		return
	}

	var buf bytes.Buffer
	if err := stats.WriteCSV(&buf); err != nil {
		logger.WithContext(c.Request.Context()).Error("failed to encode dashboard csv", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to export statistics")
		return
	}
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// CreateSession starts an analysis session
func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if !middleware.ValidateAndBind(c, &req) {
			return
		}
	}

	session, err := h.service.CreateSession(c.Request.Context(), req.UserType, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		logger.WithContext(c.Request.Context()).Error("failed to create session", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to create session")
		return
	}

	common.CreatedResponse(c, "session", session)
}

// GetSession returns a session summary
func (h *Handler) GetSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid session id")
		return
	}

	summary, err := h.service.GetSessionSummary(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			common.ErrorResponse(c, http.StatusNotFound, "session not found")
			return
		}
		logger.WithContext(c.Request.Context()).Error("failed to get session", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to get session")
		return
	}

	common.SuccessResponse(c, "session", summary)
}

// RegisterRoutes registers analysis routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/detect", h.Detect)
	rg.GET("/history", h.GetHistory)
	rg.GET("/stats/dashboard", h.GetDashboard)
	rg.GET("/stats/dashboard/export", h.ExportDashboard)

	sessions := rg.Group("/sessions")
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("/:id", h.GetSession)
	}
}
