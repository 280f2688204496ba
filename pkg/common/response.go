package common

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ErrorBody is the error part of a failed response
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Meta carries pagination info for list responses
type Meta struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}

// SuccessResponse writes {"status":"success", <key>: data, "timestamp": now}.
func SuccessResponse(c *gin.Context, key string, data interface{}) {
	SuccessResponseWithStatus(c, http.StatusOK, key, data)
}

// SuccessResponseWithStatus is SuccessResponse with an explicit status code.
func SuccessResponseWithStatus(c *gin.Context, statusCode int, key string, data interface{}) {
	c.JSON(statusCode, gin.H{
		"status":    StatusSuccess,
		key:         data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// SuccessResponseWithMeta writes a list payload plus pagination meta.
func SuccessResponseWithMeta(c *gin.Context, key string, data interface{}, meta *Meta) {
	c.JSON(http.StatusOK, gin.H{
		"status":    StatusSuccess,
		key:         data,
		"meta":      meta,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// CreatedResponse writes a 201 success response
func CreatedResponse(c *gin.Context, key string, data interface{}) {
	SuccessResponseWithStatus(c, http.StatusCreated, key, data)
}

// ErrorResponse writes {"status":"failed","error":{"code":..,"message":..}}.
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"status": StatusFailed,
		"error": ErrorBody{
			Code:    statusCode,
			Message: message,
		},
	})
}

// AppErrorResponse writes an AppError. Wrapped causes are never exposed.
func AppErrorResponse(c *gin.Context, err *AppError) {
	ErrorResponse(c, err.Code, err.Message)
}
