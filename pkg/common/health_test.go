package common

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestHealthCheck(t *testing.T) {
	router := gin.New()
	router.GET("/health", HealthCheck("trustx-api", "1.0.0"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "trustx-api", body["service"])
}

func TestHealthCheckWithDeps(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]func() error
		wantCode   int
		wantStatus string
	}{
		{
			name: "all healthy",
			checks: map[string]func() error{
				"database": func() error { return nil },
				"redis":    func() error { return nil },
			},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
		{
			name: "redis down",
			checks: map[string]func() error{
				"database": func() error { return nil },
				"redis":    func() error { return errors.New("connection refused") },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/health", HealthCheckWithDeps("trustx-api", "1.0.0", tt.checks))

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Len(t, body["checks"], len(tt.checks))
		})
	}
}
