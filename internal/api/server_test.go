package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"exconnect/internal/api/health"
	"exconnect/pkg/logger"
)

func TestServerRoutes(t *testing.T) {
	h := health.New(logger.Nop(), "exconnect", "1.0")
	srv := NewServer(ServerConfig{ServiceName: "exconnect", Version: "1.0"}, h, logger.Nop())

	tests := []struct {
		path string
		code int
	}{
		{"/", http.StatusOK},
		{"/live", http.StatusOK},
		{"/ready", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.JSONEq(t, `{"service":"exconnect","version":"1.0","status":"running"}`, rec.Body.String())
}
