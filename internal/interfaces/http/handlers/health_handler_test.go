package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serveHealth(h *HealthHandler, path string) *httptest.ResponseRecorder {
	r := gin.New()
	h.RegisterRoutes(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthHandler_Liveness(t *testing.T) {
	w := serveHealth(NewHealthHandler("1.2.3"), "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestHealthHandler_ReadinessNoCheckers(t *testing.T) {
	w := serveHealth(NewHealthHandler("dev"), "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ready"`)
}

func TestHealthHandler_ReadinessAllHealthy(t *testing.T) {
	ok := NewCheckerFunc("postgres", func(context.Context) error { return nil })
	w := serveHealth(NewHealthHandler("dev", ok), "/readyz")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Components["postgres"].Status)
}

func TestHealthHandler_ReadinessUnhealthy(t *testing.T) {
	ok := NewCheckerFunc("redis", func(context.Context) error { return nil })
	down := NewCheckerFunc("neo4j", func(context.Context) error { return errors.New("connection refused") })
	w := serveHealth(NewHealthHandler("dev", ok, down), "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "unhealthy", resp.Components["neo4j"].Status)
	assert.Equal(t, "connection refused", resp.Components["neo4j"].Error)
	assert.Equal(t, "healthy", resp.Components["redis"].Status)
}
