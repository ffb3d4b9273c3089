package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/peersync/pkg/api"
)

func TestHealthHandler_Health(t *testing.T) {
	clk := clock.NewMock()
	handler := NewHealthHandler(setupTestLogger(), clk, "1.2.3", "node-a")
	clk.Add(90 * time.Second)

	w := httptest.NewRecorder()
	handler.Health(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp api.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, api.HealthResponse{
		Status:   "ok",
		Version:  "1.2.3",
		NodeID:   "node-a",
		UptimeMs: 90_000,
	}, resp)
}

func TestHealthHandler_DefaultClock(t *testing.T) {
	handler := NewHealthHandler(setupTestLogger(), nil, "dev", "")

	w := httptest.NewRecorder()
	handler.Health(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotContains(t, w.Body.String(), "node_id")
}
