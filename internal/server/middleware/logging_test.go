package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/peersync/internal/metrics"
)

func newLogBuffer() (*bytes.Buffer, *slog.Logger) {
	var buf bytes.Buffer
	return &buf, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func replyWith(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestLoggingMiddleware_Levels(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		path      string
		status    int
		wantLevel string
	}{
		{name: "record read", method: http.MethodGet, path: "/api/v1/records/notes/today", status: http.StatusOK, wantLevel: "level=INFO"},
		{name: "sync accepted", method: http.MethodPost, path: "/api/v1/sync", status: http.StatusAccepted, wantLevel: "level=INFO"},
		{name: "version conflict", method: http.MethodPut, path: "/api/v1/records/a", status: http.StatusConflict, wantLevel: "level=WARN"},
		{name: "peer unreachable", method: http.MethodPost, path: "/api/v1/sync", status: http.StatusBadGateway, wantLevel: "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, logger := newLogBuffer()
			handler := LoggingMiddleware(logger)(replyWith(tt.status, "{}"))

			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.RemoteAddr = "127.0.0.1:50000"
			req.Header.Set("User-Agent", "peersync-cli")
			req.Header.Set("Authorization", "Bearer secret-token")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			out := buf.String()
			assert.Contains(t, out, tt.wantLevel)
			assert.Contains(t, out, "method="+tt.method)
			assert.Contains(t, out, "path="+tt.path)
			assert.Contains(t, out, "user_agent=peersync-cli")
			assert.NotContains(t, out, "secret-token")
		})
	}
}

func TestLoggingMiddleware_ResponseSizeAndMetrics(t *testing.T) {
	buf, logger := newLogBuffer()
	handler := LoggingMiddleware(logger)(replyWith(http.StatusOK, `{"records":[]}`))

	counter := metrics.APIRequests.WithLabelValues(http.MethodGet, "/api/v1/audit/{id}", "200")
	before := testutil.ToFloat64(counter)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/audit/notes/a", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/audit/notes/b", nil))

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
	assert.Contains(t, buf.String(), "bytes_written=14")
	assert.Contains(t, buf.String(), "duration_ms=")
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "collection", input: "/api/v1/records", expected: "/api/v1/records"},
		{name: "record id", input: "/api/v1/records/notes", expected: "/api/v1/records/{id}"},
		{name: "record id with slashes", input: "/api/v1/records/notes/2024/a", expected: "/api/v1/records/{id}"},
		{name: "audit", input: "/api/v1/audit/notes", expected: "/api/v1/audit/{id}"},
		{name: "session action", input: "/api/v1/sessions/abc/cancel", expected: "/api/v1/sessions/{id}/cancel"},
		{name: "peer pin", input: "/api/v1/peers/6f1c/pin", expected: "/api/v1/peers/{id}/pin"},
		{name: "status", input: "/api/v1/status", expected: "/api/v1/status"},
		{name: "metrics", input: "/metrics", expected: "/metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, routeLabel(tt.input))
		})
	}
}

func TestLoggingWithSkip(t *testing.T) {
	buf, logger := newLogBuffer()
	handler := LoggingWithSkip(logger, []string{"/api/v1/health", "/metrics"})(replyWith(http.StatusOK, "ok"))

	for _, path := range []string{"/api/v1/health", "/metrics"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Empty(t, buf.String())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/peers", nil))
	assert.Contains(t, buf.String(), "path=/api/v1/peers")
}

func TestResponseWriter(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}

	_, err := rw.Write([]byte("buy "))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rw.statusCode)

	rw.WriteHeader(http.StatusTeapot)
	_, err = rw.Write([]byte("milk"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusTeapot, rw.statusCode)
	assert.Equal(t, int64(8), rw.written)
}
