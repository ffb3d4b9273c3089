package middleware

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newLimiter(t *testing.T, burst, maxKeys int) *RateLimiter {
	t.Helper()
	// пополнение практически отсутствует, тест определяется только burst
	l, err := NewRateLimiter(rate.Limit(0.0001), burst, maxKeys)
	require.NoError(t, err)
	return l
}

func TestRateLimiter_Allow(t *testing.T) {
	t.Run("requests within burst are allowed", func(t *testing.T) {
		limiter := newLimiter(t, 5, 0)
		for i := 0; i < 5; i++ {
			assert.True(t, limiter.Allow("192.168.1.1"), fmt.Sprintf("request %d should be allowed", i+1))
		}
	})

	t.Run("requests over burst are denied", func(t *testing.T) {
		limiter := newLimiter(t, 3, 0)
		for i := 0; i < 3; i++ {
			assert.True(t, limiter.Allow("192.168.1.2"))
		}
		assert.False(t, limiter.Allow("192.168.1.2"), "request over limit should be denied")
	})

	t.Run("different keys are tracked separately", func(t *testing.T) {
		limiter := newLimiter(t, 2, 0)

		assert.True(t, limiter.Allow("a"))
		assert.True(t, limiter.Allow("a"))
		assert.False(t, limiter.Allow("a"), "a over limit")

		assert.True(t, limiter.Allow("b"))
		assert.True(t, limiter.Allow("b"))
		assert.False(t, limiter.Allow("b"), "b over limit")
	})

	t.Run("least recently used key is evicted", func(t *testing.T) {
		limiter := newLimiter(t, 1, 2)

		assert.True(t, limiter.Allow("a"))
		assert.False(t, limiter.Allow("a"))
		assert.True(t, limiter.Allow("b"))
		assert.True(t, limiter.Allow("c")) // вытесняет a
		assert.Equal(t, 2, limiter.Len())

		assert.True(t, limiter.Allow("a"), "evicted key starts with a fresh bucket")
	})

	t.Run("infinite limit never blocks", func(t *testing.T) {
		limiter, err := NewRateLimiter(rate.Inf, 1, 0)
		require.NoError(t, err)
		for i := 0; i < 100; i++ {
			require.True(t, limiter.Allow("x"))
		}
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := newLimiter(t, 2, 0)

	handler := RateLimitMiddleware(limiter, logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do("127.0.0.1:5000").Code)
	assert.Equal(t, http.StatusOK, do("127.0.0.1:5001").Code)

	w := do("127.0.0.1:5002")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "rate limit exceeded")

	assert.Equal(t, http.StatusOK, do("10.0.0.1:5000").Code, "other client is not limited")
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{name: "ipv4 with port", remoteAddr: "192.168.1.100:12345", want: "192.168.1.100"},
		{name: "ipv6 with port", remoteAddr: "[::1]:8080", want: "::1"},
		{name: "no port", remoteAddr: "192.168.1.100", want: "192.168.1.100"},
		{name: "forwarded header ignored", remoteAddr: "127.0.0.1:1", forwarded: "203.0.113.1", want: "127.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
