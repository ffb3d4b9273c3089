package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// defaultMaxKeys сколько клиентов отслеживается одновременно
const defaultMaxKeys = 1024

// RateLimiter ограничивает частоту запросов по ключу (адресу клиента).
// Token bucket на ключ из x/time/rate, неактивные ключи вытесняются LRU.
type RateLimiter struct {
	limiters *lru.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
}

// NewRateLimiter создает limiter: limit запросов в секунду, burst - размер всплеска
func NewRateLimiter(limit rate.Limit, burst, maxKeys int) (*RateLimiter, error) {
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}
	cache, err := lru.New[string, *rate.Limiter](maxKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to create limiter cache: %w", err)
	}
	return &RateLimiter{
		limiters: cache,
		limit:    limit,
		burst:    burst,
	}, nil
}

// Allow проверяет, разрешен ли запрос для данного ключа
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	l, ok := rl.limiters.Get(key)
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters.Add(key, l)
	}
	rl.mu.Unlock()

	return l.Allow()
}

// Len количество отслеживаемых ключей
func (rl *RateLimiter) Len() int {
	return rl.limiters.Len()
}

// RateLimitMiddleware создает middleware для ограничения частоты запросов
func RateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := getClientIP(r)

			if !limiter.Allow(key) {
				logger.Warn("rate limit exceeded",
					"ip", key,
					"method", r.Method,
					"path", r.URL.Path,
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded, please try again later"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP извлекает IP адрес клиента.
// API слушает локальный адрес без прокси, поэтому заголовки X-Forwarded-For не учитываются.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
