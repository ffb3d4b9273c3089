package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/peersync/internal/server/token"
)

type contextKey string

// NodeIDKey ключ id узла из токена в контексте запроса
const NodeIDKey contextKey = "node_id"

// NodeIDFromContext извлекает id узла, установленный AuthMiddleware
func NodeIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(NodeIDKey).(string)
	return id, ok
}

// TokenValidator проверяет bearer токен
type TokenValidator interface {
	Validate(tokenString string) (*token.Claims, error)
}

// AuthMiddleware создает middleware для проверки bearer токена.
// Токен должен быть выпущен для локального узла.
func AuthMiddleware(logger *slog.Logger, validator TokenValidator, nodeID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("missing Authorization header", "path", r.URL.Path)
				unauthorized(w, "missing token")
				return
			}

			// Ожидаем формат: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("invalid Authorization header format")
				unauthorized(w, "invalid token format")
				return
			}

			claims, err := validator.Validate(parts[1])
			if err != nil {
				logger.Warn("invalid access token", "error", err)
				unauthorized(w, "invalid token")
				return
			}
			if claims.NodeID != nodeID {
				logger.Warn("token issued for another node", "token_node_id", claims.NodeID)
				unauthorized(w, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), NodeIDKey, claims.NodeID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized: ` + msg + `"}`))
}
