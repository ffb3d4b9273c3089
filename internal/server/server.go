// Package server собирает локальный управляющий HTTP API узла.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/iudanet/peersync/internal/metrics"
	"github.com/iudanet/peersync/internal/server/handlers"
	"github.com/iudanet/peersync/internal/server/middleware"
)

// Config параметры управляющего API
type Config struct {
	Version   string
	NodeID    string
	RateLimit float64 // запросов в секунду на адрес, 0 - без ограничения
	RateBurst int
}

// Deps сервисы узла, которые обслуживает API
type Deps struct {
	Records   handlers.RecordStore
	Peers     handlers.PeerDirectory
	Conns     handlers.ConnectionLister
	Engine    handlers.SyncController
	Validator middleware.TokenValidator
	Status    handlers.StatusDeps
}

// Server HTTP сервер управляющего API
type Server struct {
	logger  *slog.Logger
	handler http.Handler
	srv     *http.Server
}

// New создает сервер и регистрирует маршруты
func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	limiter, err := middleware.NewRateLimiter(limit, burst, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	health := handlers.NewHealthHandler(logger, deps.Status.Clock, cfg.Version, cfg.NodeID)
	records := handlers.NewRecordHandler(logger, deps.Records)
	peers := handlers.NewPeerHandler(logger, deps.Peers, deps.Conns)
	syncs := handlers.NewSyncHandler(logger, deps.Engine)

	statusDeps := deps.Status
	statusDeps.Records = deps.Records
	statusDeps.Peers = deps.Peers
	statusDeps.Conns = deps.Conns
	statusDeps.Engine = deps.Engine
	status := handlers.NewStatusHandler(logger, statusDeps)

	protected := http.NewServeMux()
	protected.HandleFunc("GET /api/v1/status", status.Status)
	protected.HandleFunc("GET /api/v1/export", status.Export)

	protected.HandleFunc("GET /api/v1/records", records.List)
	protected.HandleFunc("GET /api/v1/records/{id...}", records.Get)
	protected.HandleFunc("PUT /api/v1/records/{id...}", records.Put)
	protected.HandleFunc("DELETE /api/v1/records/{id...}", records.Delete)
	protected.HandleFunc("GET /api/v1/audit/{id...}", records.Audit)

	protected.HandleFunc("GET /api/v1/peers", peers.List)
	protected.HandleFunc("POST /api/v1/peers/{id}/pin", peers.Pin)

	protected.HandleFunc("POST /api/v1/sync", syncs.Sync)
	protected.HandleFunc("GET /api/v1/sessions", syncs.Sessions)
	protected.HandleFunc("GET /api/v1/sessions/{id}", syncs.Session)
	protected.HandleFunc("POST /api/v1/sessions/{id}/cancel", syncs.Cancel)
	protected.HandleFunc("POST /api/v1/sessions/{id}/resume", syncs.Resume)
	protected.HandleFunc("GET /api/v1/config", syncs.Config)
	protected.HandleFunc("PUT /api/v1/config", syncs.UpdateConfig)

	root := http.NewServeMux()
	root.HandleFunc("GET /api/v1/health", health.Health)
	root.Handle("GET /metrics", metrics.Handler())
	root.Handle("/api/v1/", middleware.AuthMiddleware(logger, deps.Validator, cfg.NodeID)(protected))

	var h http.Handler = root
	h = middleware.RateLimitMiddleware(limiter, logger)(h)
	h = middleware.LoggingWithSkip(logger, []string{"/api/v1/health", "/metrics"})(h)
	h = middleware.RecoveryMiddleware(logger)(h)

	return &Server{
		logger:  logger,
		handler: h,
		srv: &http.Server{
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}, nil
}

// Handler возвращает корневой handler со всеми middleware
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve обслуживает запросы до отмены ctx
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("control api shutdown", "error", err)
		}
	})
	defer stop()

	s.logger.Info("control api listening", "address", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve control api: %w", err)
	}
	return nil
}
