// Package api provides the HTTP surface of the media ingestion service.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amillerrr/media-ingest/internal/auth"
	"github.com/amillerrr/media-ingest/internal/config"
	"github.com/amillerrr/media-ingest/internal/health"
)

// Server configuration constants. Read/write timeouts accommodate video
// bodies up to 1 GiB streaming in over slow links.
const (
	ReadTimeout       = 30 * time.Minute
	ReadHeaderTimeout = 10 * time.Second
	WriteTimeout      = 31 * time.Minute
	IdleTimeout       = 120 * time.Second
	MaxHeaderBytes    = 1 << 20 // 1 MB
)

// Server represents the HTTP server for the API.
type Server struct {
	httpServer  *http.Server
	cfg         *config.Config
	log         *slog.Logger
	rateLimiter *auth.RateLimiter
}

// ServerConfig holds dependencies for the server.
type ServerConfig struct {
	Config        *config.Config
	Logger        *slog.Logger
	Ingester      Ingester
	Assets        AssetStore
	Presigner     Presigner
	JWTService    *auth.JWTService
	RateLimiter   *auth.RateLimiter
	HealthChecker *health.Checker
}

// NewServer creates a new API server.
func NewServer(cfg *ServerConfig) (*Server, error) {
	handlers := NewHandlers(&HandlersConfig{
		Config:      cfg.Config,
		Logger:      cfg.Logger,
		Ingester:    cfg.Ingester,
		Assets:      cfg.Assets,
		Presigner:   cfg.Presigner,
		JWTService:  cfg.JWTService,
		RateLimiter: cfg.RateLimiter,
	})

	mux := http.NewServeMux()

	// Public endpoints
	mux.HandleFunc("GET /health", cfg.HealthChecker.Handler())
	mux.HandleFunc("GET /health/deep", cfg.HealthChecker.DeepHandler())
	mux.HandleFunc("POST /login", handlers.LoginHandler)

	// Protected endpoints
	authMiddleware := cfg.JWTService.Middleware(cfg.RateLimiter)
	mux.HandleFunc("POST /api/assets", authMiddleware(handlers.CreateAssetHandler))
	mux.HandleFunc("GET /api/assets", authMiddleware(handlers.ListAssetsHandler))
	mux.HandleFunc("GET /api/assets/{assetID}", authMiddleware(handlers.GetAssetHandler))
	mux.HandleFunc("POST /api/assets/{assetID}/video", authMiddleware(handlers.UploadVideoHandler))
	mux.HandleFunc("POST /api/assets/{assetID}/thumbnail", authMiddleware(handlers.UploadThumbnailHandler))

	// Metrics endpoint (internal only)
	mux.Handle("GET /metrics", internalOnlyMiddleware(promhttp.Handler()))

	handler := CORSMiddleware(cfg.Config.CORS.AllowedOrigins)(MetricsMiddleware(mux))

	httpServer := &http.Server{
		Addr:              ":" + cfg.Config.API.Port,
		Handler:           handler,
		ReadTimeout:       ReadTimeout,
		ReadHeaderTimeout: ReadHeaderTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
		MaxHeaderBytes:    MaxHeaderBytes,
	}

	return &Server{
		httpServer:  httpServer,
		cfg:         cfg.Config,
		log:         cfg.Logger,
		rateLimiter: cfg.RateLimiter,
	}, nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("Starting API server", "port", s.cfg.API.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down API server...")

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	return s.httpServer.Shutdown(ctx)
}
