package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/legalrag-core/internal/adapters/driven/auth"
	"github.com/custodia-labs/legalrag-core/internal/core/ports/driven"
	"github.com/custodia-labs/legalrag-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP boundary for the index/analyze/history surface.
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	indexer   driving.IndexerService
	analyzer  driving.AnalyzeService
	history   driving.HistoryService

	cache     driven.KVStore // optional; nil disables /admin/cache/clear
	db        Pinger         // PostgreSQL health check
	redisConn Pinger         // Redis health check

	auth *auth.TokenParser

	maxUploadBytes int64
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	Version        string
	JWTSecret      string
	MaxUploadBytes int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		MaxUploadBytes: 20 << 20,
	}
}

// NewServer builds a Server wired to its driving services and the driven
// ports needed for health checks and cache administration.
func NewServer(
	cfg Config,
	indexer driving.IndexerService,
	analyzer driving.AnalyzeService,
	history driving.HistoryService,
	cache driven.KVStore,
	db Pinger,
	redisConn Pinger,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultConfig().MaxUploadBytes
	}

	s := &Server{
		router:         http.NewServeMux(),
		version:        cfg.Version,
		logger:         logger,
		indexer:        indexer,
		analyzer:       analyzer,
		history:        history,
		cache:          cache,
		db:             db,
		redisConn:      redisConn,
		auth:           auth.NewTokenParser(cfg.JWTSecret),
		maxUploadBytes: maxUpload,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.wrap(s.router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // analyze calls an LLM; allow headroom
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// wrap applies ambient middleware in the teacher's recovery-then-logging-
// then-CORS order, outermost first.
func (s *Server) wrap(h http.Handler) http.Handler {
	h = NewCORSMiddleware([]string{"*"}).Handler(h)
	h = NewLoggingMiddleware(s.logger).Handler(h)
	h = NewRecoveryMiddleware(s.logger).Handler(h)
	return h
}

func (s *Server) setupRoutes() {
	authMW := NewAuthMiddleware(s.auth)

	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.Handle("GET /metrics", metricsHandler())

	s.router.Handle("POST /v1/index", authMW.Authenticate(http.HandlerFunc(s.handleIndex)))
	s.router.Handle("POST /v1/analyze", authMW.Authenticate(http.HandlerFunc(s.handleAnalyze)))
	s.router.Handle("GET /v1/history/{documentId}", authMW.Authenticate(http.HandlerFunc(s.handleHistory)))

	s.router.Handle("POST /admin/cache/clear", authMW.Authenticate(http.HandlerFunc(s.handleCacheClear)))
}

// Start runs the HTTP server until an interrupt or SIGTERM, then shuts it
// down gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}

	s.logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Stop shuts the server down using the caller's context.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
