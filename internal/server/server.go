// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jeranaias/llumdocs/internal/config"
	"github.com/jeranaias/llumdocs/internal/detect"
	"github.com/jeranaias/llumdocs/internal/docextract"
	"github.com/jeranaias/llumdocs/internal/email"
	"github.com/jeranaias/llumdocs/internal/router"
	"github.com/jeranaias/llumdocs/internal/service"
	"github.com/jeranaias/llumdocs/internal/storage"
	"github.com/jeranaias/llumdocs/internal/telemetry"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// Version is the API version reported by /health.
	Version = "0.1.0"

	// multipartOverhead is added to the image limit when parsing forms.
	multipartOverhead = 1 << 20

	healthProbeTimeout = 2 * time.Second
)

// ============================================================================
// BACKEND
// ============================================================================

// Backend is one consistent set of feature services built from a single
// configuration snapshot. Handlers load it once per request.
type Backend struct {
	Config    *config.Config
	Resolver  *router.Resolver
	Features  *service.Service
	Extractor *docextract.Extractor
	Email     *email.Service
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the LlumDocs HTTP API.
type Server struct {
	backend atomic.Pointer[Backend]

	router  chi.Router
	server  *http.Server
	addr    string
	started time.Time

	history *storage.Store
	metrics *telemetry.Metrics
	usage   *telemetry.UsageTracker
	prober  *detect.Prober
	logger  *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and lifecycle logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHistory exposes the invocation history under /api/history.
func WithHistory(store *storage.Store) Option {
	return func(s *Server) { s.history = store }
}

// WithMetrics serves /metrics and counts requests per route.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithUsage exposes token usage and cost under /api/usage.
func WithUsage(u *telemetry.UsageTracker) Option {
	return func(s *Server) { s.usage = u }
}

// WithProber adds host and GPU details to /health.
func WithProber(p *detect.Prober) Option {
	return func(s *Server) { s.prober = p }
}

// New creates a server around backend. Listen address, CORS origins, rate
// limit and body limit are read from backend.Config once; later backends
// only change the feature services.
func New(backend *Backend, opts ...Option) (*Server, error) {
	if backend == nil || backend.Config == nil || backend.Features == nil || backend.Resolver == nil {
		return nil, errors.New("server: backend needs config, resolver and features")
	}
	s := &Server{
		addr:    backend.Config.Server.Listen,
		started: time.Now(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.backend.Store(backend)
	s.setupRoutes(backend.Config.Server)
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// SetBackend swaps the feature services, typically after a config reload.
// Requests already running keep the backend they started with.
func (s *Server) SetBackend(b *Backend) {
	if b == nil {
		return
	}
	s.backend.Store(b)
	s.logger.Info("BACKEND_SWAPPED",
		zap.Bool("ollama", b.Config.OllamaEnabled()),
		zap.Bool("hosted", b.Config.HostedEnabled()))
}

// Backend returns the current backend.
func (s *Server) Backend() *Backend {
	return s.backend.Load()
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) setupRoutes(cfg config.ServerConfig) {
	r := chi.NewRouter()
	r.Use(
		RecoveryMiddleware(s.logger),
		RequestIDMiddleware(),
		SecurityHeadersMiddleware(),
		CORSMiddleware(DefaultCORSConfig(cfg.CORSOrigins)),
		LoggingMiddleware(s.logger, s.observeRequest),
		RateLimitMiddleware(NewRateLimiter(cfg.RateLimitPerMinute)),
		BodyLimitMiddleware(cfg.MaxBodyBytes),
	)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/models", s.handleModels)
		r.Post("/translate", s.handleTranslate)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/summarize", s.handleSummarize)
			r.Post("/extract", s.handleExtract)
		})
		r.Route("/text", func(r chi.Router) {
			r.Post("/plain", s.handlePlain)
			r.Post("/technical", s.handleTechnical)
			r.Post("/company-tone", s.handleCompanyTone)
			r.Post("/keywords", s.handleKeywords)
		})
		r.Post("/images/describe", s.handleDescribeImage)
		r.Post("/email/analyze", s.handleEmailAnalyze)

		r.Get("/history", s.handleHistory)
		r.Get("/history/stats", s.handleHistoryStats)
		r.Get("/usage", s.handleUsage)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, TypeInvalidRequest, "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, TypeInvalidRequest, "Method not allowed", nil)
	})
	s.router = r
}

func (s *Server) observeRequest(r *http.Request, status int) {
	if s.metrics == nil {
		return
	}
	route := "unmatched"
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			route = p
		}
	}
	s.metrics.ObserveRequest(route, status)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address and blocks until the server is
// shut down. It returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	s.logger.Info("SERVER_START", zap.String("addr", s.addr), zap.String("version", Version))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("SERVER_SHUTDOWN", zap.Duration("uptime", time.Since(s.started)))
	return s.server.Shutdown(ctx)
}
