// Package server exposes the deal analyzer over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deal-analyzer/internal/admission/ratelimit"
	"deal-analyzer/internal/common/auth"
	"deal-analyzer/internal/common/config"
	"deal-analyzer/internal/common/logger"
	"deal-analyzer/internal/models"
	"deal-analyzer/internal/resolver"
)

// Analyzer is the orchestrator as seen by the API.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error)
	Criteria(ctx context.Context) resolver.CriteriaResolution
}

type Admitter interface {
	Admit(ctx context.Context, tier, identity string) (ratelimit.Result, error)
}

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.TokenInfo, error)
}

// ReadinessCheck is run by GET /ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Options struct {
	// Admission nil disables rate limiting.
	Admission Admitter
	// Auth nil disables bearer token validation.
	Auth        TokenValidator
	Checks      []ReadinessCheck
	CORSOrigins []string
	Version     string
}

type Server struct {
	router    chi.Router
	analyzer  Analyzer
	admission Admitter
	auth      TokenValidator
	checks    []ReadinessCheck
	version   string
	logger    logger.Logger
}

func New(analyzer Analyzer, opts Options, log logger.Logger) *Server {
	s := &Server{
		analyzer:  analyzer,
		admission: opts.Admission,
		auth:      opts.Auth,
		checks:    opts.Checks,
		version:   opts.Version,
		logger:    log.WithFields(map[string]interface{}{"component": "http"}),
	}
	s.router = s.buildRouter(opts.CORSOrigins)
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter(origins []string) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", HeaderLimit, HeaderRemaining, HeaderReset, HeaderRetryAfter},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.With(s.rateLimit(config.TierExpensive)).Post("/analyses", s.handleAnalyze)
		r.With(s.rateLimit(config.TierGeneral)).Post("/analyses/preview", s.handlePreview)
		r.With(s.rateLimit(config.TierGeneral)).Get("/criteria", s.handleCriteria)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	httpSrv := &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", map[string]interface{}{"address": cfg.Address})
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
