// Package server exposes lesson analysis and the competency framework over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/nls-advisor/internal/analysis"
	"github.com/spigell/nls-advisor/internal/extract"
	"github.com/spigell/nls-advisor/internal/taxonomy"
)

const (
	defaultAddr            = ":8080"
	defaultRateLimitPerMin = 30
	defaultRequestTimeout  = 60 * time.Second
	shutdownTimeout        = 10 * time.Second
)

// Config is the server section of the application config.
type Config struct {
	Addr            string        `mapstructure:"addr"`
	RateLimitPerMin int           `mapstructure:"rate-limit-per-min" validate:"gte=0"`
	RequestTimeout  time.Duration `mapstructure:"request-timeout"`
	MaxUploadBytes  int64         `mapstructure:"max-upload-bytes" validate:"gte=0"`
}

// Analyzer runs one document through the analysis pipeline.
type Analyzer interface {
	Run(ctx context.Context, doc analysis.Document) (*analysis.Report, error)
}

type Server struct {
	cfg         Config
	analyzer    Analyzer
	table       *taxonomy.Table
	profiles    *taxonomy.Profiles
	defaultTier taxonomy.Tier
	logger      *zap.Logger
	metrics     *Metrics
	gatherer    prometheus.Gatherer
}

// New creates a Server. Metrics are registered with reg and served from it.
func New(cfg Config, analyzer Analyzer, table *taxonomy.Table, profiles *taxonomy.Profiles, defaultTier taxonomy.Tier, reg *prometheus.Registry, logger *zap.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.RateLimitPerMin <= 0 {
		cfg.RateLimitPerMin = defaultRateLimitPerMin
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MaxUploadBytes <= 0 || cfg.MaxUploadBytes > extract.MaxBytes {
		cfg.MaxUploadBytes = extract.MaxBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Server{
		cfg:         cfg,
		analyzer:    analyzer,
		table:       table,
		profiles:    profiles,
		defaultTier: defaultTier,
		logger:      logger,
		metrics:     NewMetrics(reg),
		gatherer:    reg,
	}
}

// Router builds the HTTP handler with all middlewares and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(s.logger))
	r.Use(s.metrics.Middleware)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(wr chi.Router) {
			wr.Use(httprate.LimitByIP(s.cfg.RateLimitPerMin, time.Minute))
			wr.Use(middleware.Timeout(s.cfg.RequestTimeout))
			wr.Post("/analyze", s.analyzeHandler)
		})

		v1.Get("/subjects", s.subjectsHandler)
		v1.Get("/competencies", s.competenciesHandler)
		v1.Get("/competencies/{tier}/{code}", s.competencyHandler)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
