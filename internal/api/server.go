// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the size-fit engine over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"

	"github.com/ManuGH/vid2gif/internal/api/middleware"
	"github.com/ManuGH/vid2gif/internal/health"
	"github.com/ManuGH/vid2gif/internal/sizefit"
)

// Fitter runs one size-fit search. *sizefit.Controller implements it.
type Fitter interface {
	Fit(ctx context.Context, req sizefit.Request) sizefit.Outcome
}

// Config is the transport's slice of the application configuration.
type Config struct {
	WorkDir           string
	CeilingBytes      int64
	MaxInputBytes     int64
	MaxConcurrentJobs int
	RequestTimeout    time.Duration // 0 leaves the request context alone
	RateLimitRequests int           // 0 disables
	RateLimitWindow   time.Duration
	TracingService    string // empty disables HTTP spans
}

// Server routes conversion, health and metrics requests.
type Server struct {
	cfg    Config
	fitter Fitter
	health *health.Manager
	slots  *semaphore.Weighted
	router chi.Router
}

// New builds the router. health may be nil, in which case liveness and
// readiness answer from an empty manager.
func New(cfg Config, fitter Fitter, hm *health.Manager) *Server {
	if cfg.MaxConcurrentJobs < 1 {
		cfg.MaxConcurrentJobs = 1
	}
	if hm == nil {
		hm = health.NewManager("")
	}
	s := &Server{
		cfg:    cfg,
		fitter: fitter,
		health: hm,
		slots:  semaphore.NewWeighted(int64(cfg.MaxConcurrentJobs)),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: s.cfg.TracingService,
		EnableLogging:  true,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(middleware.RateLimitConfig{
			RequestLimit: s.cfg.RateLimitRequests,
			WindowSize:   s.cfg.RateLimitWindow,
		})).Post("/convert", s.handleConvert)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not supported here")
	})
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
