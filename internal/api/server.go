// Package api exposes reconciliation, ledger posting and reference
// operations over HTTP.
package api

import (
	"net/http"
	"time"

	"fjacquet/recon-ledger/internal/classifier"
	"fjacquet/recon-ledger/internal/ledger"
	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/metrics"
	"fjacquet/recon-ledger/internal/normalize"
	"fjacquet/recon-ledger/internal/reconciliation"
	"fjacquet/recon-ledger/internal/reference"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultRequestTimeout bounds a single request, batch runs included.
const DefaultRequestTimeout = 2 * time.Minute

// Deps are the services the handlers call.
type Deps struct {
	Orchestrator *reconciliation.Orchestrator
	Ledger       *ledger.Service
	Classifier   *classifier.Classifier
	Normalizer   *normalize.Normalizer
	References   *reference.Generator
	Metrics      *metrics.Metrics
	Logger       logging.Logger
}

// Server is the HTTP API server.
type Server struct {
	deps           Deps
	logger         logging.Logger
	metricsEnabled bool
	timeout        time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsEndpoint mounts /metrics.
func WithMetricsEndpoint(enabled bool) Option {
	return func(s *Server) { s.metricsEnabled = enabled }
}

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewServer creates a new API server.
func NewServer(deps Deps, opts ...Option) *Server {
	s := &Server{
		deps:    deps,
		logger:  logging.OrDefault(deps.Logger),
		timeout: DefaultRequestTimeout,
	}
	if s.deps.References == nil {
		s.deps.References = reference.NewGenerator()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/companies/{company}", func(r chi.Router) {
			r.Post("/reconcile", s.handleReconcile)
			r.Get("/suggestions", s.handleSuggestions)
			r.Get("/report", s.handleReport)
			r.Get("/aging", s.handleAging)
		})
		r.Route("/transactions/{id}", func(r chi.Router) {
			r.Post("/confirm", s.handleConfirm)
			r.Post("/reject", s.handleReject)
			r.Post("/undo", s.handleUndo)
		})
		r.Route("/ledger", func(r chi.Router) {
			r.Post("/preview", s.handlePreview)
			r.Post("/entries", s.handlePost)
			r.Get("/entries/{id}", s.handleGetEntry)
		})
		r.Post("/references", s.handleGenerateReference)
		r.Get("/references/{reference}", s.handleValidateReference)
		r.Post("/mappings/{counterparty}", s.handleSaveMapping)
		r.Get("/mappings", s.handleSearchMappings)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", s.deps.Metrics.Handler())
	}
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			logging.F("method", r.Method),
			logging.F("path", r.URL.Path),
			logging.F(logging.FieldStatus, ww.Status()),
			logging.F(logging.FieldDuration, time.Since(start).String()),
			logging.F("request_id", middleware.GetReqID(r.Context())))
	})
}
