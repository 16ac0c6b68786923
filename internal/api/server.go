// Package api exposes the tag and notebook tree models over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/d1vanov/quentier-sub007/internal/domain"
	"github.com/d1vanov/quentier-sub007/internal/http/response"
	"github.com/d1vanov/quentier-sub007/internal/logger"
	"github.com/d1vanov/quentier-sub007/internal/model"
	"github.com/d1vanov/quentier-sub007/internal/notebookmodel"
	"github.com/d1vanov/quentier-sub007/internal/ratelimit"
	"github.com/d1vanov/quentier-sub007/internal/runloop"
	"github.com/d1vanov/quentier-sub007/internal/sse"
	"github.com/d1vanov/quentier-sub007/internal/tagmodel"
)

// Storage accepts writes that bypass the models, as a sync engine or another
// client of the same storage would make them. The models learn about them
// through backend notifications.
type Storage interface {
	PutLinkedNotebook(ln domain.LinkedNotebook)
	ExpungeLinkedNotebook(guid string)
	PutNote(note domain.Note)
	ExpungeNote(localID string)
	ExternalUpdateTag(tag domain.Tag)
	ExternalExpungeTag(localID string)
	ExternalUpdateNotebook(nb domain.Notebook)
	ExternalExpungeNotebook(localID string)
}

// Config holds the dependencies of a Server. Storage, SSE, Gatherer and
// Limiter are optional.
type Config struct {
	Loop           *runloop.Loop
	Tags           *tagmodel.Model
	Notebooks      *notebookmodel.Model
	Storage        Storage
	SSE            *sse.Manager
	Gatherer       prometheus.Gatherer
	Limiter        *ratelimit.KeyedRateLimiter
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	loop       *runloop.Loop
	tags       *tagmodel.Model
	notebooks  *notebookmodel.Model
	storage    Storage
	sseManager *sse.Manager
	gatherer   prometheus.Gatherer
	limiter    *ratelimit.KeyedRateLimiter
	origins    []string
	router     *chi.Mux
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(cfg Config) *Server {
	s := &Server{
		loop:       cfg.Loop,
		tags:       cfg.Tags,
		notebooks:  cfg.Notebooks,
		storage:    cfg.Storage,
		sseManager: cfg.SSE,
		gatherer:   cfg.Gatherer,
		limiter:    cfg.Limiter,
		origins:    cfg.AllowedOrigins,
		router:     chi.NewRouter(),
		logger:     logger.OrDiscard(cfg.Logger),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealthCheck)

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		if s.sseManager != nil {
			r.Get("/events", sse.NewHandler(s.sseManager, s.logger).ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.limitMutations)

			r.Route("/tags", func(r chi.Router) {
				tags := newTreeRoutes(s, s.tags)
				tags.mount(r)
				r.Post("/{id}/promote", tags.handlePromote)
				r.Post("/{id}/demote", tags.handleDemote)
				r.Post("/{id}/move", tags.handleMoveToParent)
				r.Delete("/{id}/parent", tags.handleRemoveFromParent)
			})

			r.Route("/notebooks", func(r chi.Router) {
				notebooks := newTreeRoutes(s, s.notebooks)
				notebooks.mount(r)
				r.Get("/stacks", notebooks.handleListStacks)
				r.Post("/stacks/rename", notebooks.handleRenameStack)
				r.Post("/{id}/stack", notebooks.handleMoveToStack)
				r.Delete("/{id}/stack", notebooks.handleRemoveFromStack)
			})

			if s.storage != nil {
				r.Route("/storage", s.mountStorage)
			}
		})
	})
}

// requestLogger logs each request once it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// limitMutations rate limits every request that may change state.
func (s *Server) limitMutations(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	limited := s.limiter.Middleware(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Warn("Rate limit exceeded",
			"ip", ratelimit.ClientIP(r),
			"path", r.URL.Path,
		)
		response.TooManyRequests(w, "Too many requests. Please try again later.", s.logger)
	})(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			limited.ServeHTTP(w, r)
		}
	})
}

// handleError writes err, reporting an unavailable run loop as 503.
func (s *Server) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, runloop.ErrStopped):
		response.Error(w, http.StatusServiceUnavailable, "models are shutting down", s.logger)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		response.Error(w, http.StatusServiceUnavailable, "request abandoned", s.logger)
	default:
		response.HandleError(w, err, s.logger)
	}
}

// sortOrders maps request values to sort orders.
var sortOrders = map[string]model.SortOrder{
	"":     model.Ascending,
	"asc":  model.Ascending,
	"desc": model.Descending,
}
