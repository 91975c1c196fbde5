package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"autosales-dashboard/internal/charts"
	"autosales-dashboard/internal/errors"
	"autosales-dashboard/internal/handlers"
	"autosales-dashboard/internal/observability"
	"autosales-dashboard/internal/services"
)

type Server struct {
	router       chi.Router
	logger       *slog.Logger
	pageHandlers *handlers.PageHandlers
	apiHandlers  *handlers.APIHandlers
	sseHandlers  *handlers.SSEHandlers
}

func NewServer(reports *services.Reports, renderer *charts.Renderer, logger *slog.Logger) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		logger:       logger,
		pageHandlers: handlers.NewPageHandlers(reports, renderer, logger),
		apiHandlers:  handlers.NewAPIHandlers(reports, renderer, logger),
		sseHandlers:  handlers.NewSSEHandlers(reports, renderer, logger),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.NotFound(s.handleNotFound)
	s.router.MethodNotAllowed(s.handleMethodNotAllowed)

	// Dashboard routes
	s.router.Get("/", s.pageHandlers.HandleDashboard)
	s.router.Get("/health", s.apiHandlers.HandleHealth)
	s.router.Get("/admin/stats", s.apiHandlers.HandleStats)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/options", s.apiHandlers.HandleOptions)
		r.Get("/report", s.apiHandlers.HandleReport)
		r.Get("/charts/{index}", s.apiHandlers.HandleChart)
	})

	// Datastar SSE endpoints
	s.router.Route("/sse", func(r chi.Router) {
		r.Get("/options", s.sseHandlers.HandleOptions)
		r.Get("/report", s.sseHandlers.HandleReport)
		r.Get("/refresh", s.sseHandlers.HandleRefresh)
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())
	errors.WriteError(w, s.logger, errors.NotFound("Route not found").WithDetails("%s %s", r.Method, r.URL.Path), requestID)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())
	errors.WriteError(w, s.logger, errors.MethodNotAllowed("Method not allowed").WithDetails("%s %s", r.Method, r.URL.Path), requestID)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
