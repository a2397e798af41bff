// Package server provides the HTTP server and routing for the rebalancer.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/rebalancer/internal/database"
	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/events"
	currencyhandlers "github.com/aristath/rebalancer/internal/modules/currency/handlers"
	"github.com/aristath/rebalancer/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/rebalancer/internal/modules/portfolio/handlers"
	"github.com/aristath/rebalancer/internal/modules/rebalancing"
	rebalancinghandlers "github.com/aristath/rebalancer/internal/modules/rebalancing/handlers"
	"github.com/aristath/rebalancer/internal/scheduler"
)

// Config holds server dependencies
type Config struct {
	Log         zerolog.Logger
	Port        int
	DevMode     bool
	Databases   []*database.DB
	EventBus    *events.Bus
	Portfolio   *portfolio.Service
	Rebalancing *rebalancing.Service
	Rates       domain.RateProvider
	Scheduler   *scheduler.Scheduler
	// HistoryLimit is the default page size of the rebalance history listing
	HistoryLimit int
	// Jobs can be triggered by name through the API
	Jobs []scheduler.Job
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	// WriteTimeout stays unset so event streams are not cut off
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5, "application/json", "text/plain"))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		if s.cfg.EventBus != nil {
			r.Get("/events/stream", NewEventsStreamHandler(s.cfg.EventBus, s.log).ServeHTTP)
			r.Get("/events/ws", NewEventsSocketHandler(s.cfg.EventBus, s.log).ServeHTTP)
		}

		system := NewSystemHandlers(s.log, s.cfg.Databases, s.cfg.Scheduler, s.cfg.Jobs)
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", system.HandleSystemStatus)
			r.Get("/jobs", system.HandleJobsStatus)
			r.Post("/jobs/{name}/run", system.HandleRunJob)
		})

		if s.cfg.Portfolio != nil {
			portfoliohandlers.NewHandler(s.cfg.Portfolio, s.log).RegisterRoutes(r)
			currencyhandlers.NewHandler(s.cfg.Portfolio, s.cfg.Rates, s.log).RegisterRoutes(r)
		}
		if s.cfg.Rebalancing != nil {
			rebalancinghandlers.NewHandler(s.cfg.Rebalancing, s.log).
				WithDefaultLimit(s.cfg.HistoryLimit).
				RegisterRoutes(r)
		}
	})
}

// Start starts the HTTP server; it blocks until the server stops
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{"status": "healthy"}

	for _, db := range s.cfg.Databases {
		if db == nil {
			continue
		}
		if err := db.HealthCheck(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body[db.Name()] = err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode health response")
	}
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
