package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"topicdesk/internal/generator"
	"topicdesk/internal/logger"
	"topicdesk/internal/persistence"
	"topicdesk/internal/similarity"
)

// Config holds HTTP server settings
type Config struct {
	Host           string
	Port           int
	AdminAPIKey    string
	CORSOrigins    []string // CORS is enabled when non-empty
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
}

// Metrics instruments requests and serves the scrape endpoint
type Metrics interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	db         persistence.Database
	gen        *generator.Generator
	similarity *similarity.Detector
	metrics    Metrics
	config     Config
	log        *slog.Logger
}

// New creates a new HTTP server instance. metrics may be nil.
func New(db persistence.Database, gen *generator.Generator, cfg Config, metrics Metrics) *Server {
	if cfg.RequestTimeout <= 0 {
		// Generation makes several sequential generative calls
		cfg.RequestTimeout = 5 * time.Minute
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = cfg.RequestTimeout + 10*time.Second
	}

	s := &Server{
		router:     chi.NewRouter(),
		db:         db,
		gen:        gen,
		similarity: similarity.NewDetector(db.Proposals()),
		metrics:    metrics,
		config:     cfg,
		log:        logger.Get(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.config.RequestTimeout))
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}

	if len(s.config.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", UserIDHeader},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/projects/{projectID}/proposals", func(r chi.Router) {
			r.With(s.requireProjectRole(canView)).Get("/", s.handleListProposals)
			r.With(s.requireProjectRole(canView)).Post("/preview", s.handlePreview)
			r.With(s.requireProjectRole(canView)).Post("/similar", s.handleSimilar)
			r.With(s.requireProjectRole(canGenerate)).Post("/generate", s.handleGenerate)
		})

		r.Route("/proposals/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetProposal)
			r.Get("/brief", s.handleBrief)
			r.Post("/resynthesize", s.handleResynthesize)
			r.Patch("/review", s.handleReview)
		})

		r.With(s.requireAdminAPI).Post("/scheduled-runs", s.handleScheduledRun)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.config.ReadTimeout,
		"write_timeout", s.config.WriteTimeout,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
