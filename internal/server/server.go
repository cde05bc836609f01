package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"watchtrail/internal/config"
	"watchtrail/internal/logger"
)

// Server serves clustered watch history to the viewer
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	data       *dataset
	config     config.Server
	log        *slog.Logger
}

// New creates a new HTTP server instance for the clustered file at dataPath
func New(dataPath string, cfg config.Server) (*Server, error) {
	data := newDataset(dataPath)
	if _, err := data.current(); err != nil {
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		data:   data,
		config: cfg,
		log:    logger.Get(),
	}

	// Setup middleware
	s.setupMiddleware()

	// Setup routes
	s.setupRoutes()

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  parseTimeout(cfg.ReadTimeout),
		WriteTimeout: parseTimeout(cfg.WriteTimeout),
	}

	return s, nil
}

func parseTimeout(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	// Request ID middleware
	s.router.Use(middleware.RequestID)

	// Real IP middleware
	s.router.Use(middleware.RealIP)

	// Logging middleware
	s.router.Use(s.requestLogger)

	// Recovery middleware (recover from panics)
	s.router.Use(middleware.Recoverer)

	// Request timeout middleware
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Use(securityHeaders)

	// CORS middleware, so a separately served frontend can read the API
	if len(s.config.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORSOrigins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300, // Maximum value not ignored by any major browsers
		}))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.Get("/health", s.handleHealth)

	// Raw clustered file, at the path the viewer fetches
	s.router.With(noCache).Get("/data/"+filepath.Base(s.data.path), s.handleDataFile)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(noCache)
		r.Get("/summary", s.handleSummary)
		r.Route("/clusters", func(r chi.Router) {
			r.Get("/", s.handleListClusters)
			r.Get("/{label}", s.handleGetCluster)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"data", s.data.path,
		"read_timeout", s.httpServer.ReadTimeout,
		"write_timeout", s.httpServer.WriteTimeout,
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
