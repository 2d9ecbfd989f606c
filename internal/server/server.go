// Package server provides the HTTP API for failscope.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/failscope/internal/catalog"
	"github.com/hyperjump/failscope/internal/config"
	"github.com/hyperjump/failscope/internal/keyword"
	"github.com/hyperjump/failscope/internal/search"
	"github.com/hyperjump/failscope/internal/store"
	"github.com/hyperjump/failscope/pkg/utils"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Deps are the components the API serves.
type Deps struct {
	Engine     *search.Engine
	Catalog    *catalog.Catalog
	Embeddings *store.EmbeddingStore
	Terms      *store.HybridLookup
	Suggester  *keyword.Suggester
	// Source describes where artifacts are read from, for /status.
	Source string
}

// Server is the HTTP server for the failscope API.
type Server struct {
	deps   Deps
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		deps:   deps,
		config: cfg,
		logger: utils.OrNop(logger),
	}
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	if s.config != nil && s.config.CORSOrigin != "" {
		r.Use(cors(s.config.CORSOrigin))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Get("/incidents", s.handleListIncidents)
		r.Get("/incidents/{id}", s.handleGetIncident)
		r.Get("/categories", s.handleCategories)
		r.Get("/patterns", s.handlePatterns)
		r.Get("/tags", s.handleTags)
		r.Get("/terms", s.handleTerms)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)

	return otelhttp.NewHandler(r, "failscope")
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.String("source", s.deps.Source))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
