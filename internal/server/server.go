// Package server provides the HTTP API for the evidence ingestion core
// (§6): document submission and lookup, hybrid search, knowledge-gap and
// duplicate review, correction rules and the correction queue, the
// authority-path query, health, and Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chittyos/evidence-core/internal/config"
	"github.com/chittyos/evidence-core/internal/guardian"
	"github.com/chittyos/evidence-core/internal/ingestion"
	"github.com/chittyos/evidence-core/internal/search"
	"github.com/chittyos/evidence-core/internal/store"
)

// Server is the HTTP server for the evidence ingestion core's API.
type Server struct {
	gateway  *ingestion.Gateway
	engine   *search.Engine
	store    *store.Store
	guardian *guardian.Guardian
	config   *config.ServerConfig
	logger   *zap.Logger
	validate *validator.Validate
	server   *http.Server
}

// Deps are the Server's collaborators. The Duplicate Hunter runs as its
// own background actor (periodic scans) and has no HTTP surface; manual
// duplicate confirm/reject goes through the Store directly, mirroring
// the Hunter's own merge-winner rule.
type Deps struct {
	Gateway  *ingestion.Gateway
	Engine   *search.Engine
	Store    *store.Store
	Guardian *guardian.Guardian
	Config   *config.ServerConfig
	Logger   *zap.Logger
}

// New creates a Server with the given dependencies.
func New(deps Deps) *Server {
	return &Server{
		gateway:  deps.Gateway,
		engine:   deps.Engine,
		store:    deps.Store,
		guardian: deps.Guardian,
		config:   deps.Config,
		logger:   deps.Logger,
		validate: validator.New(),
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/documents", s.handleSubmitDocument)
	r.Get("/documents/{id}", s.handleGetDocument)
	r.Get("/documents/{id}/log", s.handleGetDocumentLog)
	r.Post("/search", s.handleSearch)

	r.Get("/gaps", s.handleListGaps)
	r.Post("/gaps/{id}/resolve", s.handleResolveGap)

	r.Post("/rules", s.handleCreateRule)
	r.Post("/rules/{id}/activate", s.handleActivateRule)
	r.Post("/rules/{id}/apply", s.handleApplyRule)
	r.Get("/rules/known-error-scan", s.handleScanKnownErrors)

	r.Get("/queue", s.handleListQueue)
	r.Post("/queue/approve", s.handleQueueApprove)
	r.Post("/queue/reject", s.handleQueueReject)
	r.Post("/queue/bulk-apply", s.handleQueueBulkApply)

	r.Get("/duplicates", s.handleListDuplicates)
	r.Post("/duplicates/{docA}/{docB}/confirm", s.handleConfirmDuplicate)
	r.Post("/duplicates/{docA}/{docB}/reject", s.handleRejectDuplicate)

	r.Post("/authority/path", s.handleAuthorityPath)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{Addr: addr, Handler: s.router()}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
