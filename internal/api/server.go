// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/insights-engine/internal/credential"
	"github.com/insights-engine/internal/models"
	"github.com/insights-engine/internal/service"
	"github.com/insights-engine/internal/types"
)

// Service interfaces for dependency injection and testing

// InsightsServiceInterface defines the interface for the insight query path
type InsightsServiceInterface interface {
	GetInsights(ctx context.Context, accountID string, window types.DateWindow, force bool) (*service.InsightsResponse, error)
}

// SyncServiceInterface defines the interface for explicit sync triggers
type SyncServiceInterface interface {
	Run(ctx context.Context, account *models.Account, window types.DateWindow) (*service.SyncResult, error)
}

// AccountStoreInterface defines the account persistence operations the
// server needs
type AccountStoreInterface interface {
	Create(ctx context.Context, account *models.Account) error
	Get(ctx context.Context, id string) (*models.Account, error)
}

// SyncMetadataReaderInterface exposes the stored sync state
type SyncMetadataReaderInterface interface {
	Get(ctx context.Context, accountID string) (*models.SyncMetadata, error)
}

// PostReaderInterface lists cached posts
type PostReaderInterface interface {
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.PostCacheRecord, error)
}

// Server represents the HTTP API server.
type Server struct {
	router          *mux.Router
	httpServer      *http.Server
	insightsService InsightsServiceInterface
	syncService     SyncServiceInterface
	accounts        AccountStoreInterface
	syncMetadata    SyncMetadataReaderInterface
	posts           PostReaderInterface
	resolver        *credential.Resolver
	config          *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	ClientRPS       int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	insightsService InsightsServiceInterface,
	syncService SyncServiceInterface,
	accounts AccountStoreInterface,
	syncMetadata SyncMetadataReaderInterface,
	posts PostReaderInterface,
	resolver *credential.Resolver,
) *Server {
	s := &Server{
		router:          mux.NewRouter(),
		insightsService: insightsService,
		syncService:     syncService,
		accounts:        accounts,
		syncMetadata:    syncMetadata,
		posts:           posts,
		resolver:        resolver,
		config:          config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.ClientRPS)

	// Set up middleware (order matters!)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/accounts", s.handleCreateAccount).Methods("POST")
	api.HandleFunc("/accounts/{id}", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/accounts/{id}/insights", s.handleGetInsights).Methods("GET")
	api.HandleFunc("/accounts/{id}/sync", s.handleTriggerSync).Methods("POST")
	api.HandleFunc("/accounts/{id}/posts", s.handleGetPosts).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "insights-engine",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the configured handler, used by tests
func (s *Server) Router() http.Handler {
	return s.router
}
