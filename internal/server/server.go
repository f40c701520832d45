package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/docsentry/internal/cache"
	"github.com/raaihank/docsentry/internal/config"
	"github.com/raaihank/docsentry/internal/detect"
	"github.com/raaihank/docsentry/internal/logger"
	"github.com/raaihank/docsentry/internal/pii"
	"github.com/raaihank/docsentry/internal/store"
	"github.com/raaihank/docsentry/internal/web"
	"github.com/raaihank/docsentry/internal/websocket"
)

// Detector runs the detection pipeline for one uploaded document.
type Detector interface {
	Detect(ctx context.Context, fileName string, data []byte, mode detect.Mode) ([]pii.Finding, error)
}

// FindingStore persists and retrieves findings.
type FindingStore interface {
	InsertMany(ctx context.Context, findings []pii.Finding) ([]pii.Finding, error)
	FindAll(ctx context.Context, limit int) ([]pii.Finding, error)
	DeleteByMatch(ctx context.Context, fileName, piiValue string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	GetStats(ctx context.Context) (*store.Stats, error)
}

// Server represents the main HTTP server
type Server struct {
	config    *config.Config
	logger    *logger.Logger
	detector  Detector
	findings  FindingStore
	scanCache cache.Cache
	limiter   *clientLimiter
	router    *mux.Router
	server    *http.Server
	wsHub     *websocket.Hub
}

// New creates a new server instance. scanCache may be nil when caching
// is disabled.
func New(cfg *config.Config, log *logger.Logger, detector Detector, findings FindingStore, scanCache cache.Cache) (*Server, error) {
	if detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if findings == nil {
		return nil, fmt.Errorf("finding store is required")
	}

	// Create WebSocket hub
	wsHub := websocket.NewHub(log.WithComponent("websocket").Logger)

	// Create router
	router := mux.NewRouter()

	server := &Server{
		config:    cfg,
		logger:    log.WithComponent("server"),
		detector:  detector,
		findings:  findings,
		scanCache: scanCache,
		limiter:   newClientLimiter(cfg.RateLimit),
		router:    router,
		wsHub:     wsHub,
	}

	// Setup routes
	server.setupRoutes()

	// Create HTTP server
	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.rateLimitMiddleware)

	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Info endpoint
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// Dashboard endpoint - embedded HTML
	s.router.HandleFunc("/", web.ServeDashboard).Methods("GET")
	s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods("GET")

	// WebSocket endpoint for dashboard
	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}

	// Scan endpoints
	s.router.HandleFunc("/scanFile", s.handleScanFile).Methods("POST")
	s.router.HandleFunc("/scanML", s.handleScanML).Methods("POST")

	// Retrieval and deletion endpoints
	s.router.HandleFunc("/retrieveAll", s.handleRetrieveAll).Methods("GET")
	s.router.HandleFunc("/delete", s.handleDelete).Methods("DELETE")
	s.router.HandleFunc("/deleteAll", s.handleDeleteAll).Methods("DELETE")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting docsentry server",
		zap.Int("port", s.config.Server.Port),
		zap.String("analyzer_url", s.config.Analyzer.BaseURL),
		zap.Bool("cache_enabled", s.scanCache != nil),
	)

	// Start WebSocket hub in a separate goroutine
	go s.wsHub.Run()

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping docsentry server")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":            "docsentry",
		"version":         "0.1.0",
		"analyzer_url":    s.config.Analyzer.BaseURL,
		"retrieve_cap":    s.config.Server.RetrieveCap,
		"max_input_bytes": s.config.Detection.MaxInputBytes,
	}

	if s.scanCache != nil {
		info["cache"] = s.scanCache.Stats()
	}

	if stats, err := s.findings.GetStats(r.Context()); err == nil {
		info["findings"] = stats
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(info)
}

// handleWebSocket handles WebSocket connections for the dashboard
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

// GetWebSocketHub returns the WebSocket hub for broadcasting events
func (s *Server) GetWebSocketHub() *websocket.Hub {
	return s.wsHub
}
