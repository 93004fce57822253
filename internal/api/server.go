// Package api provides the HTTP API of the go-fronius bridge.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/resident-x/go-fronius/internal/config"
	"github.com/resident-x/go-fronius/internal/datastore"
	"github.com/resident-x/go-fronius/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Version is reported by the status endpoint; set by main.
var Version = "dev"

// Server represents the HTTP API server exposing devices, data points and metrics.
type Server struct {
	config    *config.Config
	server    *http.Server
	router    *mux.Router
	registry  domain.Registry
	store     *datastore.Store
	status    domain.StatusProvider
	gatherer  prometheus.Gatherer
	logger    zerolog.Logger
	startTime time.Time
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithStatus reports bridge status on /api/v1/status.
func WithStatus(status domain.StatusProvider) Option {
	return func(s *Server) { s.status = status }
}

// WithGatherer serves gatherer on /metrics when metrics are enabled.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = gatherer }
}

// NewServer creates a new HTTP API server.
func NewServer(cfg *config.Config, registry domain.Registry, store *datastore.Store, opts ...Option) *Server {
	apiServer := &Server{
		config:    cfg,
		router:    mux.NewRouter(),
		registry:  registry,
		store:     store,
		logger:    log.With().Str("component", "api").Logger(),
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(apiServer)
	}

	apiServer.setupRoutes()

	return apiServer
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all API endpoint handlers.
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	api.HandleFunc("/devices", s.handleListDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices/{class}/{id}", s.handleGetDevice).Methods(http.MethodGet)

	api.HandleFunc("/datapoints", s.handleListDataPoints).Methods(http.MethodGet)
	api.HandleFunc("/datapoints/{path:.*}", s.handleGetDataPoints).Methods(http.MethodGet)

	if s.config.API.Metrics && s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.API.Host, s.config.API.Port)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info().
			Str("host", s.config.API.Host).
			Int("port", s.config.API.Port).
			Msg("Starting HTTP API server")

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping HTTP API server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
	}

	return nil
}

// handleStatus returns server and bridge status information.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := map[string]interface{}{
		"status":      "ok",
		"version":     Version,
		"uptime":      time.Since(s.startTime).String(),
		"deviceCount": len(s.registry.GetAllDevices()),
		"pointCount":  s.store.Len(),
	}

	if s.status != nil {
		status["bridge"] = s.status.Status()
	}

	s.writeJSON(w, status, http.StatusOK)
}

// handleListDevices returns all devices, optionally filtered by ?class=.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var devices []*domain.DeviceInfo
	if class := r.URL.Query().Get("class"); class != "" {
		devices = s.registry.GetDevicesByClass(domain.DeviceClass(class))
	} else {
		devices = s.registry.GetAllDevices()
	}

	if devices == nil {
		devices = []*domain.DeviceInfo{}
	}

	s.writeJSON(w, map[string]interface{}{
		"devices": devices,
		"count":   len(devices),
	}, http.StatusOK)
}

// handleGetDevice returns a single device by class and id.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	device, found := s.registry.GetDevice(domain.DeviceKey(domain.DeviceClass(vars["class"]), vars["id"]))
	if !found {
		s.writeError(w, "Device not found", http.StatusNotFound)
		return
	}

	s.writeJSON(w, device, http.StatusOK)
}

// handleListDataPoints returns the whole data store.
func (s *Server) handleListDataPoints(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"datapoints": s.store.Snapshot(),
		"count":      s.store.Len(),
	}, http.StatusOK)
}

// handleGetDataPoints returns the point at a path, or every point below it.
func (s *Server) handleGetDataPoints(w http.ResponseWriter, r *http.Request) {
	p := strings.Trim(mux.Vars(r)["path"], "/")

	if point, ok := s.store.Get(p); ok {
		s.writeJSON(w, datastore.Entry{Path: p, Point: point}, http.StatusOK)
		return
	}

	entries := s.store.List(p)
	if len(entries) == 0 {
		s.writeError(w, "Data point not found", http.StatusNotFound)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"datapoints": entries,
		"count":      len(entries),
	}, http.StatusOK)
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]string{"error": message}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode error response")
	}
}
