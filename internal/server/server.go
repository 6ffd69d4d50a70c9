// Package server provides the HTTP surface of controlmaps.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/controlmaps/internal/logging"
	"github.com/ayusman/controlmaps/internal/server/api"
	"github.com/ayusman/controlmaps/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	// OutputRoot holds one artifact directory per uploaded run.
	OutputRoot string
	Store      *store.Store
	Generator  api.Generator
	Logger     *zap.Logger
}

// Server represents the HTTP server for controlmaps.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	events *EventsHandler
	logger *zap.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := logging.OrNop(config.Logger)
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		events: NewEventsHandler(logger),
		logger: logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/api/events", s.events)

	if s.config.Store != nil {
		runs := api.NewRunsHandler(s.config.Store)
		s.mux.Handle("/api/runs", runs)
		s.mux.Handle("/api/runs/", runs)
		s.mux.HandleFunc("/api/stats", runs.Stats)
	}

	if s.config.Generator != nil && s.config.OutputRoot != "" {
		s.mux.Handle("/api/maps", api.NewMapsHandler(s.config.Generator, s.config.OutputRoot, s.events.Publish, s.logger))
	}

	if s.config.OutputRoot != "" {
		artifacts := http.FileServer(http.Dir(s.config.OutputRoot))
		s.mux.Handle("/artifacts/", http.StripPrefix("/artifacts/", artifacts))
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// Events returns the websocket event feed.
func (s *Server) Events() *EventsHandler {
	return s.events
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, s)
}

// Close disconnects every event subscriber.
func (s *Server) Close() error {
	s.events.Close()
	return nil
}
