package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gridview/gridview-go/cmd/gridview-web/api"
)

// Server is the HTTP server for the dashboard backend.
type Server struct {
	config      Config
	mux         *http.ServeMux
	server      *http.Server
	entitiesAPI *api.EntitiesAPI
	streamAPI   *api.StreamAPI
	version     string
}

// NewServer creates a new server with the given configuration and
// API handlers.
func NewServer(cfg Config, entities *api.EntitiesAPI, stream *api.StreamAPI, version string) *Server {
	s := &Server{
		config:      cfg,
		mux:         http.NewServeMux(),
		entitiesAPI: entities,
		streamAPI:   stream,
		version:     version,
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.mux,
	}

	return s
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/v1/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/info", s.handleInfo)

	// Entity routes
	s.mux.HandleFunc("/api/v1/entities", s.entitiesAPI.HandleList)
	s.mux.HandleFunc("/api/v1/entities/", s.entitiesAPI.HandleEntity)

	// Live updates for browser clients
	s.mux.HandleFunc("/api/v1/stream", s.streamAPI.HandleStream)
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	version := s.version
	if version == "" {
		version = "dev"
	}

	resp := map[string]string{
		"status":  "ok",
		"version": version,
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleInfo returns server information.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := map[string]any{
		"version":  s.version,
		"gateway":  s.config.Gateway.APIBaseURL,
		"stream":   s.config.Gateway.StreamURL,
		"recorded": s.config.Record,
	}
	writeJSON(w, http.StatusOK, resp)
}

// Start begins listening. Blocks until the server stops.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
