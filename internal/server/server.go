// Package server exposes the gateway's HTTP surface: vendor webhooks, the
// media-stream WebSocket endpoint and the monitoring API.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sebas/voicegate/internal/agent"
	"github.com/sebas/voicegate/internal/config"
	"github.com/sebas/voicegate/internal/dialer"
	"github.com/sebas/voicegate/internal/metrics"
	"github.com/sebas/voicegate/internal/session"
)

// Server is the gateway HTTP server.
type Server struct {
	cfg        *config.Config
	adapters   *dialer.Registry
	registry   *session.Registry
	contexts   *session.ContextStore
	connector  agent.Connector
	metrics    *metrics.Metrics
	httpServer *http.Server
	startTime  time.Time
}

// New creates the server and registers all routes. Vendor-scoped routes are
// registered per adapter known at startup.
func New(cfg *config.Config, adapters *dialer.Registry, registry *session.Registry,
	contexts *session.ContextStore, connector agent.Connector, m *metrics.Metrics) *Server {

	s := &Server{
		cfg:       cfg,
		adapters:  adapters,
		registry:  registry,
		contexts:  contexts,
		connector: connector,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/sessions", s.handleSessions)
	mux.HandleFunc("/api/v1/sessions/", s.handleSessionByID)
	mux.Handle("/metrics", promhttp.Handler())

	for _, name := range adapters.Names() {
		adapter, err := adapters.Get(name)
		if err != nil {
			continue
		}
		mux.HandleFunc("/"+name+"/outbound-call", s.handleOutboundCall(adapter))
		mux.HandleFunc("/"+name+"/incoming-call", s.handleIncomingCall(adapter))
		mux.HandleFunc("/"+name+"/media-stream", s.handleMediaStream(adapter))
	}

	s.httpServer = &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: mux,
	}
	return s
}

// Handler returns the route table, for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening for HTTP requests.
func (s *Server) Start() {
	slog.Info("[Server] HTTP server starting", "addr", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("[Server] Server error", "error", err)
		}
	}()
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Live media streams are ended separately through the session registry.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- Monitoring API ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status": "ok",
		"uptime": int64(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"active_sessions":  s.registry.ActiveCount(),
		"max_sessions":     s.cfg.MaxSessions,
		"pending_contexts": s.contexts.Pending(),
		"vendors":          s.adapters.Names(),
		"environment":      s.cfg.Environment,
		"uptime":           int64(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.registry.List())
}

func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	if id == "" {
		http.Error(w, "Session id required", http.StatusBadRequest)
		return
	}

	sess, ok := s.registry.Get(id)
	if !ok {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, sess.Snapshot())

	case http.MethodDelete:
		slog.Info("[Server] Forced session termination requested", "session_id", id)
		s.registry.End(id)
		s.writeJSON(w, map[string]string{"status": "ending"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("[Server] Failed to encode response", "error", err)
	}
}
