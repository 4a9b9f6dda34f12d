package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/sebas/voicegate/internal/bridge"
	"github.com/sebas/voicegate/internal/dialer"
	"github.com/sebas/voicegate/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Vendors connect from their own infrastructure, not browsers.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleMediaStream admits a session and runs the call bridge over the
// vendor's media WebSocket. Admission happens before the upgrade so a full
// gateway answers with a plain HTTP error the vendor can act on.
func (s *Server) handleMediaStream(adapter dialer.Adapter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contextID := r.URL.Query().Get("ctx")
		if contextID == "" {
			http.Error(w, "ctx query parameter required", http.StatusBadRequest)
			return
		}

		callCtx, ok := s.contexts.Claim(contextID)
		if !ok {
			slog.Warn("[Server] Media stream with unknown context", "context_id", contextID)
			http.Error(w, "Unknown or expired call context", http.StatusNotFound)
			return
		}

		sess, err := s.registry.Create("", callCtx.AgentID, callCtx.DynamicVariables)
		if err != nil {
			if errors.Is(err, session.ErrCapacityExceeded) {
				slog.Warn("[Server] Session rejected, at capacity", "context_id", contextID)
				http.Error(w, "At capacity", http.StatusServiceUnavailable)
				return
			}
			http.Error(w, "Session admission failed", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("[Server] WebSocket upgrade failed", "error", err)
			s.registry.End(sess.SessionID)
			return
		}

		b := bridge.New(bridge.Config{
			Session:          sess,
			Adapter:          adapter,
			Connector:        s.connector,
			Conn:             conn,
			Registry:         s.registry,
			Metrics:          s.metrics,
			AgentDialTimeout: s.cfg.AgentDialTimeout,
			MaxCallDuration:  s.cfg.MaxCallDuration,
		})
		s.registry.Attach(sess.SessionID, b)

		if err := b.Run(r.Context()); err != nil {
			slog.Error("[Server] Call setup failed",
				"session_id", sess.SessionID, "error", err)
		}
	}
}
