package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/sebas/voicegate/internal/dialer"
)

// outboundCallRequest is the body of POST /{vendor}/outbound-call.
type outboundCallRequest struct {
	ToNumber         string         `json:"to_number"`
	AgentID          string         `json:"agent_id"`
	DynamicVariables map[string]any `json:"dynamic_variables"`
}

// handleOutboundCall places a call through the vendor's REST API and parks
// the agent routing context until the media stream connects back.
func (s *Server) handleOutboundCall(adapter dialer.Adapter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !s.authorized(r) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		initiator, ok := adapter.(dialer.CallInitiator)
		if !ok {
			http.Error(w, fmt.Sprintf("Vendor %s cannot place outbound calls", adapter.Name()),
				http.StatusNotImplemented)
			return
		}

		var req outboundCallRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.ToNumber == "" || req.AgentID == "" {
			http.Error(w, "to_number and agent_id are required", http.StatusBadRequest)
			return
		}

		contextID := uuid.New().String()
		s.contexts.Save(contextID, req.AgentID, req.DynamicVariables)

		wsURL := s.mediaStreamURL(adapter.Name(), contextID)
		callID, err := initiator.InitiateCall(r.Context(), req.ToNumber, wsURL,
			map[string]string{"context_id": contextID})
		if err != nil {
			s.contexts.Claim(contextID)
			slog.Error("[Server] Outbound call failed",
				"vendor", adapter.Name(), "to", req.ToNumber, "error", err)
			http.Error(w, "Call initiation failed", http.StatusBadGateway)
			return
		}

		slog.Info("[Server] Outbound call placed",
			"vendor", adapter.Name(), "call_id", callID, "agent_id", req.AgentID)
		s.writeJSON(w, map[string]string{
			"call_id":    callID,
			"context_id": contextID,
		})
	}
}

// handleIncomingCall answers the vendor's inbound-call webhook with the
// connection document that points the call at the media-stream endpoint.
// The agent id comes from the webhook URL's query string, set per number in
// the vendor's console.
func (s *Server) handleIncomingCall(adapter dialer.Adapter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		agentID := r.URL.Query().Get("agent_id")
		if agentID == "" {
			http.Error(w, "agent_id query parameter required", http.StatusBadRequest)
			return
		}

		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form body", http.StatusBadRequest)
			return
		}
		callID := r.PostFormValue("CallSid")
		caller := r.PostFormValue("From")

		dynamicVariables := map[string]any{}
		if caller != "" {
			dynamicVariables["caller_number"] = caller
		}

		contextID := uuid.New().String()
		s.contexts.Save(contextID, agentID, dynamicVariables)

		doc, err := adapter.MessageBuilder().BuildConnectionResponse(
			s.mediaStreamURL(adapter.Name(), contextID),
			map[string]string{"context_id": contextID},
		)
		if err != nil {
			slog.Error("[Server] Failed to build connection response", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		slog.Info("[Server] Incoming call accepted",
			"vendor", adapter.Name(), "call_id", callID, "from", caller, "agent_id", agentID)
		w.Header().Set("Content-Type", "text/xml")
		w.Write(doc)
	}
}

// mediaStreamURL builds the externally reachable WebSocket URL carrying the
// parked context's key.
func (s *Server) mediaStreamURL(vendor, contextID string) string {
	return fmt.Sprintf("wss://%s/%s/media-stream?ctx=%s", s.cfg.PublicHost, vendor, contextID)
}

// authorized checks the X-API-Key header. An empty key list leaves the
// endpoint open, for local development.
func (s *Server) authorized(r *http.Request) bool {
	if len(s.cfg.APIKeys) == 0 {
		return true
	}
	key := r.Header.Get("X-API-Key")
	for _, k := range s.cfg.APIKeys {
		if key == k {
			return true
		}
	}
	return false
}
