package elevenlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sebas/voicegate/internal/agent"
)

// DefaultAPIBaseURL is the ElevenLabs REST API base.
const DefaultAPIBaseURL = "https://api.elevenlabs.io/v1"

// Config holds the ElevenLabs credentials and endpoints.
type Config struct {
	APIKey     string
	APIBaseURL string // defaults to DefaultAPIBaseURL
}

// Connector establishes conversation streams: it trades the API key for a
// short-lived signed WebSocket URL, dials it, and performs the session
// initialization handshake.
type Connector struct {
	cfg    Config
	client *http.Client
	dialer *websocket.Dialer
}

var _ agent.Connector = (*Connector)(nil)

// NewConnector creates an ElevenLabs connector.
func NewConnector(cfg Config) (*Connector, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs: api key is required")
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	return &Connector{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

// Connect opens a conversation stream for one agent. The passed context
// bounds the whole setup: signed-URL fetch, WebSocket dial, and the
// initialization message.
func (c *Connector) Connect(ctx context.Context, agentID string, dynamicVariables map[string]any) (agent.Stream, error) {
	signedURL, err := c.signedURL(ctx, agentID)
	if err != nil {
		return nil, err
	}

	conn, resp, err := c.dialer.DialContext(ctx, signedURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("elevenlabs: websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("elevenlabs: websocket dial failed: %w", err)
	}

	init, err := buildInitMessage(dynamicVariables)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("elevenlabs: build init message: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, init); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("elevenlabs: send init message: %w", err)
	}

	slog.Info("[ElevenLabs] Conversation stream established", "agent_id", agentID)
	return newStream(conn), nil
}

// signedURL fetches the time-limited conversation URL for an agent.
func (c *Connector) signedURL(ctx context.Context, agentID string) (string, error) {
	endpoint := fmt.Sprintf("%s/convai/conversation/get-signed-url?agent_id=%s",
		c.cfg.APIBaseURL, url.QueryEscape(agentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: build signed-url request: %w", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: signed-url request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("elevenlabs: signed-url request failed: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		SignedURL string `json:"signed_url"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("elevenlabs: decode signed-url response: %w", err)
	}
	if parsed.SignedURL == "" {
		return "", fmt.Errorf("elevenlabs: no signed url in response")
	}
	return parsed.SignedURL, nil
}
