package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sebas/voicegate/internal/dialer"
	"github.com/sebas/voicegate/internal/media"
)

// DefaultAPIBaseURL is the Twilio REST API base.
const DefaultAPIBaseURL = "https://api.twilio.com/2010-04-01"

// Config holds the Twilio account credentials.
type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string // E.164 caller id for outbound calls
	APIBaseURL string // defaults to DefaultAPIBaseURL
}

// Validate checks that the credentials look usable.
func (c Config) Validate() error {
	if c.AccountSID == "" || c.AuthToken == "" {
		return fmt.Errorf("twilio: account sid and auth token are required")
	}
	if !strings.HasPrefix(c.AccountSID, "AC") {
		return fmt.Errorf("twilio: account sid must start with AC")
	}
	if c.FromNumber != "" && !strings.HasPrefix(c.FromNumber, "+") {
		return fmt.Errorf("twilio: from number must be E.164 (+country code)")
	}
	return nil
}

// Adapter is the Twilio capability bundle. It is immutable and shared by all
// concurrent Twilio sessions.
type Adapter struct {
	cfg     Config
	builder Builder
	handler Handler
	client  *http.Client
}

var _ dialer.Adapter = (*Adapter)(nil)
var _ dialer.CallInitiator = (*Adapter)(nil)

// New creates the Twilio adapter.
func New(cfg Config) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Name returns "twilio".
func (a *Adapter) Name() string { return "twilio" }

// NewTranscoder returns a fresh µ-law transcoder for one session.
func (a *Adapter) NewTranscoder() media.Transcoder { return media.NewMuLawTranscoder() }

// MessageBuilder returns the Media Streams message builder.
func (a *Adapter) MessageBuilder() dialer.MessageBuilder { return a.builder }

// Handler returns the Media Streams message parser.
func (a *Adapter) Handler() dialer.Handler { return a.handler }

// InitiateCall places an outbound call through the Twilio REST API. The call
// is answered with TwiML that streams its media to websocketURL; callers
// pass the session context through customParams so the start event can
// recover it.
func (a *Adapter) InitiateCall(ctx context.Context, toNumber, websocketURL string, customParams map[string]string) (string, error) {
	if a.cfg.FromNumber == "" {
		return "", fmt.Errorf("twilio: outbound calls require a from number")
	}

	twiml, err := a.builder.BuildConnectionResponse(websocketURL, customParams)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("To", toNumber)
	form.Set("From", a.cfg.FromNumber)
	form.Set("Twiml", string(twiml))

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", a.cfg.APIBaseURL, a.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("twilio: build request: %w", err)
	}
	req.SetBasicAuth(a.cfg.AccountSID, a.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio: create call: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("twilio: create call failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var created struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("twilio: decode create call response: %w", err)
	}

	slog.Info("[Twilio] Outbound call created", "call_sid", created.SID, "to", toNumber, "status", created.Status)
	return created.SID, nil
}
