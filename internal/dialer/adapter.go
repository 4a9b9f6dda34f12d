// Package dialer defines the vendor-neutral capability bundle a telephony
// vendor must provide to be bridged: audio transcoding, outbound wire
// message construction, and inbound message parsing.
package dialer

import (
	"context"

	"github.com/sebas/voicegate/internal/media"
)

// Adapter bundles the per-vendor strategies. Implementations are immutable
// after construction and safe to share across arbitrarily many concurrent
// bridges; the one exception is NewTranscoder, which mints a fresh
// per-session transcoder because resampling carries state between frames.
type Adapter interface {
	// Name returns the vendor name used for registry lookup ("twilio").
	Name() string

	// NewTranscoder returns a transcoder for one session.
	NewTranscoder() media.Transcoder

	// MessageBuilder returns the vendor's outbound message builder.
	MessageBuilder() MessageBuilder

	// Handler returns the vendor's inbound message parser.
	Handler() Handler
}

// MessageBuilder constructs outbound messages in the vendor's wire dialect.
type MessageBuilder interface {
	// BuildAudioMessage wraps an encoded audio payload in the vendor's
	// media envelope, addressed to the given stream.
	BuildAudioMessage(streamID string, payload []byte) ([]byte, error)

	// BuildMarkMessage builds a synchronization marker message.
	BuildMarkMessage(streamID, name string) ([]byte, error)

	// BuildClearMessage builds a message telling the vendor to discard any
	// audio it has buffered but not yet played. Sent on agent barge-in.
	BuildClearMessage(streamID string) ([]byte, error)

	// BuildConnectionResponse builds the call-setup document returned to the
	// vendor's webhook (TwiML for Twilio), pointing it at the media-stream
	// WebSocket URL. Custom parameters are echoed back in the start event.
	BuildConnectionResponse(websocketURL string, customParams map[string]string) ([]byte, error)
}

// Handler parses inbound vendor messages into normalized events.
type Handler interface {
	// ParseIncoming converts one raw wire message into a vendor-neutral
	// Event. Unrecognized events are returned with KindUnknown, not an
	// error; an error means the message could not be decoded at all.
	ParseIncoming(raw []byte) (Event, error)
}

// CallInitiator is implemented by adapters whose vendor can place outbound
// calls through a REST API.
type CallInitiator interface {
	// InitiateCall asks the vendor to dial toNumber and stream its media to
	// the connection response served at the gateway. Returns the vendor's
	// call id.
	InitiateCall(ctx context.Context, toNumber, websocketURL string, customParams map[string]string) (string, error)
}
