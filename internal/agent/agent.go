// Package agent defines the boundary to the conversational-AI platform.
// The bridge only sees these interfaces; the concrete wire protocol lives in
// the provider subpackages.
package agent

import (
	"context"
	"fmt"
)

// EventKind identifies a normalized agent event.
type EventKind int

const (
	// KindAudio carries one chunk of agent speech as canonical PCM.
	KindAudio EventKind = iota
	// KindInterruption signals barge-in: the caller spoke over the agent and
	// all undelivered agent audio must be flushed.
	KindInterruption
	// KindAgentResponse is the agent's response text.
	KindAgentResponse
	// KindUserTranscript is the platform's transcription of caller speech.
	KindUserTranscript
	// KindMetadata is any other platform event, kept for logging.
	KindMetadata
	// KindClosed is the final event on a stream; Err carries the reason when
	// the close was not clean.
	KindClosed
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindInterruption:
		return "interruption"
	case KindAgentResponse:
		return "agent_response"
	case KindUserTranscript:
		return "user_transcript"
	case KindMetadata:
		return "metadata"
	case KindClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Event is one normalized message from the agent platform.
type Event struct {
	Kind  EventKind
	Audio []byte // canonical PCM, set for KindAudio
	Text  string // set for KindAgentResponse / KindUserTranscript
	Raw   string // platform's own event type, for logging
	Err   error  // set on KindClosed when the stream failed
}

// Stream is one live duplex connection to an agent. Ping/pong keep-alives
// are handled inside the stream and never surfaced.
type Stream interface {
	// SendAudio forwards one chunk of canonical PCM caller audio.
	SendAudio(pcm []byte) error

	// Events returns the inbound event channel. It is closed after a
	// KindClosed event has been delivered.
	Events() <-chan Event

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// Connector establishes agent streams. Implementations fetch whatever
// short-lived credentials the platform requires and perform the initial
// session handshake before returning.
type Connector interface {
	// Connect opens a stream to the given agent and sends the session
	// initialization (dynamic variables) before returning. A setup failure
	// here is fatal to the session being established.
	Connect(ctx context.Context, agentID string, dynamicVariables map[string]any) (Stream, error)
}
