package elevenlabs

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sebas/voicegate/internal/agent"
)

// ErrStreamClosed is returned by SendAudio after the stream has shut down.
var ErrStreamClosed = errors.New("elevenlabs: stream closed")

// sendQueueSize bounds outbound messages (audio chunks and pongs) awaiting
// the write loop.
const sendQueueSize = 64

// Stream is one live conversation socket. The read loop parses server
// messages into normalized events and answers pings itself; a single write
// loop serializes all socket writes.
type Stream struct {
	conn   *websocket.Conn
	events chan agent.Event
	sendCh chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

var _ agent.Stream = (*Stream)(nil)

func newStream(conn *websocket.Conn) *Stream {
	s := &Stream{
		conn:   conn,
		events: make(chan agent.Event, sendQueueSize),
		sendCh: make(chan []byte, sendQueueSize),
	}
	s.done = make(chan struct{})
	go s.readLoop()
	go s.writeLoop()
	return s
}

// SendAudio forwards one chunk of canonical PCM caller audio.
func (s *Stream) SendAudio(pcm []byte) error {
	msg, err := buildAudioChunk(pcm)
	if err != nil {
		return err
	}
	return s.enqueue(msg)
}

// Events returns the inbound event channel.
func (s *Stream) Events() <-chan agent.Event { return s.events }

// Close tears the socket down and wakes both loops.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
	return nil
}

func (s *Stream) enqueue(msg []byte) error {
	select {
	case s.sendCh <- msg:
		return nil
	case <-s.done:
		return ErrStreamClosed
	}
}

func (s *Stream) writeLoop() {
	for {
		select {
		case msg := <-s.sendCh:
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Debug("[ElevenLabs] Write failed", "error", err)
				_ = s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Stream) readLoop() {
	defer close(s.events)

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			var closeErr error
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case <-s.done:
					// local close, not a failure
				default:
					closeErr = err
				}
			}
			s.emit(agent.Event{Kind: agent.KindClosed, Err: closeErr})
			_ = s.Close()
			return
		}

		ev, handled := s.parse(raw)
		if handled {
			continue
		}
		if !s.emit(ev) {
			return
		}
	}
}

// parse converts one server message. handled is true for messages consumed
// internally (pings).
func (s *Stream) parse(raw []byte) (ev agent.Event, handled bool) {
	var msg serverMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Warn("[ElevenLabs] Undecodable message ignored", "error", err)
		return agent.Event{Kind: agent.KindMetadata, Raw: "undecodable"}, false
	}

	switch {
	case msg.PingEvent != nil:
		pong, err := buildPong(msg.PingEvent.EventID)
		if err == nil {
			if err := s.enqueue(pong); err != nil {
				slog.Debug("[ElevenLabs] Pong dropped, stream closed")
			}
		}
		return agent.Event{}, true

	case msg.AudioEvent != nil:
		pcm, err := base64.StdEncoding.DecodeString(msg.AudioEvent.AudioBase64)
		if err != nil {
			slog.Warn("[ElevenLabs] Bad audio payload ignored", "error", err)
			return agent.Event{Kind: agent.KindMetadata, Raw: msg.Type}, false
		}
		return agent.Event{Kind: agent.KindAudio, Audio: pcm, Raw: msg.Type}, false

	case msg.InterruptionEvent != nil:
		return agent.Event{Kind: agent.KindInterruption, Raw: msg.Type}, false

	case msg.AgentResponseEvent != nil:
		return agent.Event{Kind: agent.KindAgentResponse, Text: msg.AgentResponseEvent.Response, Raw: msg.Type}, false

	case msg.UserTranscriptEvent != nil:
		return agent.Event{Kind: agent.KindUserTranscript, Text: msg.UserTranscriptEvent.Transcript, Raw: msg.Type}, false

	default:
		return agent.Event{Kind: agent.KindMetadata, Raw: msg.Type}, false
	}
}

// emit delivers an event unless the stream is shutting down.
func (s *Stream) emit(ev agent.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}
