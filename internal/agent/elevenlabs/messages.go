// Package elevenlabs implements the agent boundary for the ElevenLabs
// Conversational AI platform: a signed-URL WebSocket carrying JSON control
// and base64 PCM audio messages.
package elevenlabs

import (
	"encoding/base64"
	"encoding/json"
)

// initMessage is the first client message on a conversation socket.
type initMessage struct {
	Type             string         `json:"type"`
	DynamicVariables map[string]any `json:"dynamic_variables,omitempty"`
}

// audioChunkMessage carries caller audio upstream.
type audioChunkMessage struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

// pongMessage answers a server ping.
type pongMessage struct {
	Type    string `json:"type"`
	EventID int    `json:"event_id"`
}

// serverMessage is the discriminated union of everything the platform sends.
type serverMessage struct {
	Type string `json:"type"`

	AudioEvent *struct {
		AudioBase64 string `json:"audio_base_64"`
		EventID     int    `json:"event_id"`
	} `json:"audio_event,omitempty"`

	AgentResponseEvent *struct {
		Response string `json:"agent_response"`
	} `json:"agent_response_event,omitempty"`

	UserTranscriptEvent *struct {
		Transcript string `json:"user_transcript"`
	} `json:"user_transcription_event,omitempty"`

	PingEvent *struct {
		EventID int `json:"event_id"`
	} `json:"ping_event,omitempty"`

	InterruptionEvent *struct {
		EventID int `json:"event_id"`
	} `json:"interruption_event,omitempty"`
}

func buildInitMessage(vars map[string]any) ([]byte, error) {
	return json.Marshal(initMessage{
		Type:             "conversation_initiation_client_data",
		DynamicVariables: vars,
	})
}

func buildAudioChunk(pcm []byte) ([]byte, error) {
	return json.Marshal(audioChunkMessage{
		UserAudioChunk: base64.StdEncoding.EncodeToString(pcm),
	})
}

func buildPong(eventID int) ([]byte, error) {
	return json.Marshal(pongMessage{Type: "pong", EventID: eventID})
}
