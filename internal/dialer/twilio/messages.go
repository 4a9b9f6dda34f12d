// Package twilio implements the dialer adapter for Twilio Media Streams:
// µ-law 8 kHz audio over a JSON WebSocket protocol, with TwiML call setup.
package twilio

import (
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"sort"
)

// wireMessage is the envelope of every Media Streams WebSocket message.
// The "event" field discriminates; only the matching sub-struct is set.
type wireMessage struct {
	Event          string        `json:"event"`
	SequenceNumber string        `json:"sequenceNumber,omitempty"`
	StreamSID      string        `json:"streamSid,omitempty"`
	Start          *startPayload `json:"start,omitempty"`
	Media          *mediaPayload `json:"media,omitempty"`
	Mark           *markPayload  `json:"mark,omitempty"`
	Stop           *stopPayload  `json:"stop,omitempty"`
	DTMF           *dtmfPayload  `json:"dtmf,omitempty"`
}

type startPayload struct {
	StreamSID        string            `json:"streamSid"`
	AccountSID       string            `json:"accountSid"`
	CallSID          string            `json:"callSid"`
	Tracks           []string          `json:"tracks"`
	MediaFormat      mediaFormat       `json:"mediaFormat"`
	CustomParameters map[string]string `json:"customParameters"`
}

type mediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

type mediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"` // base64 µ-law
}

type markPayload struct {
	Name string `json:"name"`
}

type stopPayload struct {
	AccountSID string `json:"accountSid"`
	CallSID    string `json:"callSid"`
}

type dtmfPayload struct {
	Track string `json:"track,omitempty"`
	Digit string `json:"digit"`
}

// Builder constructs outbound Media Streams messages and TwiML documents.
type Builder struct{}

// BuildAudioMessage wraps µ-law audio in a media message addressed to the
// given stream. The payload is base64-encoded on the wire.
func (Builder) BuildAudioMessage(streamID string, payload []byte) ([]byte, error) {
	if streamID == "" {
		return nil, fmt.Errorf("twilio: audio message requires a stream sid")
	}
	return json.Marshal(wireMessage{
		Event:     "media",
		StreamSID: streamID,
		Media:     &mediaPayload{Payload: base64.StdEncoding.EncodeToString(payload)},
	})
}

// BuildMarkMessage builds a mark message; Twilio echoes it back after all
// media queued before it has been played.
func (Builder) BuildMarkMessage(streamID, name string) ([]byte, error) {
	return json.Marshal(wireMessage{
		Event:     "mark",
		StreamSID: streamID,
		Mark:      &markPayload{Name: name},
	})
}

// BuildClearMessage builds a clear message telling Twilio to drop any
// buffered outbound audio it has not yet played to the caller.
func (Builder) BuildClearMessage(streamID string) ([]byte, error) {
	return json.Marshal(wireMessage{
		Event:     "clear",
		StreamSID: streamID,
	})
}

// TwiML document structure for <Connect><Stream>.
type twimlResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Connect twimlConnect `xml:"Connect"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// BuildConnectionResponse builds the TwiML returned to Twilio's webhook,
// instructing it to open a bidirectional media stream to websocketURL.
// Custom parameters are passed as <Parameter> elements and arrive back in
// the start event's customParameters.
func (Builder) BuildConnectionResponse(websocketURL string, customParams map[string]string) ([]byte, error) {
	stream := twimlStream{URL: websocketURL}

	keys := make([]string, 0, len(customParams))
	for k := range customParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stream.Parameters = append(stream.Parameters, twimlParameter{Name: k, Value: customParams[k]})
	}

	body, err := xml.MarshalIndent(twimlResponse{Connect: twimlConnect{Stream: stream}}, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("twilio: marshal twiml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
