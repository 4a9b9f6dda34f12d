package twilio

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/sebas/voicegate/internal/dialer"
)

// Handler parses inbound Media Streams messages into normalized events.
type Handler struct{}

// ParseIncoming decodes one Twilio WebSocket message.
//
// Twilio's "connected" preamble and any future event kinds come back as
// KindUnknown so the bridge can log and move on. A JSON decode failure is
// returned as an error and counts as a protocol error.
func (Handler) ParseIncoming(raw []byte) (dialer.Event, error) {
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return dialer.Event{}, fmt.Errorf("twilio: decode message: %w", err)
	}

	switch msg.Event {
	case "start":
		if msg.Start == nil {
			return dialer.Event{}, fmt.Errorf("twilio: start event without start payload")
		}
		return dialer.Event{
			Kind:             dialer.KindStart,
			CallID:           msg.Start.CallSID,
			StreamID:         msg.Start.StreamSID,
			CustomParameters: msg.Start.CustomParameters,
			RawType:          msg.Event,
		}, nil

	case "media":
		if msg.Media == nil || msg.Media.Payload == "" {
			return dialer.Event{}, fmt.Errorf("twilio: media event without payload")
		}
		audio, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
		if err != nil {
			return dialer.Event{}, fmt.Errorf("twilio: decode media payload: %w", err)
		}
		return dialer.Event{
			Kind:     dialer.KindMedia,
			StreamID: msg.StreamSID,
			Payload:  audio,
			RawType:  msg.Event,
		}, nil

	case "mark":
		ev := dialer.Event{Kind: dialer.KindMark, StreamID: msg.StreamSID, RawType: msg.Event}
		if msg.Mark != nil {
			ev.MarkName = msg.Mark.Name
		}
		return ev, nil

	case "dtmf":
		ev := dialer.Event{Kind: dialer.KindDTMF, StreamID: msg.StreamSID, RawType: msg.Event}
		if msg.DTMF != nil {
			ev.Digit = msg.DTMF.Digit
		}
		return ev, nil

	case "stop":
		ev := dialer.Event{Kind: dialer.KindStop, StreamID: msg.StreamSID, RawType: msg.Event}
		if msg.Stop != nil {
			ev.CallID = msg.Stop.CallSID
		}
		return ev, nil

	default:
		return dialer.Event{Kind: dialer.KindUnknown, RawType: msg.Event}, nil
	}
}
