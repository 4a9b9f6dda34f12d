package twilio

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sebas/voicegate/internal/dialer"
)

func TestParseStartEvent(t *testing.T) {
	var h Handler

	raw := `{
		"event": "start",
		"sequenceNumber": "1",
		"start": {
			"streamSid": "MZ0123",
			"accountSid": "AC9999",
			"callSid": "CA4567",
			"tracks": ["inbound"],
			"mediaFormat": {"encoding": "audio/x-mulaw", "sampleRate": 8000, "channels": 1},
			"customParameters": {"agent_id": "agent_1", "name": "Sam"}
		},
		"streamSid": "MZ0123"
	}`

	ev, err := h.ParseIncoming([]byte(raw))
	if err != nil {
		t.Fatalf("ParseIncoming error: %v", err)
	}
	if ev.Kind != dialer.KindStart {
		t.Fatalf("Kind = %v, want start", ev.Kind)
	}
	if ev.CallID != "CA4567" || ev.StreamID != "MZ0123" {
		t.Errorf("metadata = (%q, %q), want (CA4567, MZ0123)", ev.CallID, ev.StreamID)
	}
	if ev.CustomParameters["agent_id"] != "agent_1" {
		t.Errorf("custom parameters not extracted: %v", ev.CustomParameters)
	}
}

func TestParseMediaEventDecodesPayload(t *testing.T) {
	var h Handler

	audio := []byte{0xFF, 0x7F, 0x00, 0x80}
	raw := `{"event":"media","streamSid":"MZ1","media":{"track":"inbound","payload":"` +
		base64.StdEncoding.EncodeToString(audio) + `"}}`

	ev, err := h.ParseIncoming([]byte(raw))
	if err != nil {
		t.Fatalf("ParseIncoming error: %v", err)
	}
	if ev.Kind != dialer.KindMedia {
		t.Fatalf("Kind = %v, want media", ev.Kind)
	}
	if !bytes.Equal(ev.Payload, audio) {
		t.Errorf("Payload = %x, want %x", ev.Payload, audio)
	}
}

func TestParseUnknownAndMalformed(t *testing.T) {
	var h Handler

	ev, err := h.ParseIncoming([]byte(`{"event":"connected","protocol":"Call"}`))
	if err != nil {
		t.Fatalf("connected should not error: %v", err)
	}
	if ev.Kind != dialer.KindUnknown || ev.RawType != "connected" {
		t.Errorf("connected parsed as %v (%q), want unknown", ev.Kind, ev.RawType)
	}

	if _, err := h.ParseIncoming([]byte(`{not json`)); err == nil {
		t.Error("malformed JSON should return an error")
	}
}

func TestParseStopAndDTMF(t *testing.T) {
	var h Handler

	ev, err := h.ParseIncoming([]byte(`{"event":"stop","streamSid":"MZ1","stop":{"callSid":"CA1"}}`))
	if err != nil {
		t.Fatalf("ParseIncoming error: %v", err)
	}
	if ev.Kind != dialer.KindStop || ev.CallID != "CA1" {
		t.Errorf("stop = %+v", ev)
	}

	ev, err = h.ParseIncoming([]byte(`{"event":"dtmf","streamSid":"MZ1","dtmf":{"digit":"5"}}`))
	if err != nil {
		t.Fatalf("ParseIncoming error: %v", err)
	}
	if ev.Kind != dialer.KindDTMF || ev.Digit != "5" {
		t.Errorf("dtmf = %+v", ev)
	}
}

func TestBuildAudioMessage(t *testing.T) {
	var b Builder

	payload := []byte{0x01, 0x02, 0x03}
	raw, err := b.BuildAudioMessage("MZ77", payload)
	if err != nil {
		t.Fatalf("BuildAudioMessage error: %v", err)
	}

	var msg map[string]any
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if msg["event"] != "media" || msg["streamSid"] != "MZ77" {
		t.Errorf("envelope = %v", msg)
	}
	media, _ := msg["media"].(map[string]any)
	if media["payload"] != base64.StdEncoding.EncodeToString(payload) {
		t.Errorf("payload = %v", media["payload"])
	}

	if _, err := b.BuildAudioMessage("", payload); err == nil {
		t.Error("empty stream sid should be rejected")
	}
}

func TestBuildClearMessage(t *testing.T) {
	var b Builder

	raw, err := b.BuildClearMessage("MZ77")
	if err != nil {
		t.Fatalf("BuildClearMessage error: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if msg["event"] != "clear" || msg["streamSid"] != "MZ77" {
		t.Errorf("clear message = %v", msg)
	}
}

func TestBuildConnectionResponse(t *testing.T) {
	var b Builder

	twiml, err := b.BuildConnectionResponse("wss://gw.example.com/twilio/media-stream", map[string]string{
		"agent_id": "agent_1",
		"waiver":   "false",
	})
	if err != nil {
		t.Fatalf("BuildConnectionResponse error: %v", err)
	}

	doc := string(twiml)
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<Connect>`,
		`<Stream url="wss://gw.example.com/twilio/media-stream">`,
		`<Parameter name="agent_id" value="agent_1">`,
		`<Parameter name="waiver" value="false">`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("TwiML missing %q:\n%s", want, doc)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{AccountSID: "AC123", AuthToken: "tok", FromNumber: "+15550100"}, false},
		{"missing token", Config{AccountSID: "AC123"}, true},
		{"bad sid prefix", Config{AccountSID: "XX123", AuthToken: "tok"}, true},
		{"bad number", Config{AccountSID: "AC123", AuthToken: "tok", FromNumber: "5550100"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
