package media

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/zaf/g711"
)

func pcm16(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestToCanonicalDoublesSampleCount(t *testing.T) {
	tr := NewMuLawTranscoder()

	for _, n := range []int{1, 80, 160, 333} {
		payload := bytes.Repeat([]byte{0xD5}, n)
		pcm, err := tr.ToCanonical(payload)
		if err != nil {
			t.Fatalf("ToCanonical(%d bytes) error: %v", n, err)
		}
		// n µ-law samples at 8 kHz become 2n 16-bit samples at 16 kHz.
		if got, want := len(pcm), n*4; got != want {
			t.Errorf("ToCanonical(%d bytes) = %d bytes, want %d", n, got, want)
		}
	}
}

func TestSilenceRoundTrip(t *testing.T) {
	tr := NewMuLawTranscoder()

	silence := bytes.Repeat([]byte{0xFF}, 160)
	pcm, err := tr.ToCanonical(silence)
	if err != nil {
		t.Fatalf("ToCanonical error: %v", err)
	}

	for i := 0; i < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		if s < -8 || s > 8 {
			t.Fatalf("sample %d decoded from silence is %d, want near zero", i/2, s)
		}
	}

	back, err := tr.FromCanonical(pcm)
	if err != nil {
		t.Fatalf("FromCanonical error: %v", err)
	}
	if !bytes.Equal(back, silence) {
		t.Errorf("silence did not round-trip: got %d bytes, first %x", len(back), back[:4])
	}
}

func TestQuantizedRoundTripIsStable(t *testing.T) {
	tr := NewMuLawTranscoder()

	// A full-scale 1 kHz tone at 8 kHz, quantized once through µ-law.
	raw := make([]int16, 160)
	for i := range raw {
		raw[i] = int16(12000 * math.Sin(2*math.Pi*float64(i)/8))
	}
	quantized := g711.EncodeUlaw(pcm16(raw...))

	first, err := tr.ToCanonical(quantized)
	if err != nil {
		t.Fatalf("ToCanonical error: %v", err)
	}
	once, err := tr.FromCanonical(first)
	if err != nil {
		t.Fatalf("FromCanonical error: %v", err)
	}
	if len(once) != len(quantized) {
		t.Fatalf("round trip changed length: %d -> %d", len(quantized), len(once))
	}

	second, err := tr.ToCanonical(once)
	if err != nil {
		t.Fatalf("ToCanonical error: %v", err)
	}
	twice, err := tr.FromCanonical(second)
	if err != nil {
		t.Fatalf("FromCanonical error: %v", err)
	}
	if !bytes.Equal(once, twice) {
		t.Error("encode/decode is not idempotent on already-quantized audio")
	}
}

func TestFromCanonicalRejectsOddLength(t *testing.T) {
	tr := NewMuLawTranscoder()

	_, err := tr.FromCanonical([]byte{0x01, 0x02, 0x03})
	if err == nil {
		t.Fatal("expected error for truncated 16-bit payload")
	}
	if !IsConversionError(err) {
		t.Errorf("error %v is not a ConversionError", err)
	}
}

func TestFromCanonicalCarriesRemainderSample(t *testing.T) {
	tr := NewMuLawTranscoder()

	// Three 16 kHz samples: one pair plus a remainder that must be prefixed
	// to the next call instead of being dropped.
	out1, err := tr.FromCanonical(pcm16(1000, 2000, 3000))
	if err != nil {
		t.Fatalf("FromCanonical error: %v", err)
	}
	if len(out1) != 1 {
		t.Fatalf("first call produced %d bytes, want 1", len(out1))
	}

	out2, err := tr.FromCanonical(pcm16(4000, 5000, 6000))
	if err != nil {
		t.Fatalf("FromCanonical error: %v", err)
	}
	// Carried sample 3000 pairs with 4000, then (5000,6000): two outputs.
	if len(out2) != 2 {
		t.Fatalf("second call produced %d bytes, want 2", len(out2))
	}

	want := g711.EncodeUlaw(pcm16(3000, 5000))
	if !bytes.Equal(out2, want) {
		t.Errorf("carried sample not prefixed: got %x, want %x", out2, want)
	}
}

func TestUpsampleInterpolatesMidpoints(t *testing.T) {
	out := upsample2x(pcm16(0, 100))
	want := pcm16(0, 50, 100, 100)
	if !bytes.Equal(out, want) {
		t.Errorf("upsample2x = %x, want %x", out, want)
	}
}

func TestFormatDuration(t *testing.T) {
	// 160 µ-law bytes are 20ms at 8 kHz.
	if d := FormatMuLaw8k.Duration(160); d.Milliseconds() != 20 {
		t.Errorf("Duration(160) = %v, want 20ms", d)
	}
	// 640 PCM16 bytes are 20ms at 16 kHz.
	if d := FormatPCM16k.Duration(640); d.Milliseconds() != 20 {
		t.Errorf("Duration(640) = %v, want 20ms", d)
	}
}
