// Package media provides audio format descriptors and transcoding between
// vendor telephony formats and the canonical agent format (PCM16 mono 16 kHz).
package media

import (
	"errors"
	"fmt"
	"time"
)

// Encoding identifies an audio sample encoding.
type Encoding string

const (
	// EncodingMuLaw is G.711 µ-law companded audio, one byte per sample.
	EncodingMuLaw Encoding = "mulaw"
	// EncodingPCM16 is linear PCM, 16-bit signed little-endian.
	EncodingPCM16 Encoding = "pcm16"
)

// Format is an immutable audio format specification.
type Format struct {
	Encoding   Encoding // sample encoding
	SampleRate int      // samples per second (8000, 16000)
	SampleBits int      // bits per sample (8 for µ-law, 16 for PCM)
	Channels   int      // 1 for mono
}

// Pre-defined formats for the supported telephony and agent sides.
var (
	// FormatMuLaw8k is the G.711 µ-law 8 kHz format used by most PSTN vendors.
	FormatMuLaw8k = Format{EncodingMuLaw, 8000, 8, 1}

	// FormatPCM16k is the canonical agent format: PCM16 mono 16 kHz.
	FormatPCM16k = Format{EncodingPCM16, 16000, 16, 1}
)

// BytesPerSample returns the storage size of one sample in bytes.
func (f Format) BytesPerSample() int {
	return f.SampleBits / 8 * f.Channels
}

// Duration returns the play time of a payload of n bytes in this format.
func (f Format) Duration(n int) time.Duration {
	samples := n / f.BytesPerSample()
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

func (f Format) String() string {
	return fmt.Sprintf("%s/%d/%d", f.Encoding, f.SampleRate, f.Channels)
}

// ConversionError reports a payload that cannot be converted. Callers drop
// the offending frame and continue; it is never fatal to a session.
type ConversionError struct {
	Format Format
	Len    int
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("media: cannot convert %d bytes as %s: %s", e.Len, e.Format, e.Reason)
}

// IsConversionError reports whether err is a ConversionError.
func IsConversionError(err error) bool {
	var ce *ConversionError
	return errors.As(err, &ce)
}
