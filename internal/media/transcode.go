package media

import (
	"sync"

	"github.com/zaf/g711"
)

// Transcoder converts audio between a vendor wire format and the canonical
// agent format (PCM16 mono 16 kHz little-endian).
//
// ToCanonical and FromCanonical always allocate a new slice; input payloads
// are never mutated. Each bridge owns one Transcoder but calls the two
// directions from different goroutines, so implementations that keep
// resampling state must serialize access internally.
type Transcoder interface {
	// VendorFormat returns the dialer-side wire format.
	VendorFormat() Format

	// ToCanonical converts one vendor frame to canonical PCM.
	ToCanonical(payload []byte) ([]byte, error)

	// FromCanonical converts canonical PCM to one vendor frame.
	FromCanonical(pcm []byte) ([]byte, error)
}

// MuLawTranscoder converts between G.711 µ-law at 8 kHz and canonical PCM16
// at 16 kHz. Decoding is exact; encoding quantizes. Downsampling carries an
// unpaired trailing sample across calls so no audio is lost at frame
// boundaries.
type MuLawTranscoder struct {
	mu       sync.Mutex
	carry    []byte // one pending 16-bit sample from the previous FromCanonical call
	hasCarry bool
}

// NewMuLawTranscoder returns a transcoder for the µ-law 8 kHz vendor format.
func NewMuLawTranscoder() *MuLawTranscoder {
	return &MuLawTranscoder{}
}

// VendorFormat returns µ-law mono 8 kHz.
func (t *MuLawTranscoder) VendorFormat() Format {
	return FormatMuLaw8k
}

// ToCanonical decodes µ-law bytes to PCM16 and upsamples 8 kHz to 16 kHz.
// The output holds exactly two 16-bit samples per input byte.
func (t *MuLawTranscoder) ToCanonical(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, &ConversionError{Format: FormatMuLaw8k, Len: 0, Reason: "empty payload"}
	}

	pcm8k := g711.DecodeUlaw(payload)
	return upsample2x(pcm8k), nil
}

// FromCanonical downsamples canonical PCM16 from 16 kHz to 8 kHz and encodes
// to µ-law. A trailing unpaired sample is buffered and prefixed to the next
// call.
func (t *MuLawTranscoder) FromCanonical(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, &ConversionError{
			Format: FormatPCM16k,
			Len:    len(pcm),
			Reason: "length is not a multiple of the 16-bit sample width",
		}
	}
	if len(pcm) == 0 {
		return nil, &ConversionError{Format: FormatPCM16k, Len: 0, Reason: "empty payload"}
	}

	t.mu.Lock()
	if t.hasCarry {
		joined := make([]byte, 0, len(t.carry)+len(pcm))
		joined = append(joined, t.carry...)
		joined = append(joined, pcm...)
		pcm = joined
		t.hasCarry = false
	}

	pcm8k, rest := downsample2x(pcm)
	if rest != nil {
		t.carry = append(t.carry[:0], rest...)
		t.hasCarry = true
	}
	t.mu.Unlock()

	return g711.EncodeUlaw(pcm8k), nil
}

// upsample2x doubles the sample rate of little-endian PCM16 by inserting one
// midpoint-interpolated sample after each input sample. Even output samples
// are the unmodified inputs, so decimating the result recovers the original
// signal exactly.
func upsample2x(pcm []byte) []byte {
	n := len(pcm) / 2
	out := make([]byte, n*4)

	for i := 0; i < n; i++ {
		cur := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8

		next := cur // duplicate the final sample
		if i+1 < n {
			next = int16(pcm[(i+1)*2]) | int16(pcm[(i+1)*2+1])<<8
		}
		mid := int16((int32(cur) + int32(next)) / 2)

		out[i*4] = byte(cur)
		out[i*4+1] = byte(uint16(cur) >> 8)
		out[i*4+2] = byte(mid)
		out[i*4+3] = byte(uint16(mid) >> 8)
	}

	return out
}

// downsample2x halves the sample rate of little-endian PCM16 by keeping the
// first sample of every pair. If the input holds an odd number of samples
// the unpaired trailing sample is returned in rest.
func downsample2x(pcm []byte) (out, rest []byte) {
	n := len(pcm) / 2
	pairs := n / 2
	out = make([]byte, pairs*2)

	for i := 0; i < pairs; i++ {
		out[i*2] = pcm[i*4]
		out[i*2+1] = pcm[i*4+1]
	}

	if n%2 != 0 {
		rest = pcm[len(pcm)-2:]
	}
	return out, rest
}
