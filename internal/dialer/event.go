package dialer

import "fmt"

// EventKind identifies a normalized inbound dialer event.
type EventKind int

const (
	// KindUnknown is any vendor event the adapter does not recognize.
	// Bridges log and ignore these.
	KindUnknown EventKind = iota
	// KindStart is the vendor's stream-start event carrying call metadata.
	KindStart
	// KindMedia carries one frame of caller audio in the vendor's format.
	KindMedia
	// KindMark is a synchronization marker echoed back by the vendor.
	KindMark
	// KindDTMF is a keypad digit pressed by the caller.
	KindDTMF
	// KindStop is the vendor's stream-end event.
	KindStop
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindMedia:
		return "media"
	case KindMark:
		return "mark"
	case KindDTMF:
		return "dtmf"
	case KindStop:
		return "stop"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Event is a vendor-neutral inbound dialer event produced by a Handler.
type Event struct {
	Kind EventKind

	// Start metadata, set for KindStart.
	CallID           string
	StreamID         string
	CustomParameters map[string]string

	// Payload is the raw audio in the vendor's wire encoding, already
	// base64-decoded. Set for KindMedia.
	Payload []byte

	// MarkName is set for KindMark.
	MarkName string

	// Digit is set for KindDTMF.
	Digit string

	// RawType is the vendor's own event discriminator, kept for logging.
	RawType string
}
