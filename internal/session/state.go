// Package session tracks live call sessions and enforces admission control.
package session

import "fmt"

// State is the lifecycle state of a call session. Transitions are monotonic;
// there are no cycles and Ended is terminal.
type State int

const (
	// StateInitializing is the state from admission until the vendor's start
	// event has arrived and the agent connection is up.
	StateInitializing State = iota
	// StateActive means both relay directions are running.
	StateActive
	// StateEnding means a peer has signaled termination and in-flight frames
	// are draining.
	StateEnding
	// StateEnded is terminal. All resources are released.
	StateEnded
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "Initializing"
	case StateActive:
		return "Active"
	case StateEnding:
		return "Ending"
	case StateEnded:
		return "Ended"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// IsTerminal returns true when the session has ended.
func (s State) IsTerminal() bool { return s == StateEnded }

// Live reports whether the session counts toward the admission ceiling.
func (s State) Live() bool { return s == StateInitializing || s == StateActive }

// validTransitions defines which state transitions are allowed. A session
// may go straight from Initializing to Ending when setup fails or the
// dialer hangs up before the stream starts.
var validTransitions = map[State][]State{
	StateInitializing: {StateActive, StateEnding},
	StateActive:       {StateEnding},
	StateEnding:       {StateEnded},
	StateEnded:        {},
}

// CanTransitionTo checks whether moving from s to next is allowed.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// MarshalJSON encodes the state as its name.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", s.String())), nil
}
