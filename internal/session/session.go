package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// CallSession is one active or recently-ended bridge between a dialer call
// leg and an agent conversation. It is owned exclusively by its bridge; the
// registry holds a reference for admission accounting and monitoring.
type CallSession struct {
	// Immutable after creation.
	SessionID        string
	AgentID          string
	DynamicVariables map[string]any
	StartedAt        time.Time

	// Relay counters, updated lock-free by the owning bridge.
	FramesToAgent    atomic.Int64
	FramesToDialer   atomic.Int64
	ConversionErrors atomic.Int64

	mu       sync.RWMutex
	callID   string // vendor-assigned, absent until the start event
	streamID string // vendor transport handle for outbound frames
	state    State
	endedAt  time.Time
	cause    string
}

// State returns the current lifecycle state.
func (s *CallSession) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// CallID returns the vendor-assigned call identifier, or "" before start.
func (s *CallSession) CallID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.callID
}

// StreamID returns the vendor transport identifier, or "" before start.
func (s *CallSession) StreamID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamID
}

// Activate records the vendor metadata from the start event and moves the
// session to Active.
func (s *CallSession) Activate(callID, streamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.CanTransitionTo(StateActive) {
		return fmt.Errorf("session %s: cannot activate from %s", s.SessionID, s.state)
	}
	s.callID = callID
	s.streamID = streamID
	s.state = StateActive
	return nil
}

// BeginEnding moves the session to Ending. Returns false if it was already
// ending or ended, so only the first caller proceeds with teardown.
func (s *CallSession) BeginEnding(cause string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.CanTransitionTo(StateEnding) {
		return false
	}
	s.state = StateEnding
	s.cause = cause
	return true
}

// finish moves the session to Ended and stamps endedAt exactly once.
func (s *CallSession) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEnded {
		return
	}
	// Force the remaining path for sessions ended without a bridge.
	if s.state != StateEnding {
		s.state = StateEnding
	}
	s.state = StateEnded
	s.endedAt = time.Now()
}

// Cause returns the recorded termination cause, or "" while live.
func (s *CallSession) Cause() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cause
}

// Duration returns elapsed call time; for ended sessions it is fixed at
// endedAt - StartedAt.
func (s *CallSession) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.endedAt.IsZero() {
		return s.endedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}

// Info is a point-in-time snapshot of a session for the monitoring API.
type Info struct {
	SessionID        string     `json:"session_id"`
	CallID           string     `json:"call_id,omitempty"`
	StreamID         string     `json:"stream_id,omitempty"`
	AgentID          string     `json:"agent_id"`
	State            State      `json:"state"`
	Cause            string     `json:"cause,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	DurationSeconds  float64    `json:"duration_seconds"`
	FramesToAgent    int64      `json:"frames_to_agent"`
	FramesToDialer   int64      `json:"frames_to_dialer"`
	ConversionErrors int64      `json:"conversion_errors"`
}

// Snapshot returns the session's current monitoring view.
func (s *CallSession) Snapshot() Info {
	s.mu.RLock()
	info := Info{
		SessionID: s.SessionID,
		CallID:    s.callID,
		StreamID:  s.streamID,
		AgentID:   s.AgentID,
		State:     s.state,
		Cause:     s.cause,
		StartedAt: s.StartedAt,
	}
	if !s.endedAt.IsZero() {
		ended := s.endedAt
		info.EndedAt = &ended
		info.DurationSeconds = ended.Sub(s.StartedAt).Seconds()
	} else {
		info.DurationSeconds = time.Since(s.StartedAt).Seconds()
	}
	s.mu.RUnlock()

	info.FramesToAgent = s.FramesToAgent.Load()
	info.FramesToDialer = s.FramesToDialer.Load()
	info.ConversionErrors = s.ConversionErrors.Load()
	return info
}
