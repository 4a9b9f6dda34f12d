package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sebas/voicegate/internal/metrics"
)

// ErrCapacityExceeded is returned when admission would push the number of
// live sessions past the configured ceiling.
var ErrCapacityExceeded = errors.New("session: capacity exceeded")

// ErrSessionExists is returned when a session id is still occupied, which
// includes ended sessions inside the observability grace window.
var ErrSessionExists = errors.New("session: id already in use")

// Terminator is implemented by the bridge owning a session. ForceEnd must be
// idempotent and non-blocking; the bridge drives the session to Ended on its
// own goroutines.
type Terminator interface {
	ForceEnd()
}

// Registry tracks all live call sessions and enforces the concurrency
// ceiling. Create, end and count share one mutex so the admission check is
// race-free; reads take snapshots and never hold the lock across I/O.
type Registry struct {
	ceiling int
	grace   time.Duration
	metrics *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*CallSession
	runners  map[string]Terminator
	timers   map[string]*time.Timer
	closed   bool
}

// NewRegistry creates a registry with the given admission ceiling and
// post-end retention window.
func NewRegistry(ceiling int, grace time.Duration, m *metrics.Metrics) *Registry {
	return &Registry{
		ceiling:  ceiling,
		grace:    grace,
		metrics:  m,
		sessions: make(map[string]*CallSession),
		runners:  make(map[string]Terminator),
		timers:   make(map[string]*time.Timer),
	}
}

// Create admits a new session in state Initializing. An empty sessionID gets
// a generated one. Fails with ErrCapacityExceeded when the ceiling is
// reached and with ErrSessionExists when the id is still occupied; neither
// failure mutates the registry.
func (r *Registry) Create(sessionID, agentID string, dynamicVariables map[string]any) (*CallSession, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("session: registry is shut down")
	}
	if _, exists := r.sessions[sessionID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
	}
	if r.liveCountLocked() >= r.ceiling {
		if r.metrics != nil {
			r.metrics.SessionsRejected.Inc()
		}
		return nil, fmt.Errorf("%w: ceiling %d reached", ErrCapacityExceeded, r.ceiling)
	}

	sess := &CallSession{
		SessionID:        sessionID,
		AgentID:          agentID,
		DynamicVariables: dynamicVariables,
		StartedAt:        time.Now(),
		state:            StateInitializing,
	}
	r.sessions[sessionID] = sess

	if r.metrics != nil {
		r.metrics.SessionsCreated.Inc()
		r.metrics.ActiveSessions.Inc()
	}

	slog.Info("[SessionRegistry] Session admitted",
		"session_id", sessionID, "agent_id", agentID, "live", r.liveCountLocked())
	return sess, nil
}

// Attach binds the bridge that owns a session so forced termination can
// reach it.
func (r *Registry) Attach(sessionID string, t Terminator) {
	r.mu.Lock()
	r.runners[sessionID] = t
	r.mu.Unlock()
}

// Get returns a session by id.
func (r *Registry) Get(sessionID string) (*CallSession, bool) {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	r.mu.Unlock()
	return sess, ok
}

// End terminates a session. It is idempotent: ending an unknown or already
// ended session is a no-op. Sessions with a live bridge are asked to shut
// down and reach Ended on the bridge's goroutines; orphaned sessions are
// finalized here directly.
func (r *Registry) End(sessionID string) {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	runner := r.runners[sessionID]
	r.mu.Unlock()

	if !ok || sess.State().IsTerminal() {
		return
	}

	if runner != nil {
		runner.ForceEnd()
		return
	}

	// No bridge ever attached (setup aborted before Run).
	sess.BeginEnding("forced")
	r.Finalize(sess)
}

// Finalize records a session's arrival at Ended and schedules its removal
// from the live map after the grace period. Called by the owning bridge at
// the end of teardown; safe to call once per session.
func (r *Registry) Finalize(sess *CallSession) {
	if sess.State().IsTerminal() {
		return
	}
	sess.finish()

	if r.metrics != nil {
		r.metrics.ActiveSessions.Dec()
		r.metrics.SessionsEnded.Inc()
		r.metrics.SessionDuration.Observe(sess.Duration().Seconds())
	}

	slog.Info("[SessionRegistry] Session ended",
		"session_id", sess.SessionID,
		"call_id", sess.CallID(),
		"cause", sess.Cause(),
		"duration", sess.Duration().Round(time.Millisecond),
		"frames_to_agent", sess.FramesToAgent.Load(),
		"frames_to_dialer", sess.FramesToDialer.Load(),
	)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runners, sess.SessionID)
	if r.closed || r.grace <= 0 {
		delete(r.sessions, sess.SessionID)
		return
	}
	// Keep the record visible for late monitoring reads, then drop it.
	r.timers[sess.SessionID] = time.AfterFunc(r.grace, func() {
		r.mu.Lock()
		delete(r.sessions, sess.SessionID)
		delete(r.timers, sess.SessionID)
		r.mu.Unlock()
	})
}

// ActiveCount returns the number of sessions counting toward the ceiling.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.liveCountLocked()
}

func (r *Registry) liveCountLocked() int {
	n := 0
	for _, sess := range r.sessions {
		if sess.State().Live() {
			n++
		}
	}
	return n
}

// List returns a snapshot of all sessions, including recently-ended ones
// still inside the grace window.
func (r *Registry) List() []Info {
	r.mu.Lock()
	sessions := make([]*CallSession, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.Unlock()

	infos := make([]Info, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sess.Snapshot())
	}
	return infos
}

// CloseAll force-ends every session and stops retention timers. Used on
// process shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	r.closed = true
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	for _, timer := range r.timers {
		timer.Stop()
	}
	r.timers = make(map[string]*time.Timer)
	r.mu.Unlock()

	for _, id := range ids {
		r.End(id)
	}

	r.mu.Lock()
	r.sessions = make(map[string]*CallSession)
	r.mu.Unlock()

	slog.Info("[SessionRegistry] All sessions closed", "count", len(ids))
}
