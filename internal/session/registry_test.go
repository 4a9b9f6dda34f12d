package session

import (
	"errors"
	"testing"
	"time"
)

func newTestRegistry(ceiling int, grace time.Duration) *Registry {
	return NewRegistry(ceiling, grace, nil)
}

func TestCreateAssignsIDWhenEmpty(t *testing.T) {
	r := newTestRegistry(10, 0)

	sess, err := r.Create("", "agent-1", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sess.SessionID == "" {
		t.Fatal("expected a generated session id")
	}
	if sess.State() != StateInitializing {
		t.Fatalf("expected Initializing, got %s", sess.State())
	}
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	r := newTestRegistry(10, 0)

	if _, err := r.Create("dup", "agent-1", nil); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	_, err := r.Create("dup", "agent-1", nil)
	if !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
}

func TestCreateEnforcesCeiling(t *testing.T) {
	r := newTestRegistry(10, 0)

	for i := 0; i < 10; i++ {
		if _, err := r.Create("", "agent-1", nil); err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
	}

	_, err := r.Create("", "agent-1", nil)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if got := r.ActiveCount(); got != 10 {
		t.Fatalf("rejected admission changed count: got %d, want 10", got)
	}
}

func TestEndedSessionFreesCapacity(t *testing.T) {
	r := newTestRegistry(1, time.Minute)

	sess, err := r.Create("s1", "agent-1", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	sess.BeginEnding("dialer_stop")
	r.Finalize(sess)

	if got := r.ActiveCount(); got != 0 {
		t.Fatalf("ended session still counted: got %d", got)
	}
	// The slot is free even though the record lingers for monitoring.
	if _, err := r.Create("s2", "agent-1", nil); err != nil {
		t.Fatalf("Create after end failed: %v", err)
	}
	// But the ended id stays occupied during the grace window.
	if _, err := r.Create("s1", "agent-1", nil); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists for retained id, got %v", err)
	}
}

func TestEndIsIdempotent(t *testing.T) {
	r := newTestRegistry(10, 0)

	sess, err := r.Create("s1", "agent-1", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	r.End("s1")
	if sess.State() != StateEnded {
		t.Fatalf("expected Ended, got %s", sess.State())
	}
	r.End("s1")
	r.End("never-existed")

	if got := r.ActiveCount(); got != 0 {
		t.Fatalf("expected 0 active, got %d", got)
	}
}

func TestEndDelegatesToAttachedBridge(t *testing.T) {
	r := newTestRegistry(10, 0)

	sess, err := r.Create("s1", "agent-1", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	forced := make(chan struct{}, 1)
	r.Attach("s1", terminatorFunc(func() {
		forced <- struct{}{}
		sess.BeginEnding("forced")
		r.Finalize(sess)
	}))

	r.End("s1")

	select {
	case <-forced:
	default:
		t.Fatal("attached bridge was not asked to end")
	}
	if sess.Cause() != "forced" {
		t.Fatalf("expected cause forced, got %q", sess.Cause())
	}
}

func TestGracePeriodRemoval(t *testing.T) {
	r := newTestRegistry(10, 20*time.Millisecond)

	sess, err := r.Create("s1", "agent-1", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	sess.BeginEnding("dialer_stop")
	r.Finalize(sess)

	if _, ok := r.Get("s1"); !ok {
		t.Fatal("session removed before the grace period elapsed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := r.Get("s1"); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("session not removed after the grace period")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestListIncludesEndedSessions(t *testing.T) {
	r := newTestRegistry(10, time.Minute)

	if _, err := r.Create("live", "agent-1", nil); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	sess, err := r.Create("done", "agent-1", nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	sess.BeginEnding("agent_closed")
	r.Finalize(sess)

	infos := r.List()
	if len(infos) != 2 {
		t.Fatalf("expected 2 sessions listed, got %d", len(infos))
	}
	states := map[string]State{}
	for _, info := range infos {
		states[info.SessionID] = info.State
	}
	if states["live"] != StateInitializing {
		t.Fatalf("live session state = %s", states["live"])
	}
	if states["done"] != StateEnded {
		t.Fatalf("ended session state = %s", states["done"])
	}
}

func TestCloseAllEndsEverything(t *testing.T) {
	r := newTestRegistry(10, time.Minute)

	var sessions []*CallSession
	for i := 0; i < 3; i++ {
		sess, err := r.Create("", "agent-1", nil)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		sessions = append(sessions, sess)
	}

	r.CloseAll()

	for _, sess := range sessions {
		if sess.State() != StateEnded {
			t.Fatalf("session %s not ended: %s", sess.SessionID, sess.State())
		}
	}
	if got := r.ActiveCount(); got != 0 {
		t.Fatalf("expected 0 active after CloseAll, got %d", got)
	}
}

type terminatorFunc func()

func (f terminatorFunc) ForceEnd() { f() }
