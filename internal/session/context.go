package session

import (
	"log/slog"
	"time"

	"github.com/sebas/voicegate/internal/store"
)

// CallContext carries the agent routing data captured when a call is placed
// or accepted, keyed by the vendor call id until the media stream connects.
type CallContext struct {
	AgentID          string
	DynamicVariables map[string]any
	CreatedAt        time.Time
}

// ContextStore holds pending call contexts between webhook and media stream.
// Entries for calls whose stream never connects expire on their own.
type ContextStore struct {
	ttl     time.Duration
	entries *store.TTLStore[string, CallContext]
}

// NewContextStore creates a store whose entries live for ttl.
func NewContextStore(ttl time.Duration) *ContextStore {
	cs := &ContextStore{ttl: ttl}
	cs.entries = store.New(ttl, func(callID string, _ CallContext) {
		slog.Warn("[ContextStore] Call never connected a media stream", "call_id", callID)
	})
	return cs
}

// Save records the context for a pending call.
func (cs *ContextStore) Save(callID, agentID string, dynamicVariables map[string]any) {
	cs.entries.Put(callID, CallContext{
		AgentID:          agentID,
		DynamicVariables: dynamicVariables,
		CreatedAt:        time.Now(),
	}, cs.ttl)
}

// Claim consumes the context for a call. Each pending call is claimed at
// most once; a second stream for the same call id gets nothing.
func (cs *ContextStore) Claim(callID string) (CallContext, bool) {
	return cs.entries.Take(callID)
}

// Pending returns the number of calls still waiting for a media stream.
func (cs *ContextStore) Pending() int { return cs.entries.Len() }

// Close releases the store.
func (cs *ContextStore) Close() { cs.entries.Close() }
