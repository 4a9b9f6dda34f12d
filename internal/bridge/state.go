// Package bridge relays audio and control events between a dialer media
// stream and an agent conversation for the lifetime of one call.
package bridge

// Cause identifies which side, or which fault, ended a call. The first
// cause observed wins; later teardown paths keep it.
type Cause string

const (
	// CauseDialerStop means the dialer sent an explicit stop event.
	CauseDialerStop Cause = "dialer_stop"
	// CauseDialerClosed means the dialer socket closed without a stop event.
	CauseDialerClosed Cause = "dialer_closed"
	// CauseAgentClosed means the agent ended the conversation.
	CauseAgentClosed Cause = "agent_closed"
	// CauseTimeout means the call hit the maximum duration ceiling.
	CauseTimeout Cause = "timeout"
	// CauseSetupFailed means the agent connection could not be established.
	CauseSetupFailed Cause = "setup_failed"
	// CauseForced means an operator or shutdown ended the call.
	CauseForced Cause = "forced"
	// CauseError means a transport fault on either leg.
	CauseError Cause = "error"
)

func (c Cause) String() string { return string(c) }
