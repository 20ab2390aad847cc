package schema

// NodeUpdateEvent announces one committed forest mutation: the replacement
// node and the snapshot revision that now contains it. Emitted exactly once
// per successful fetch commit.
type NodeUpdateEvent struct {
	Session  SessionID
	NodeID   NodeID
	Node     *TreeNode
	Revision uint64
}

// FetchFailureEvent announces a fetch that exhausted its retry budget or
// failed on a non-retryable error. Retryable reports whether a retry could
// still succeed, which is what drives the host's retry affordance.
type FetchFailureEvent struct {
	Session   SessionID
	Kind      FetchKind
	NodeID    NodeID
	Provider  ProviderName
	Attempts  int
	Error     string
	Retryable bool
}

// SessionEventType enumerates session lifecycle notifications.
type SessionEventType string

const (
	// SessionOpened is emitted after a session is opened.
	SessionOpened SessionEventType = "opened"
	// SessionClosed is emitted after a session is closed.
	SessionClosed SessionEventType = "closed"
	// SessionStateSaved is emitted after the open-node set is persisted.
	SessionStateSaved SessionEventType = "state-saved"
)

// SessionEvent announces a session lifecycle change. StateSaved events carry
// the open set that was just written.
type SessionEvent struct {
	Session SessionID
	Type    SessionEventType
	Open    []NodeID
}

// EventType discriminates the Event envelope payload.
type EventType string

const (
	// EventNode carries a committed forest mutation.
	EventNode EventType = "node"
	// EventFailure carries a terminal fetch failure.
	EventFailure EventType = "failure"
	// EventSession carries a session lifecycle update.
	EventSession EventType = "session"
)

// Event is the envelope delivered to event subscribers. Exactly one payload
// field is populated, selected by Type.
type Event struct {
	Type    EventType
	Node    NodeUpdateEvent
	Failure FetchFailureEvent
	Session SessionEvent
}
