package schema

// Session lifecycle.

// OpenSessionRequest describes a request to open a browsing session.
// Session ids are chosen by the host.
type OpenSessionRequest struct {
	Session SessionID
}

// OpenSessionResponse reports the initial forest plus any node ids recovered
// from persisted open state for this session.
type OpenSessionResponse struct {
	Forest   ForestSnapshot
	Restored []NodeID
}

// CloseSessionRequest describes a request to close a session. Any pending
// open-state write is flushed before the session is discarded.
type CloseSessionRequest struct {
	Session SessionID
}

// CloseSessionResponse reports the open-node set at close time.
type CloseSessionResponse struct {
	Open []NodeID
}

// Forest view.

// ForestRequest describes a request for the current forest snapshot.
type ForestRequest struct {
	Session SessionID
}

// ForestResponse reports the snapshot and the scheduler's non-idle fetch slots.
type ForestResponse struct {
	Forest  ForestSnapshot
	Fetches []FetchStatus
}

// Expansion and collapse.

// ExpandNodeRequest describes a request to open a node. When the node's
// children are not loaded a fetch is scheduled.
type ExpandNodeRequest struct {
	Session SessionID
	NodeID  NodeID
}

// ExpandNodeResponse reports the fetch slot backing the expansion. State
// resolved with zero attempts means the children were already loaded.
type ExpandNodeResponse struct {
	Status FetchStatus
}

// CollapseNodeRequest describes a request to close a node. In-flight fetches
// are not cancelled.
type CollapseNodeRequest struct {
	Session SessionID
	NodeID  NodeID
}

// CollapseNodeResponse reports whether a fetch for the node is still running.
type CollapseNodeResponse struct {
	FetchActive bool
}

// RetryNodeRequest describes a request to re-arm a failed fetch slot and
// schedule a fresh attempt.
type RetryNodeRequest struct {
	Session SessionID
	NodeID  NodeID
}

// RetryNodeResponse reports the slot after re-arming.
type RetryNodeResponse struct {
	Status FetchStatus
}

// Node detail.

// NodeInfoRequest describes a request to resolve a node and its provenance.
type NodeInfoRequest struct {
	Session SessionID
	NodeID  NodeID
}

// NodeInfoResponse reports the node, its ancestors ordered root first, the
// owning provider and the detail renderer for the node's type.
type NodeInfoResponse struct {
	Node      *TreeNode
	Ancestors []*TreeNode
	Provider  ProviderName
	Info      InfoRenderer
}

// Open state.

// OpenNodesRequest describes a request to read the session's open-state tracker.
type OpenNodesRequest struct {
	Session SessionID
}

// OpenNodesResponse reports the open set, the restore machine state and
// whether the user has touched the tree since the session opened.
type OpenNodesResponse struct {
	Open       []NodeID
	Restore    RestoreState
	Interacted bool
}
