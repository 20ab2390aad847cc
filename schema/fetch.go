package schema

// FetchKind distinguishes the two request classes the fetch scheduler tracks.
type FetchKind string

const (
	// FetchRoot is a provider top-level fetch, keyed by provider name.
	FetchRoot FetchKind = "root"
	// FetchChildren is a per-node child fetch, keyed by node id.
	FetchChildren FetchKind = "children"
)

// FetchState is the lifecycle state of one fetch slot.
type FetchState string

const (
	// FetchIdle means no fetch has been scheduled for the slot.
	FetchIdle FetchState = "idle"
	// FetchPending means a fetch task is running or backing off.
	FetchPending FetchState = "pending"
	// FetchResolved means the last fetch committed successfully.
	FetchResolved FetchState = "resolved"
	// FetchFailed means the last fetch exhausted its budget or hit a
	// non-retryable error. A retry re-arms the slot.
	FetchFailed FetchState = "failed"
)

// FetchStatus reports the scheduler's view of one fetch slot.
type FetchStatus struct {
	NodeID    NodeID
	Provider  ProviderName
	Kind      FetchKind
	State     FetchState
	Attempts  int
	Error     string
	Retryable bool
}
