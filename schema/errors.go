package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidSession indicates an invalid session identifier.
	ErrInvalidSession = errors.New("invalid session")
	// ErrSessionExists indicates the session id is already open.
	ErrSessionExists = errors.New("session already open")
	// ErrSessionNotFound indicates a requested session could not be found.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNodeNotFound indicates a node id is absent from the forest.
	ErrNodeNotFound = errors.New("node not found")
	// ErrNodeNotExpandable indicates an expand was requested on a leaf.
	ErrNodeNotExpandable = errors.New("node is not expandable")
	// ErrProviderNotFound indicates a provider name is not registered.
	ErrProviderNotFound = errors.New("provider not found")
	// ErrInvalidProvider indicates an invalid provider name.
	ErrInvalidProvider = errors.New("invalid provider name")
	// ErrProviderConflict indicates a duplicate provider registration.
	ErrProviderConflict = errors.New("provider already registered")
	// ErrNoProviders indicates the registry is empty.
	ErrNoProviders = errors.New("no providers registered")
	// ErrNoChildFetch indicates a provider declares no child fetch for a
	// node type it returned.
	ErrNoChildFetch = errors.New("no child fetch for node type")
	// ErrChannelUnavailable indicates no data channel is configured.
	ErrChannelUnavailable = errors.New("data channel not configured")
	// ErrServiceClosed indicates the service has been shut down.
	ErrServiceClosed = errors.New("service closed")
)
