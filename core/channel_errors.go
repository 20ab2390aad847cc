package core

import (
	"errors"
	"fmt"

	"pkt.systems/canopy/schema"
)

// ChannelErrorKind classifies channel failures for user-facing hints.
type ChannelErrorKind string

const (
	// ChannelErrorUnknown is an uncategorized channel failure.
	ChannelErrorUnknown ChannelErrorKind = "unknown"
	// ChannelErrorNotAvailable indicates no backend exists for the session yet.
	ChannelErrorNotAvailable ChannelErrorKind = "not_available"
	// ChannelErrorNotReady indicates the backend exists but cannot serve yet.
	ChannelErrorNotReady ChannelErrorKind = "not_ready"
	// ChannelErrorExecution indicates the backend failed the request.
	ChannelErrorExecution ChannelErrorKind = "execution"
	// ChannelErrorTimeout indicates the request timed out.
	ChannelErrorTimeout ChannelErrorKind = "timeout"
	// ChannelErrorDead indicates the backend is gone and will not recover.
	ChannelErrorDead ChannelErrorKind = "dead"
)

// ChannelError wraps channel failures with a stable classification.
type ChannelError struct {
	Kind    ChannelErrorKind
	Op      string
	Message string
	Err     error
}

// NewChannelError constructs a classified channel error.
func NewChannelError(kind ChannelErrorKind, op string, err error) *ChannelError {
	return &ChannelError{Kind: kind, Op: op, Err: err}
}

func (e *ChannelError) Error() string {
	if e == nil {
		return "channel error"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("channel %s failed", e.Op)
	}
	return "channel error"
}

func (e *ChannelError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DataShapeError reports a channel payload that parsed as JSON but did not
// match the shape the provider expects. The backend answered; the answer was
// wrong. Retrying will not change it.
type DataShapeError struct {
	Provider schema.ProviderName
	Op       string
	Err      error
}

func (e *DataShapeError) Error() string {
	if e == nil {
		return "unexpected payload shape"
	}
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s payload: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("provider %s: unexpected %s payload shape", e.Provider, e.Op)
}

func (e *DataShapeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether a fetch failure is worth retrying.
// Configuration errors and data-shape mismatches are deterministic and fail
// the same way every time; transport and execution failures may clear up.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var shape *DataShapeError
	if errors.As(err, &shape) {
		return false
	}
	switch {
	case errors.Is(err, schema.ErrProviderNotFound),
		errors.Is(err, schema.ErrNoChildFetch),
		errors.Is(err, schema.ErrNodeNotFound),
		errors.Is(err, schema.ErrNodeNotExpandable),
		errors.Is(err, schema.ErrChannelUnavailable),
		errors.Is(err, schema.ErrServiceClosed):
		return false
	}
	var cerr *ChannelError
	if errors.As(err, &cerr) && cerr.Kind == ChannelErrorDead {
		return false
	}
	return true
}
