package core

import (
	"context"
	"encoding/json"
)

// Channel executes data requests against a backend and returns raw JSON
// payloads. Providers parse the payloads into tree nodes; the core never
// interprets them.
type Channel interface {
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResponse, error)
}

// ExecuteRequest describes one backend operation.
type ExecuteRequest struct {
	Op   string
	Args map[string]string
}

// ExecuteResponse carries the backend reply payload.
type ExecuteResponse struct {
	Data json.RawMessage
}
