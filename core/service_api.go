package core

import (
	"context"

	"pkt.systems/canopy/schema"
)

// Service is the transport-agnostic API for browsing provider trees: session
// lifecycle, lazy expansion, fetch retries and open-state tracking. All
// methods are safe for concurrent use.
type Service interface {
	OpenSession(ctx context.Context, req schema.OpenSessionRequest) (schema.OpenSessionResponse, error)
	CloseSession(ctx context.Context, req schema.CloseSessionRequest) (schema.CloseSessionResponse, error)
	Forest(ctx context.Context, req schema.ForestRequest) (schema.ForestResponse, error)
	ExpandNode(ctx context.Context, req schema.ExpandNodeRequest) (schema.ExpandNodeResponse, error)
	CollapseNode(ctx context.Context, req schema.CollapseNodeRequest) (schema.CollapseNodeResponse, error)
	RetryNode(ctx context.Context, req schema.RetryNodeRequest) (schema.RetryNodeResponse, error)
	NodeInfo(ctx context.Context, req schema.NodeInfoRequest) (schema.NodeInfoResponse, error)
	OpenNodes(ctx context.Context, req schema.OpenNodesRequest) (schema.OpenNodesResponse, error)
	Close(ctx context.Context) error
}
