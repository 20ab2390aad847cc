package core

import (
	"context"

	"pkt.systems/canopy/schema"
)

// ChannelInfo describes the backend serving a session.
type ChannelInfo struct {
	Backend string
}

// ChannelRequest selects a channel for a session.
type ChannelRequest struct {
	Session schema.SessionID
}

// ChannelResponse returns a channel plus context.
type ChannelResponse struct {
	Channel Channel
	Info    ChannelInfo
}

// ChannelCloseRequest identifies a session whose channel should be released.
type ChannelCloseRequest struct {
	Session schema.SessionID
}

// ChannelProvider returns the data channel backing a session.
type ChannelProvider interface {
	ChannelFor(ctx context.Context, req ChannelRequest) (ChannelResponse, error)
	CloseSession(ctx context.Context, req ChannelCloseRequest) error
	CloseAll(ctx context.Context) error
}

// StaticChannelProvider wraps a single channel instance for all sessions.
type StaticChannelProvider struct {
	Channel Channel
	Backend string
}

// ChannelFor returns the configured channel.
func (p StaticChannelProvider) ChannelFor(_ context.Context, _ ChannelRequest) (ChannelResponse, error) {
	if p.Channel == nil {
		return ChannelResponse{}, schema.ErrChannelUnavailable
	}
	return ChannelResponse{Channel: p.Channel, Info: ChannelInfo{Backend: p.Backend}}, nil
}

// CloseSession is a no-op for the static provider.
func (p StaticChannelProvider) CloseSession(_ context.Context, _ ChannelCloseRequest) error {
	return nil
}

// CloseAll is a no-op for the static provider.
func (p StaticChannelProvider) CloseAll(_ context.Context) error {
	return nil
}
