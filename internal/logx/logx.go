package logx

import (
	"context"

	"pkt.systems/canopy/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	sessionKey contextKey = iota
	nodeKey
)

// WithSession annotates the logger with the session id if present.
func WithSession(ctx context.Context, sessionID schema.SessionID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if sessionID != "" {
		if current, ok := ctx.Value(sessionKey).(schema.SessionID); ok && current == sessionID {
			return log
		}
		log = log.With("session", sessionID)
	}
	return log
}

// WithSessionNode annotates the logger with session and node identifiers.
func WithSessionNode(ctx context.Context, sessionID schema.SessionID, nodeID schema.NodeID) pslog.Logger {
	log := WithSession(ctx, sessionID)
	if nodeID != "" {
		if current, ok := ctx.Value(nodeKey).(schema.NodeID); ok && current == nodeID {
			return log
		}
		log = log.With("node", nodeID)
	}
	return log
}

// WithProvider annotates the logger with a provider name when available.
func WithProvider(log pslog.Logger, provider schema.ProviderName) pslog.Logger {
	if provider != "" {
		log = log.With("provider", provider)
	}
	return log
}

// WithFetch annotates the logger with fetch slot metadata when available.
func WithFetch(log pslog.Logger, kind schema.FetchKind, key string) pslog.Logger {
	if kind != "" {
		log = log.With("fetch", kind)
	}
	if key != "" {
		log = log.With("key", key)
	}
	return log
}

// ContextWithSession stores the session marker on the context for log de-duplication.
func ContextWithSession(ctx context.Context, sessionID schema.SessionID) context.Context {
	if ctx == nil || sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}

// ContextWithNode stores the node marker on the context for log de-duplication.
func ContextWithNode(ctx context.Context, nodeID schema.NodeID) context.Context {
	if ctx == nil || nodeID == "" {
		return ctx
	}
	return context.WithValue(ctx, nodeKey, nodeID)
}

// ContextWithSessionNode stores session/node markers on the context for log de-duplication.
func ContextWithSessionNode(ctx context.Context, sessionID schema.SessionID, nodeID schema.NodeID) context.Context {
	return ContextWithNode(ContextWithSession(ctx, sessionID), nodeID)
}

// ContextWithSessionLogger attaches the logger and session marker to the context.
func ContextWithSessionLogger(ctx context.Context, log pslog.Logger, sessionID schema.SessionID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithSession(ctx, sessionID)
}

// ContextWithSessionNodeLogger attaches the logger and session/node markers to the context.
func ContextWithSessionNodeLogger(ctx context.Context, log pslog.Logger, sessionID schema.SessionID, nodeID schema.NodeID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithSessionNode(ctx, sessionID, nodeID)
}
