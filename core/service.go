package core

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"

	"pkt.systems/canopy/internal/logx"
	"pkt.systems/canopy/internal/persist"
	"pkt.systems/canopy/schema"
	"pkt.systems/pslog"
)

// service implements the core service behavior.
type service struct {
	cfg      schema.ServiceConfig
	registry *Registry
	manager  *Manager
	channels ChannelProvider
	sink     EventSink
	store    *persist.Store
	logger   pslog.Logger

	// base is cancelled on Close; every fetch attempt derives from it.
	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	sessions map[schema.SessionID]*session
}

// NewService constructs the core service implementation.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	registry, err := NewRegistry(deps.Providers)
	if err != nil {
		return nil, err
	}
	var store *persist.Store
	if cfg.StateDir != "" {
		store, err = persist.NewStoreWithLogger(filepath.Join(cfg.StateDir, "opensets"), deps.Logger)
		if err != nil {
			return nil, err
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	base, cancel := context.WithCancel(context.Background())
	return &service{
		cfg:      cfg,
		registry: registry,
		manager:  NewManager(registry, logger),
		channels: deps.ChannelProvider,
		sink:     deps.EventSink,
		store:    store,
		logger:   logger,
		base:     base,
		cancel:   cancel,
		sessions: make(map[schema.SessionID]*session),
	}, nil
}

func (s *service) OpenSession(ctx context.Context, req schema.OpenSessionRequest) (schema.OpenSessionResponse, error) {
	if ctx == nil {
		return schema.OpenSessionResponse{}, errors.New("missing context")
	}
	sessionID, err := normalizeSessionID(req.Session)
	if err != nil {
		return schema.OpenSessionResponse{}, err
	}
	baseLog := logx.WithSession(ctx, sessionID)
	ctx = logx.ContextWithSessionLogger(ctx, baseLog, sessionID)
	log := baseLog

	if s.channels == nil {
		log.Warn("service session open failed", "err", schema.ErrChannelUnavailable)
		return schema.OpenSessionResponse{}, schema.ErrChannelUnavailable
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return schema.OpenSessionResponse{}, schema.ErrServiceClosed
	}
	if _, ok := s.sessions[sessionID]; ok {
		s.mu.Unlock()
		log.Warn("service session open failed", "err", schema.ErrSessionExists)
		return schema.OpenSessionResponse{}, schema.ErrSessionExists
	}
	s.mu.Unlock()

	chResp, err := s.channels.ChannelFor(ctx, ChannelRequest{Session: sessionID})
	if err != nil {
		log.Warn("service session open failed", "err", err)
		return schema.OpenSessionResponse{}, err
	}

	restored := s.loadOpenSet(sessionID, log)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return schema.OpenSessionResponse{}, schema.ErrServiceClosed
	}
	if _, ok := s.sessions[sessionID]; ok {
		s.mu.Unlock()
		log.Warn("service session open failed", "err", schema.ErrSessionExists)
		return schema.OpenSessionResponse{}, schema.ErrSessionExists
	}
	sess := &session{
		id:         sessionID,
		channel:    chResp.Channel,
		roots:      s.manager.InitialForest(),
		slots:      make(map[fetchKey]*fetchSlot),
		open:       make(map[schema.NodeID]struct{}),
		restoreIDs: restored,
		restore:    schema.RestoreUninitialized,
	}
	s.sessions[sessionID] = sess
	s.replayRestoreLocked(sess, log)
	resp := schema.OpenSessionResponse{
		Forest:   sess.snapshot(),
		Restored: append([]schema.NodeID(nil), restored...),
	}
	s.mu.Unlock()

	log.Info("service session opened", "providers", s.registry.Len(), "restored", len(restored), "backend", chResp.Info.Backend)
	s.emitSessionEvent(schema.SessionEvent{Session: sessionID, Type: schema.SessionOpened})
	return resp, nil
}

func (s *service) CloseSession(ctx context.Context, req schema.CloseSessionRequest) (schema.CloseSessionResponse, error) {
	if ctx == nil {
		return schema.CloseSessionResponse{}, errors.New("missing context")
	}
	sessionID, err := normalizeSessionID(req.Session)
	if err != nil {
		return schema.CloseSessionResponse{}, err
	}
	log := logx.WithSession(ctx, sessionID)

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		log.Warn("service session close failed", "err", schema.ErrSessionNotFound)
		return schema.CloseSessionResponse{}, schema.ErrSessionNotFound
	}
	if sess.saveTimer != nil {
		sess.saveTimer.Stop()
		sess.saveTimer = nil
	}
	flush := sess.savePending
	sess.savePending = false
	open := sess.openList()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if flush {
		s.writeOpenSet(sessionID, open, log)
	}
	if s.channels != nil {
		_ = s.channels.CloseSession(ctx, ChannelCloseRequest{Session: sessionID})
	}
	log.Info("service session closed", "open", len(open))
	s.emitSessionEvent(schema.SessionEvent{Session: sessionID, Type: schema.SessionClosed, Open: open})
	return schema.CloseSessionResponse{Open: open}, nil
}

func (s *service) Forest(ctx context.Context, req schema.ForestRequest) (schema.ForestResponse, error) {
	if ctx == nil {
		return schema.ForestResponse{}, errors.New("missing context")
	}
	sessionID, err := normalizeSessionID(req.Session)
	if err != nil {
		return schema.ForestResponse{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.sessionLocked(sessionID)
	if err != nil {
		return schema.ForestResponse{}, err
	}
	sweepSlots(sess, timeNow())
	return schema.ForestResponse{
		Forest:  sess.snapshot(),
		Fetches: sess.fetchStatuses(),
	}, nil
}

func (s *service) NodeInfo(ctx context.Context, req schema.NodeInfoRequest) (schema.NodeInfoResponse, error) {
	if ctx == nil {
		return schema.NodeInfoResponse{}, errors.New("missing context")
	}
	sessionID, err := normalizeSessionID(req.Session)
	if err != nil {
		return schema.NodeInfoResponse{}, err
	}
	nodeID, err := requireNodeID(req.NodeID)
	if err != nil {
		return schema.NodeInfoResponse{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.sessionLocked(sessionID)
	if err != nil {
		return schema.NodeInfoResponse{}, err
	}
	node, ancestors, ok := Locate(sess.roots, nodeID)
	if !ok {
		return schema.NodeInfoResponse{}, schema.ErrNodeNotFound
	}
	owner, err := OwnerOf(node, ancestors)
	if err != nil {
		return schema.NodeInfoResponse{}, err
	}
	return schema.NodeInfoResponse{
		Node:      node,
		Ancestors: append([]*schema.TreeNode(nil), ancestors...),
		Provider:  owner,
		Info:      node.Info,
	}, nil
}

func (s *service) OpenNodes(ctx context.Context, req schema.OpenNodesRequest) (schema.OpenNodesResponse, error) {
	if ctx == nil {
		return schema.OpenNodesResponse{}, errors.New("missing context")
	}
	sessionID, err := normalizeSessionID(req.Session)
	if err != nil {
		return schema.OpenNodesResponse{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.sessionLocked(sessionID)
	if err != nil {
		return schema.OpenNodesResponse{}, err
	}
	return schema.OpenNodesResponse{
		Open:       sess.openList(),
		Restore:    sess.restore,
		Interacted: sess.interacted,
	}, nil
}

// Close shuts the service down: pending open-state writes are flushed,
// in-flight fetch attempts are cancelled and all sessions are discarded.
func (s *service) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	type pendingFlush struct {
		id   schema.SessionID
		open []schema.NodeID
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var flushes []pendingFlush
	count := len(s.sessions)
	for id, sess := range s.sessions {
		if sess.saveTimer != nil {
			sess.saveTimer.Stop()
			sess.saveTimer = nil
		}
		if sess.savePending {
			sess.savePending = false
			flushes = append(flushes, pendingFlush{id: id, open: sess.openList()})
		}
	}
	s.sessions = make(map[schema.SessionID]*session)
	s.mu.Unlock()

	s.cancel()
	for _, flush := range flushes {
		s.writeOpenSet(flush.id, flush.open, s.logger)
	}
	var err error
	if s.channels != nil {
		err = s.channels.CloseAll(ctx)
	}
	s.logger.Info("service closed", "sessions", count)
	return err
}

// sessionLocked resolves a session while holding the service mutex.
func (s *service) sessionLocked(id schema.SessionID) (*session, error) {
	if s.closed {
		return nil, schema.ErrServiceClosed
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, schema.ErrSessionNotFound
	}
	return sess, nil
}

func (s *service) emitNodeUpdate(event schema.NodeUpdateEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnNodeUpdate(event)
}

func (s *service) emitFetchFailure(event schema.FetchFailureEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnFetchFailure(event)
}

func (s *service) emitSessionEvent(event schema.SessionEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnSessionEvent(event)
}

func normalizeSessionID(session schema.SessionID) (schema.SessionID, error) {
	if err := schema.ValidateSessionID(session); err != nil {
		return "", schema.ErrInvalidSession
	}
	return session, nil
}

func requireNodeID(id schema.NodeID) (schema.NodeID, error) {
	if strings.TrimSpace(string(id)) == "" {
		return "", schema.ErrInvalidRequest
	}
	return id, nil
}
