package core

import (
	"context"
	"errors"
	"time"

	"pkt.systems/canopy/internal/logx"
	"pkt.systems/canopy/schema"
	"pkt.systems/pslog"
)

var timeNow = time.Now

var fetchSleep = func(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *service) ExpandNode(ctx context.Context, req schema.ExpandNodeRequest) (schema.ExpandNodeResponse, error) {
	if ctx == nil {
		return schema.ExpandNodeResponse{}, errors.New("missing context")
	}
	sessionID, err := normalizeSessionID(req.Session)
	if err != nil {
		return schema.ExpandNodeResponse{}, err
	}
	nodeID, err := requireNodeID(req.NodeID)
	if err != nil {
		return schema.ExpandNodeResponse{}, err
	}
	log := logx.WithSessionNode(ctx, sessionID, nodeID)

	s.mu.Lock()
	sess, err := s.sessionLocked(sessionID)
	if err != nil {
		s.mu.Unlock()
		return schema.ExpandNodeResponse{}, err
	}
	node, ancestors, ok := Locate(sess.roots, nodeID)
	if !ok {
		s.mu.Unlock()
		log.Warn("service node expand failed", "err", schema.ErrNodeNotFound)
		return schema.ExpandNodeResponse{}, schema.ErrNodeNotFound
	}
	if !node.IsParent {
		s.mu.Unlock()
		log.Warn("service node expand failed", "err", schema.ErrNodeNotExpandable)
		return schema.ExpandNodeResponse{}, schema.ErrNodeNotExpandable
	}
	owner, err := OwnerOf(node, ancestors)
	if err != nil {
		s.mu.Unlock()
		return schema.ExpandNodeResponse{}, err
	}
	s.interactLocked(sess)
	if s.markOpenLocked(sess, nodeID) {
		s.scheduleSaveLocked(sess, log)
	}
	status := s.fetchForExpandLocked(sess, node, owner, log)
	s.mu.Unlock()

	if !s.cfg.DisableAuditLogging {
		log.Debug("audit interaction", "action", "expand")
	}
	log.Debug("service node expanded", "state", status.State)
	return schema.ExpandNodeResponse{Status: status}, nil
}

func (s *service) RetryNode(ctx context.Context, req schema.RetryNodeRequest) (schema.RetryNodeResponse, error) {
	if ctx == nil {
		return schema.RetryNodeResponse{}, errors.New("missing context")
	}
	sessionID, err := normalizeSessionID(req.Session)
	if err != nil {
		return schema.RetryNodeResponse{}, err
	}
	nodeID, err := requireNodeID(req.NodeID)
	if err != nil {
		return schema.RetryNodeResponse{}, err
	}
	log := logx.WithSessionNode(ctx, sessionID, nodeID)

	s.mu.Lock()
	sess, err := s.sessionLocked(sessionID)
	if err != nil {
		s.mu.Unlock()
		return schema.RetryNodeResponse{}, err
	}
	node, ancestors, ok := Locate(sess.roots, nodeID)
	if !ok {
		s.mu.Unlock()
		log.Warn("service node retry failed", "err", schema.ErrNodeNotFound)
		return schema.RetryNodeResponse{}, schema.ErrNodeNotFound
	}
	if !node.IsParent {
		s.mu.Unlock()
		log.Warn("service node retry failed", "err", schema.ErrNodeNotExpandable)
		return schema.RetryNodeResponse{}, schema.ErrNodeNotExpandable
	}
	owner, err := OwnerOf(node, ancestors)
	if err != nil {
		s.mu.Unlock()
		return schema.RetryNodeResponse{}, err
	}
	s.interactLocked(sess)
	if s.markOpenLocked(sess, nodeID) {
		s.scheduleSaveLocked(sess, log)
	}
	var status schema.FetchStatus
	key := slotKeyFor(node)
	slot, active := sess.slots[key]
	switch {
	case node.Loaded():
		status = s.fetchForExpandLocked(sess, node, owner, log)
	case active && slot.state == schema.FetchPending:
		status = slot.status()
	default:
		// Failed or missing slot: drop it so a fresh task is scheduled.
		delete(sess.slots, key)
		status = s.ensureFetchLocked(sess, node, owner, log).status()
	}
	s.mu.Unlock()

	if !s.cfg.DisableAuditLogging {
		log.Debug("audit interaction", "action", "retry")
	}
	log.Debug("service node retry", "state", status.State)
	return schema.RetryNodeResponse{Status: status}, nil
}

// fetchForExpandLocked resolves the status an expand should report. Loaded
// nodes answer from cache without touching the scheduler; unloaded nodes get
// a slot, scheduling a task when none is tracked yet.
func (s *service) fetchForExpandLocked(sess *session, node *schema.TreeNode, owner schema.ProviderName, log pslog.Logger) schema.FetchStatus {
	if node.Loaded() {
		key := slotKeyFor(node)
		if slot, ok := sess.slots[key]; ok {
			return slot.status()
		}
		return schema.FetchStatus{
			NodeID:   node.ID,
			Provider: owner,
			Kind:     key.kind,
			State:    schema.FetchResolved,
		}
	}
	return s.ensureFetchLocked(sess, node, owner, log).status()
}

// ensureFetchLocked returns the slot for node, creating it and spawning the
// fetch task when the slot is absent. Existing slots are returned as-is so
// concurrent expands coalesce onto one in-flight task.
func (s *service) ensureFetchLocked(sess *session, node *schema.TreeNode, owner schema.ProviderName, log pslog.Logger) *fetchSlot {
	sweepSlots(sess, timeNow())
	key := slotKeyFor(node)
	if slot, ok := sess.slots[key]; ok {
		return slot
	}
	slot := &fetchSlot{
		key:      key,
		nodeID:   node.ID,
		provider: owner,
		state:    schema.FetchPending,
	}
	sess.slots[key] = slot
	log.Debug("service fetch scheduled", "fetch", key.kind, "key", key.key, "provider", owner)
	go s.runFetch(sess.id, key, logx.WithFetch(logx.WithProvider(log, owner), key.kind, key.key))
	return slot
}

// runFetch drives one slot to resolution. Every transition re-checks the
// session and slot under the service mutex, so a session close or a retry
// re-arm simply orphans this task.
func (s *service) runFetch(sessionID schema.SessionID, key fetchKey, log pslog.Logger) {
	for attempt := 1; ; attempt++ {
		s.mu.Lock()
		sess, ok := s.sessions[sessionID]
		if !ok {
			s.mu.Unlock()
			log.Debug("service fetch abandoned", "reason", "session gone")
			return
		}
		slot, ok := sess.slots[key]
		if !ok || slot.state != schema.FetchPending {
			s.mu.Unlock()
			log.Debug("service fetch abandoned", "reason", "slot replaced")
			return
		}
		slot.attempts = attempt
		roots := sess.roots
		channel := sess.channel
		nodeID := slot.nodeID
		provider := slot.provider
		s.mu.Unlock()

		// Providers see a context carrying the annotated logger, detached
		// from the request that scheduled the fetch.
		taskCtx := logx.ContextWithSessionNodeLogger(s.base, log, sessionID, nodeID)
		attemptCtx, cancel := context.WithTimeout(taskCtx, s.cfg.FetchTimeout)
		var children []*schema.TreeNode
		var err error
		if key.kind == schema.FetchRoot {
			children, err = s.manager.FetchRootsFor(attemptCtx, provider, channel)
		} else {
			children, err = s.manager.FetchChildrenOf(attemptCtx, roots, nodeID, channel)
		}
		cancel()
		if err == nil {
			s.commitFetch(sessionID, key, children, log)
			return
		}
		if !Retryable(err) || attempt > s.retryBudget(key.kind) {
			s.failFetch(sessionID, key, err, log)
			return
		}
		delay := backoffDelay(s.cfg, attempt)
		log.Debug("service fetch retry", "attempt", attempt, "delay", delay, "err", err)
		if !fetchSleep(s.base, delay) {
			s.failFetch(sessionID, key, err, log)
			return
		}
	}
}

// commitFetch installs fetched children via a copy-on-write replacement and
// emits exactly one node update for the new revision.
func (s *service) commitFetch(sessionID schema.SessionID, key fetchKey, children []*schema.TreeNode, log pslog.Logger) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		log.Debug("service fetch commit dropped", "reason", "session gone")
		return
	}
	slot, ok := sess.slots[key]
	if !ok || slot.state != schema.FetchPending {
		s.mu.Unlock()
		log.Debug("service fetch commit dropped", "reason", "slot replaced")
		return
	}
	node, _, ok := Locate(sess.roots, slot.nodeID)
	if !ok {
		slot.state = schema.FetchFailed
		slot.lastErr = schema.ErrNodeNotFound
		slot.retryable = false
		s.mu.Unlock()
		log.Warn("service fetch commit dropped", "reason", "node gone")
		return
	}
	repl := node.Clone()
	repl.Children = children
	next, ok := ReplaceNode(sess.roots, slot.nodeID, repl)
	if !ok {
		slot.state = schema.FetchFailed
		slot.lastErr = schema.ErrNodeNotFound
		slot.retryable = false
		s.mu.Unlock()
		log.Warn("service fetch commit dropped", "reason", "node gone")
		return
	}
	sess.roots = next
	sess.revision++
	slot.state = schema.FetchResolved
	slot.lastErr = nil
	slot.retryable = false
	slot.expiry = timeNow().Add(s.cacheTTL(key.kind))
	event := schema.NodeUpdateEvent{
		Session:  sessionID,
		NodeID:   slot.nodeID,
		Node:     repl,
		Revision: sess.revision,
	}
	s.replayRestoreLocked(sess, log)
	s.mu.Unlock()

	log.Info("service fetch committed", "children", len(children), "revision", event.Revision)
	s.emitNodeUpdate(event)
}

// failFetch marks the slot failed and emits the failure so hosts can offer
// a retry affordance when the error class allows one.
func (s *service) failFetch(sessionID schema.SessionID, key fetchKey, fetchErr error, log pslog.Logger) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		log.Debug("service fetch failure dropped", "reason", "session gone")
		return
	}
	slot, ok := sess.slots[key]
	if !ok || slot.state != schema.FetchPending {
		s.mu.Unlock()
		log.Debug("service fetch failure dropped", "reason", "slot replaced")
		return
	}
	slot.state = schema.FetchFailed
	slot.lastErr = fetchErr
	slot.retryable = Retryable(fetchErr)
	event := schema.FetchFailureEvent{
		Session:   sessionID,
		Kind:      key.kind,
		NodeID:    slot.nodeID,
		Provider:  slot.provider,
		Attempts:  slot.attempts,
		Error:     fetchErr.Error(),
		Retryable: slot.retryable,
	}
	s.replayRestoreLocked(sess, log)
	s.mu.Unlock()

	log.Warn("service fetch failed", "attempts", event.Attempts, "retryable", event.Retryable, "err", fetchErr)
	s.emitFetchFailure(event)
}

func (s *service) retryBudget(kind schema.FetchKind) int {
	if kind == schema.FetchRoot {
		return s.cfg.RootRetries
	}
	return s.cfg.ChildRetries
}

func (s *service) cacheTTL(kind schema.FetchKind) time.Duration {
	if kind == schema.FetchRoot {
		return s.cfg.RootCacheTTL
	}
	return s.cfg.ChildCacheTTL
}

// backoffDelay doubles the configured base per completed attempt, clamped
// to the configured cap.
func backoffDelay(cfg schema.ServiceConfig, attempt int) time.Duration {
	delay := cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= cfg.BackoffCap {
			return cfg.BackoffCap
		}
	}
	if delay > cfg.BackoffCap {
		return cfg.BackoffCap
	}
	return delay
}
