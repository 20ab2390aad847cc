package core

import (
	"context"
	"errors"
	"time"

	"pkt.systems/canopy/internal/logx"
	"pkt.systems/canopy/internal/persist"
	"pkt.systems/canopy/schema"
	"pkt.systems/pslog"
)

func (s *service) CollapseNode(ctx context.Context, req schema.CollapseNodeRequest) (schema.CollapseNodeResponse, error) {
	if ctx == nil {
		return schema.CollapseNodeResponse{}, errors.New("missing context")
	}
	sessionID, err := normalizeSessionID(req.Session)
	if err != nil {
		return schema.CollapseNodeResponse{}, err
	}
	nodeID, err := requireNodeID(req.NodeID)
	if err != nil {
		return schema.CollapseNodeResponse{}, err
	}
	log := logx.WithSessionNode(ctx, sessionID, nodeID)

	s.mu.Lock()
	sess, err := s.sessionLocked(sessionID)
	if err != nil {
		s.mu.Unlock()
		return schema.CollapseNodeResponse{}, err
	}
	node, _, ok := Locate(sess.roots, nodeID)
	if !ok {
		s.mu.Unlock()
		log.Warn("service node collapse failed", "err", schema.ErrNodeNotFound)
		return schema.CollapseNodeResponse{}, schema.ErrNodeNotFound
	}
	s.interactLocked(sess)
	if s.markClosedLocked(sess, nodeID) {
		s.scheduleSaveLocked(sess, log)
	}
	slot, tracked := sess.slots[slotKeyFor(node)]
	fetchActive := tracked && slot.state == schema.FetchPending
	s.mu.Unlock()

	if !s.cfg.DisableAuditLogging {
		log.Debug("audit interaction", "action", "collapse")
	}
	log.Debug("service node collapsed", "fetch_active", fetchActive)
	return schema.CollapseNodeResponse{FetchActive: fetchActive}, nil
}

// interactLocked flips the one-way interaction latch. The first live
// interaction cancels any restore replay still outstanding.
func (s *service) interactLocked(sess *session) {
	if sess.interacted {
		return
	}
	sess.interacted = true
	sess.restoreIDs = nil
	sess.restore = schema.RestoreIdle
}

func (s *service) markOpenLocked(sess *session, id schema.NodeID) bool {
	if _, ok := sess.open[id]; ok {
		return false
	}
	sess.open[id] = struct{}{}
	return true
}

func (s *service) markClosedLocked(sess *session, id schema.NodeID) bool {
	if _, ok := sess.open[id]; !ok {
		return false
	}
	delete(sess.open, id)
	return true
}

// scheduleSaveLocked arms the debounced open-state write. Changes landing
// inside an armed window coalesce into the single write when the timer
// fires; the window is never pushed out by later changes.
func (s *service) scheduleSaveLocked(sess *session, log pslog.Logger) {
	sess.savePending = true
	if sess.saveTimer != nil {
		return
	}
	id := sess.id
	sess.saveTimer = time.AfterFunc(s.cfg.SaveDebounce, func() {
		s.flushOpenSet(id, log)
	})
}

func (s *service) flushOpenSet(id schema.SessionID, log pslog.Logger) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	sess.saveTimer = nil
	if !sess.savePending {
		s.mu.Unlock()
		return
	}
	sess.savePending = false
	open := sess.openList()
	s.mu.Unlock()

	s.writeOpenSet(id, open, log)
}

func (s *service) writeOpenSet(id schema.SessionID, open []schema.NodeID, log pslog.Logger) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(id, persist.OpenSet{Open: open}); err != nil {
		log.Warn("service open state save failed", "err", err)
		return
	}
	log.Debug("service open state saved", "open", len(open))
	s.emitSessionEvent(schema.SessionEvent{Session: id, Type: schema.SessionStateSaved, Open: open})
}

func (s *service) loadOpenSet(id schema.SessionID, log pslog.Logger) []schema.NodeID {
	if s.store == nil {
		return nil
	}
	set, found, err := s.store.Load(id)
	if err != nil {
		log.Warn("service open state load failed", "err", err)
		return nil
	}
	if !found {
		return nil
	}
	return set.Open
}

// replayRestoreLocked opens every outstanding restore id the forest can
// currently resolve and schedules the child fetches that make deeper ids
// resolvable on a later commit. Ids that cannot make progress once nothing
// is in flight are dropped; a live interaction cancels the replay entirely.
func (s *service) replayRestoreLocked(sess *session, log pslog.Logger) {
	if sess.interacted || len(sess.restoreIDs) == 0 {
		sess.restoreIDs = nil
		sess.restore = schema.RestoreIdle
		return
	}
	var remaining []schema.NodeID
	for _, id := range sess.restoreIDs {
		node, ancestors, ok := Locate(sess.roots, id)
		if !ok {
			remaining = append(remaining, id)
			continue
		}
		if !node.IsParent {
			continue
		}
		owner, err := OwnerOf(node, ancestors)
		if err != nil {
			continue
		}
		s.markOpenLocked(sess, id)
		if !node.Loaded() {
			s.ensureFetchLocked(sess, node, owner, log)
		}
		log.Debug("service restore opened node", "node", id)
	}
	sess.restoreIDs = remaining
	if len(remaining) > 0 && !anyPendingLocked(sess) {
		log.Debug("service restore dropped unreachable ids", "count", len(remaining))
		sess.restoreIDs = nil
	}
	if len(sess.restoreIDs) > 0 {
		sess.restore = schema.RestoreRestoring
	} else {
		sess.restore = schema.RestoreIdle
	}
}

func anyPendingLocked(sess *session) bool {
	for _, slot := range sess.slots {
		if slot.state == schema.FetchPending {
			return true
		}
	}
	return false
}
