package core

import (
	"sort"
	"time"

	"pkt.systems/canopy/schema"
)

// fetchKey identifies one fetch slot: provider name for root fetches, node
// id for child fetches.
type fetchKey struct {
	kind schema.FetchKind
	key  string
}

func rootKeyFor(name schema.ProviderName) fetchKey {
	return fetchKey{kind: schema.FetchRoot, key: string(name)}
}

func childKeyFor(id schema.NodeID) fetchKey {
	return fetchKey{kind: schema.FetchChildren, key: string(id)}
}

// slotKeyFor maps a node to its fetch slot. Expanding a synthetic root runs
// the provider's top-level fetch; everything else is a child fetch.
func slotKeyFor(node *schema.TreeNode) fetchKey {
	if node.Type == schema.NodeTypeRoot {
		return rootKeyFor(schema.ProviderName(node.Name))
	}
	return childKeyFor(node.ID)
}

// fetchSlot tracks the lifecycle of one scheduled fetch. Slots exist only
// while non-idle: an absent slot means idle.
type fetchSlot struct {
	key       fetchKey
	nodeID    schema.NodeID
	provider  schema.ProviderName
	state     schema.FetchState
	attempts  int
	lastErr   error
	retryable bool
	expiry    time.Time
}

func (f *fetchSlot) status() schema.FetchStatus {
	st := schema.FetchStatus{
		NodeID:   f.nodeID,
		Provider: f.provider,
		Kind:     f.key.kind,
		State:    f.state,
		Attempts: f.attempts,
	}
	if f.lastErr != nil {
		st.Error = f.lastErr.Error()
		st.Retryable = f.retryable
	}
	return st
}

// session holds one host session: the forest snapshot, the fetch slots and
// the open-state tracker. All fields are guarded by the service mutex.
type session struct {
	id       schema.SessionID
	channel  Channel
	roots    []*schema.TreeNode
	revision uint64

	slots map[fetchKey]*fetchSlot

	open       map[schema.NodeID]struct{}
	restoreIDs []schema.NodeID
	restore    schema.RestoreState
	interacted bool

	saveTimer   *time.Timer
	savePending bool
}

func (s *session) snapshot() schema.ForestSnapshot {
	return schema.ForestSnapshot{Roots: s.roots, Revision: s.revision}
}

func (s *session) openList() []schema.NodeID {
	out := make([]schema.NodeID, 0, len(s.open))
	for id := range s.open {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *session) fetchStatuses() []schema.FetchStatus {
	out := make([]schema.FetchStatus, 0, len(s.slots))
	for _, slot := range s.slots {
		out = append(out, slot.status())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out
}

// sweepSlots drops resolved slots whose cache window has passed. The forest
// keeps the loaded children either way; only the slot bookkeeping ages out.
func sweepSlots(sess *session, now time.Time) {
	for key, slot := range sess.slots {
		if slot.state == schema.FetchResolved && !slot.expiry.IsZero() && now.After(slot.expiry) {
			delete(sess.slots, key)
		}
	}
}
