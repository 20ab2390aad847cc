// Package eventbus fans service events out to per-session subscribers over
// buffered channels. Publishing never blocks: a subscriber that stops
// draining loses events rather than stalling fetch commits.
package eventbus

import (
	"context"
	"sync"

	"pkt.systems/canopy/schema"
	"pkt.systems/pslog"
)

// Bus delivers events to per-session subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.SessionID]map[chan schema.Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.SessionID]map[chan schema.Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for the session. The returned cancel
// removes the subscription and closes the channel.
func (b *Bus) Subscribe(session schema.SessionID) (<-chan schema.Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan schema.Event, b.depth)
	b.mu.Lock()
	sessionSubs := b.subs[session]
	if sessionSubs == nil {
		sessionSubs = make(map[chan schema.Event]struct{})
		b.subs[session] = sessionSubs
	}
	sessionSubs[ch] = struct{}{}
	count := len(sessionSubs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.With("session", session).Debug("eventbus subscribe", "subs", count)
	}
	return ch, func() {
		removed := false
		b.mu.Lock()
		if subs := b.subs[session]; subs != nil {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				removed = true
			}
			if len(subs) == 0 {
				delete(b.subs, session)
			}
		}
		if removed {
			// Closed under the lock so publish cannot race a send
			// against the close.
			close(ch)
		}
		b.mu.Unlock()
		if removed && b.log != nil {
			b.log.With("session", session).Debug("eventbus unsubscribe")
		}
	}
}

// OnNodeUpdate publishes a committed forest mutation.
func (b *Bus) OnNodeUpdate(event schema.NodeUpdateEvent) {
	b.publish(event.Session, schema.Event{Type: schema.EventNode, Node: event})
}

// OnFetchFailure publishes a terminal fetch failure.
func (b *Bus) OnFetchFailure(event schema.FetchFailureEvent) {
	b.publish(event.Session, schema.Event{Type: schema.EventFailure, Failure: event})
}

// OnSessionEvent publishes a session lifecycle update.
func (b *Bus) OnSessionEvent(event schema.SessionEvent) {
	b.publish(event.Session, schema.Event{Type: schema.EventSession, Session: event})
}

func (b *Bus) publish(session schema.SessionID, event schema.Event) {
	if b == nil {
		return
	}
	dropped := 0
	b.mu.Lock()
	for sub := range b.subs[session] {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 && b.log != nil {
		b.log.With("session", session).Trace("eventbus dropped", "count", dropped)
	}
}
