package core

import "pkt.systems/canopy/schema"

// EventSink receives forest and session events from the core service.
type EventSink interface {
	OnNodeUpdate(event schema.NodeUpdateEvent)
	OnFetchFailure(event schema.FetchFailureEvent)
	OnSessionEvent(event schema.SessionEvent)
}
