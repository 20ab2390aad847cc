package canopy

import (
	"pkt.systems/canopy/core"
	"pkt.systems/canopy/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnNodeUpdate(event schema.NodeUpdateEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnNodeUpdate(event)
	}
}

func (f eventFanout) OnFetchFailure(event schema.FetchFailureEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnFetchFailure(event)
	}
}

func (f eventFanout) OnSessionEvent(event schema.SessionEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnSessionEvent(event)
	}
}
