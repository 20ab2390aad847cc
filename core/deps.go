package core

import "pkt.systems/pslog"

// ServiceDeps captures dependencies for the core service. Providers and the
// channel provider carry the domain; the sink and logger are optional.
type ServiceDeps struct {
	Providers       []Provider
	ChannelProvider ChannelProvider
	EventSink       EventSink
	Logger          pslog.Logger
}
