package chat

// Metrics receives delivery and presence counters.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	PresenceChanged(online bool)
	EventRouted(event string, delivered int)
	EventDropped(event string)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) ConnectionOpened()       {}
func (NopMetrics) ConnectionClosed()       {}
func (NopMetrics) PresenceChanged(bool)    {}
func (NopMetrics) EventRouted(string, int) {}
func (NopMetrics) EventDropped(string)     {}
