package chat

import (
	"encoding/json"
	"errors"
)

// Router fans events out to the live connections of target users. Delivery
// is best-effort: offline targets and full connection buffers are skipped,
// nothing is queued or retried.
type Router struct {
	registry *Registry
	logger   Logger
	metrics  Metrics
}

func NewRouter(registry *Registry, logger Logger, metrics Metrics) *Router {
	return &Router{registry: registry, logger: logger, metrics: metrics}
}

// Deliver routes the event to every connection of every target and returns
// the number of connections it was handed to.
func (r *Router) Deliver(name string, payload any, targets ...string) int {
	return r.deliver(nil, name, payload, targets)
}

// DeliverExcept is Deliver skipping the origin connection.
func (r *Router) DeliverExcept(origin Conn, name string, payload any, targets ...string) int {
	return r.deliver(origin, name, payload, targets)
}

// Reply sends an event to a single connection.
func (r *Router) Reply(c Conn, name string, payload any) error {
	ev, err := encodeEvent(name, payload)
	if err != nil {
		return err
	}
	if err := c.Send(ev); err != nil {
		r.metrics.EventDropped(name)
		return err
	}
	r.metrics.EventRouted(name, 1)
	return nil
}

func (r *Router) deliver(origin Conn, name string, payload any, targets []string) int {
	ev, err := encodeEvent(name, payload)
	if err != nil {
		r.logger.Error("encoding event", "event", name, "error", err)
		return 0
	}

	seen := make(map[string]struct{}, len(targets))
	delivered := 0
	for _, target := range targets {
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}

		for _, c := range r.registry.Resolve(target) {
			if origin != nil && c.ID() == origin.ID() {
				continue
			}
			if err := c.Send(ev); err != nil {
				r.metrics.EventDropped(name)
				if !errors.Is(err, ErrConnClosed) {
					r.logger.Warn("dropping event", "event", name, "user", target, "conn", c.ID(), "error", err)
				}
				continue
			}
			delivered++
		}
	}

	r.metrics.EventRouted(name, delivered)
	return delivered
}

func encodeEvent(name string, payload any) (Event, error) {
	if payload == nil {
		return Event{Name: name}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Data: data}, nil
}
