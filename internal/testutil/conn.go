package testutil

import (
	"encoding/json"
	"sync"
	"testing"

	"chatboard/internal/chat"
)

// RecordingConn is a chat.Conn that records every event sent to it.
type RecordingConn struct {
	id string

	mu     sync.Mutex
	events []chat.Event
	closed bool
	full   bool
}

func NewRecordingConn(id string) *RecordingConn {
	return &RecordingConn{id: id}
}

func (c *RecordingConn) ID() string { return c.id }

func (c *RecordingConn) Send(ev chat.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return chat.ErrConnClosed
	}
	if c.full {
		return chat.ErrBackpressure
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *RecordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *RecordingConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SetFull makes subsequent sends fail with chat.ErrBackpressure.
func (c *RecordingConn) SetFull(full bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.full = full
}

// Events returns a copy of the recorded events.
func (c *RecordingConn) Events() []chat.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Event(nil), c.events...)
}

// Named returns the recorded events with the given name.
func (c *RecordingConn) Named(name string) []chat.Event {
	var out []chat.Event
	for _, ev := range c.Events() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// Reset forgets recorded events.
func (c *RecordingConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

// Decode unmarshals an event payload into v.
func Decode(t *testing.T, ev chat.Event, v any) {
	t.Helper()
	if err := json.Unmarshal(ev.Data, v); err != nil {
		t.Fatalf("decoding %s payload %s: %v", ev.Name, ev.Data, err)
	}
}
