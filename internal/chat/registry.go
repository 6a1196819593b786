package chat

import (
	"fmt"
	"sync"
)

// PresenceMode selects how multiple connections of one user are treated.
type PresenceMode string

const (
	// PresenceMulti keeps every connection; the user is online while any is live.
	PresenceMulti PresenceMode = "multi"
	// PresenceSingle keeps only the newest connection per user.
	PresenceSingle PresenceMode = "single"
)

// ParsePresenceMode maps a config value to a PresenceMode. Empty means multi.
func ParsePresenceMode(s string) (PresenceMode, error) {
	switch PresenceMode(s) {
	case "", PresenceMulti:
		return PresenceMulti, nil
	case PresenceSingle:
		return PresenceSingle, nil
	default:
		return "", fmt.Errorf("unknown presence mode: %s", s)
	}
}

// Registry maps user ids to their live connections. Each user id is also the
// name of that user's room. Safe for concurrent use.
type Registry struct {
	mode PresenceMode

	mu     sync.RWMutex
	rooms  map[string]map[string]Conn // user id -> conn id -> conn
	owners map[string]string          // conn id -> user id
}

func NewRegistry(mode PresenceMode) *Registry {
	if mode == "" {
		mode = PresenceMulti
	}
	return &Registry{
		mode:   mode,
		rooms:  make(map[string]map[string]Conn),
		owners: make(map[string]string),
	}
}

// Register binds c to userID. first is true when the user had no connections
// before. In single mode the user's previous connections are removed and
// returned in evicted; the caller closes them. A handle is bound once:
// registering an already registered handle is a no-op.
func (r *Registry) Register(userID string, c Conn) (first bool, evicted []Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owners[c.ID()]; ok {
		return false, nil
	}

	room := r.rooms[userID]
	if room == nil {
		room = make(map[string]Conn)
		r.rooms[userID] = room
		first = true
	} else if r.mode == PresenceSingle {
		for id, old := range room {
			evicted = append(evicted, old)
			delete(room, id)
			delete(r.owners, id)
		}
	}

	room[c.ID()] = c
	r.owners[c.ID()] = userID
	return first, evicted
}

// Unregister removes c. It returns the owning user and whether c was that
// user's last connection. Unknown handles return ("", false).
func (r *Registry) Unregister(c Conn) (userID string, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[c.ID()]
	if !ok {
		return "", false
	}
	delete(r.owners, c.ID())

	room := r.rooms[userID]
	delete(room, c.ID())
	if len(room) == 0 {
		delete(r.rooms, userID)
		return userID, true
	}
	return userID, false
}

// Resolve returns a snapshot of the user's connections, empty when offline.
func (r *Registry) Resolve(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[userID]
	conns := make([]Conn, 0, len(room))
	for _, c := range room {
		conns = append(conns, c)
	}
	return conns
}

// Owner returns the user c is bound to.
func (r *Registry) Owner(c Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.owners[c.ID()]
	return userID, ok
}

// Online reports whether the user has at least one live connection.
func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[userID]) > 0
}

// Counts returns the number of online users and live connections.
func (r *Registry) Counts() (users, conns int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms), len(r.owners)
}

// Conns returns a snapshot of every registered connection.
func (r *Registry) Conns() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.owners))
	for _, room := range r.rooms {
		for _, c := range room {
			conns = append(conns, c)
		}
	}
	return conns
}
