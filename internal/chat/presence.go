package chat

import (
	"context"
	"fmt"
	"sync"
)

// Presence derives online/offline transitions from the registry, persists the
// online flag and tells friends about each transition.
type Presence struct {
	registry *Registry
	router   *Router
	database Database
	logger   Logger
	metrics  Metrics

	mu        sync.Mutex
	locks     map[string]*userLock
	published map[string]bool // user id -> last announced state; absent means offline
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewPresence(registry *Registry, router *Router, database Database, logger Logger, metrics Metrics) *Presence {
	return &Presence{
		registry:  registry,
		router:    router,
		database:  database,
		logger:    logger,
		metrics:   metrics,
		locks:     make(map[string]*userLock),
		published: make(map[string]bool),
	}
}

// Connect registers c for userID and announces the user online if this is
// their first connection.
func (p *Presence) Connect(ctx context.Context, userID string, c Conn) {
	first, evicted := p.registry.Register(userID, c)
	p.metrics.ConnectionOpened()

	for _, old := range evicted {
		p.metrics.ConnectionClosed()
		if err := old.Close(); err != nil {
			p.logger.Warn("closing replaced connection", "user", userID, "conn", old.ID(), "error", err)
		}
		p.logger.Info("connection replaced", "user", userID, "conn", old.ID(), "by", c.ID())
	}

	if first {
		p.sync(ctx, userID)
	}
}

// Disconnect unregisters c and announces its owner offline if c was their
// last connection. Unknown or already evicted handles are ignored.
func (p *Presence) Disconnect(ctx context.Context, c Conn) {
	userID, last := p.registry.Unregister(c)
	if userID == "" {
		return
	}
	p.metrics.ConnectionClosed()
	if last {
		p.sync(ctx, userID)
	}
}

// Online reports the registry's view of the user.
func (p *Presence) Online(userID string) bool {
	return p.registry.Online(userID)
}

// ResetAll clears every durable online flag. Run once at startup, before
// connections are accepted.
func (p *Presence) ResetAll(ctx context.Context) error {
	n, err := p.database.ResetOnline(ctx)
	if err != nil {
		return fmt.Errorf("resetting online flags: %w", err)
	}
	if n > 0 {
		p.logger.Info("reset stale online flags", "users", n)
	}
	return nil
}

// sync publishes the registry's current state for userID if it differs from
// the last published one. Holding the per-user lock while re-reading the
// registry makes a racing connect/disconnect pair collapse to the final state.
func (p *Presence) sync(ctx context.Context, userID string) {
	unlock := p.lock(userID)
	defer unlock()

	online := p.registry.Online(userID)

	p.mu.Lock()
	if p.published[userID] == online {
		p.mu.Unlock()
		return
	}
	if online {
		p.published[userID] = true
	} else {
		delete(p.published, userID)
	}
	p.mu.Unlock()

	p.metrics.PresenceChanged(online)
	p.logger.Debug("presence changed", "user", userID, "online", online)

	if err := p.database.SetUserOnline(ctx, userID, online); err != nil {
		p.logger.Warn("failed to persist online flag", "user", userID, "online", online, "error", err)
	}

	friends, err := p.database.ListFriendIDs(ctx, userID)
	if err != nil {
		p.logger.Warn("failed to load friends for status change", "user", userID, "error", err)
		return
	}
	if len(friends) == 0 {
		return
	}
	p.router.Deliver(EventFriendStatusChange, StatusChange{UserID: userID, Online: online}, friends...)
}

func (p *Presence) lock(userID string) func() {
	p.mu.Lock()
	l := p.locks[userID]
	if l == nil {
		l = &userLock{}
		p.locks[userID] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, userID)
		}
		p.mu.Unlock()
	}
}
