package chat

import (
	"context"
	"fmt"
)

// Options tunes the components built by NewChatService.
type Options struct {
	PresenceMode    PresenceMode
	NotifyOnDecline bool
	MaxUploadSize   int64
}

// ChatService wires the registry, router and the durable components together
// so they share one router and one registry.
type ChatService struct {
	Registry      *Registry
	Router        *Router
	Presence      *Presence
	Notifications *Notifications
	Relationships *Relationships
	Conversations *Conversations

	database Database
	store    ObjectStore
	logger   Logger
}

// NewChatService creates every component over the provided dependencies.
func NewChatService(database Database, store ObjectStore, logger Logger, metrics Metrics, clock Clock, idgen IDGenerator, opts Options) *ChatService {
	registry := NewRegistry(opts.PresenceMode)
	router := NewRouter(registry, logger, metrics)
	notifications := NewNotifications(database, router, logger, clock, idgen)

	return &ChatService{
		Registry:      registry,
		Router:        router,
		Presence:      NewPresence(registry, router, database, logger, metrics),
		Notifications: notifications,
		Relationships: NewRelationships(database, notifications, router, logger, clock, idgen, opts.NotifyOnDecline),
		Conversations: NewConversations(database, store, notifications, router, logger, clock, idgen, opts.MaxUploadSize),
		database:      database,
		store:         store,
		logger:        logger,
	}
}

// Start prepares durable state for a fresh process: the object store must be
// reachable and no user may still be flagged online.
func (s *ChatService) Start(ctx context.Context) error {
	if err := s.store.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("validating object store: %w", err)
	}
	return s.Presence.ResetAll(ctx)
}

// Shutdown closes every live connection. Presence transitions run as the
// connections' read loops exit.
func (s *ChatService) Shutdown() {
	conns := s.Registry.Conns()
	for _, c := range conns {
		if err := c.Close(); err != nil {
			s.logger.Debug("closing connection", "conn", c.ID(), "error", err)
		}
	}
	if len(conns) > 0 {
		s.logger.Info("closed live connections", "count", len(conns))
	}
}
