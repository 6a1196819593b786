package chat

import (
	"context"
	"fmt"
	"strings"

	"chatboard/internal/model"
)

// ListCap bounds the full and by-type notification listings.
const ListCap = 50

// NotificationInput describes a notification to record.
type NotificationInput struct {
	RecipientID string
	SenderID    string
	Type        model.NotificationType
	Content     string
	MessageID   string
}

// Notifications is the per-recipient notification ledger.
type Notifications struct {
	database Database
	router   *Router
	logger   Logger
	clock    Clock
	idgen    IDGenerator
}

func NewNotifications(database Database, router *Router, logger Logger, clock Clock, idgen IDGenerator) *Notifications {
	return &Notifications{database: database, router: router, logger: logger, clock: clock, idgen: idgen}
}

// Create persists an unread notification. It does not route anything.
func (l *Notifications) Create(ctx context.Context, in NotificationInput) (*model.Notification, error) {
	if in.RecipientID == "" || in.SenderID == "" {
		return nil, fmt.Errorf("%w: recipient and sender are required", ErrValidation)
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown notification type %q", ErrValidation, in.Type)
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}
	if in.Type == model.NotificationMessage && in.MessageID == "" {
		return nil, fmt.Errorf("%w: message notifications require a message id", ErrValidation)
	}

	n := &model.Notification{
		ID:          l.idgen.New(),
		RecipientID: in.RecipientID,
		SenderID:    in.SenderID,
		Type:        in.Type,
		Content:     in.Content,
		CreatedAt:   l.clock.Now(),
	}
	if in.MessageID != "" {
		id := in.MessageID
		n.MessageID = &id
	}

	if err := l.database.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}
	return n, nil
}

// Publish routes newNotification to the notification's recipient.
func (l *Notifications) Publish(n *model.Notification) int {
	return l.router.Deliver(EventNewNotification, map[string]any{"notification": n}, n.RecipientID)
}

// Notify creates the notification and publishes it.
func (l *Notifications) Notify(ctx context.Context, in NotificationInput) (*model.Notification, error) {
	n, err := l.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	l.Publish(n)
	return n, nil
}

// MarkRead marks one of the recipient's notifications read. Marking an
// already read notification succeeds.
func (l *Notifications) MarkRead(ctx context.Context, id, recipientID string) (*model.Notification, error) {
	if id == "" || recipientID == "" {
		return nil, fmt.Errorf("%w: notification id is required", ErrValidation)
	}
	n, err := l.database.MarkNotificationRead(ctx, id, recipientID)
	if err != nil {
		return nil, fmt.Errorf("marking notification read: %w", err)
	}
	if n == nil {
		return nil, fmt.Errorf("%w: notification not found", ErrNotFound)
	}

	l.router.Deliver(EventNotificationUpdated, map[string]any{"notificationId": n.ID, "read": true}, recipientID)
	return n, nil
}

// MarkAllRead marks every unread notification of the recipient read and
// returns how many changed.
func (l *Notifications) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	if recipientID == "" {
		return 0, fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	count, err := l.database.MarkAllNotificationsRead(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("marking all notifications read: %w", err)
	}

	l.router.Deliver(EventAllNotificationsRead, map[string]any{"count": count}, recipientID)
	return count, nil
}

// Delete removes one of the recipient's notifications.
func (l *Notifications) Delete(ctx context.Context, id, recipientID string) error {
	ok, err := l.database.DeleteNotification(ctx, id, recipientID)
	if err != nil {
		return fmt.Errorf("deleting notification: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: notification not found", ErrNotFound)
	}
	return nil
}

// ListAll returns the newest notifications of the recipient, read or not.
func (l *Notifications) ListAll(ctx context.Context, recipientID string) ([]*model.Notification, error) {
	return l.list(ctx, recipientID, NotificationFilter{Limit: ListCap})
}

// ListUnread returns every unread notification, newest first.
func (l *Notifications) ListUnread(ctx context.Context, recipientID string) ([]*model.Notification, error) {
	return l.list(ctx, recipientID, NotificationFilter{UnreadOnly: true})
}

// ListByType returns the newest notifications of one type. Message
// notifications carry a projection of their message.
func (l *Notifications) ListByType(ctx context.Context, recipientID string, typ model.NotificationType) ([]*model.Notification, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: unknown notification type %q", ErrValidation, typ)
	}
	return l.list(ctx, recipientID, NotificationFilter{Type: typ, Limit: ListCap})
}

func (l *Notifications) list(ctx context.Context, recipientID string, filter NotificationFilter) ([]*model.Notification, error) {
	if recipientID == "" {
		return nil, fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	ns, err := l.database.ListNotifications(ctx, recipientID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return ns, nil
}
