package chat

import (
	"context"
	"time"

	"chatboard/internal/model"
)

// NotificationFilter narrows a notification listing. A zero Limit means no cap.
type NotificationFilter struct {
	UnreadOnly bool
	Type       model.NotificationType
	Limit      int
}

// Database is the durable store behind every component.
//
// Find* and the conditional mutations (Accept*, Decline*, Update*, Mark*Read,
// DeleteMessage) return (nil, nil) when no row matches, including when the
// caller does not own the row. Implementations report unique violations as
// ErrConflict and timeouts or lock contention as ErrUnavailable.
type Database interface {
	// Users
	CreateUser(ctx context.Context, user *model.User) error
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	SearchUsers(ctx context.Context, query, excludeID string, limit int) ([]*model.User, error)
	SetUserOnline(ctx context.Context, id string, online bool) error
	ResetOnline(ctx context.Context) (int64, error)

	// Friendships
	AreFriends(ctx context.Context, a, b string) (bool, error)
	ListFriends(ctx context.Context, userID string) ([]*model.User, error)
	ListFriendIDs(ctx context.Context, userID string) ([]string, error)
	CreateFriendRequest(ctx context.Context, req *model.FriendRequest) error
	FindPendingRequestBetween(ctx context.Context, a, b string) (*model.FriendRequest, error)
	FindPendingRequestFrom(ctx context.Context, senderID, recipientID string) (*model.FriendRequest, error)
	AcceptFriendRequest(ctx context.Context, id, recipientID string, at time.Time) (*model.FriendRequest, error)
	DeclineFriendRequest(ctx context.Context, id, recipientID string, at time.Time) (*model.FriendRequest, error)
	ListIncomingRequests(ctx context.Context, recipientID string) ([]*model.FriendRequest, error)
	ListOutgoingRequests(ctx context.Context, senderID string) ([]*model.FriendRequest, error)

	// Messages
	CreateMessage(ctx context.Context, msg *model.Message) error
	ListConversation(ctx context.Context, a, b string) ([]*model.Message, error)
	UpdateMessageContent(ctx context.Context, id, senderID, content string, at time.Time) (*model.Message, error)
	DeleteMessage(ctx context.Context, id, senderID string) (*model.Message, error)
	MarkMessageRead(ctx context.Context, id, recipientID string) (*model.Message, error)

	// Notifications
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, recipientID string, filter NotificationFilter) ([]*model.Notification, error)
	MarkNotificationRead(ctx context.Context, id, recipientID string) (*model.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error)
	DeleteNotification(ctx context.Context, id, recipientID string) (bool, error)

	Close() error
}
