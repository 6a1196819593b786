package chat

import (
	"encoding/json"
	"errors"
)

// Conn is one live connection handle as seen by the registry and router.
// Send must not block: implementations buffer and report ErrBackpressure when
// the buffer is full.
type Conn interface {
	ID() string
	Send(ev Event) error
	Close() error
}

var (
	ErrBackpressure = errors.New("outbound buffer full")
	ErrConnClosed   = errors.New("connection closed")
)

// Event is one frame on the live channel.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound event names.
const (
	EventFriendStatusChange    = "friend_status_change"
	EventFriendRequest         = "friend_request"
	EventFriendRequestAccepted = "friend_request_accepted"
	EventFriendRequestDeclined = "friend_request_declined"
	EventNewNotification       = "newNotification"
	EventNotificationUpdated   = "notificationUpdated"
	EventAllNotificationsRead  = "allNotificationsRead"
	EventNewMessage            = "newMessage"
	EventMessageEdited         = "messageEdited"
	EventMessageDeleted        = "messageDeleted"
	EventMessageRead           = "messageRead"
	EventUserTyping            = "userTyping"
)

// StatusChange is the payload of friend_status_change.
type StatusChange struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}
