package model

import "time"

// User is a registered account. Online mirrors whether the user currently
// holds at least one live connection.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Online       bool      `json:"online"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Summary returns the public subset of the user embedded in event payloads.
func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Username: u.Username, Online: u.Online}
}

// UserSummary is the public projection of a user.
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
)

// FriendRequest is a directed proposal of friendship. At most one pending
// request exists per unordered pair of users.
type FriendRequest struct {
	ID          string        `json:"id"`
	SenderID    string        `json:"senderId"`
	RecipientID string        `json:"recipientId"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	RespondedAt *time.Time    `json:"respondedAt,omitempty"`

	// Populated by list queries.
	Sender    *UserSummary `json:"sender,omitempty"`
	Recipient *UserSummary `json:"recipient,omitempty"`
}

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageFile:
		return true
	}
	return false
}

// FileMeta describes a stored attachment. Key is the object storage key and
// stays server-side.
type FileMeta struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Key      string `json:"-"`
}

// Message is a direct message between two users.
type Message struct {
	ID          string      `json:"id"`
	SenderID    string      `json:"senderId"`
	RecipientID string      `json:"recipientId"`
	Content     string      `json:"content"`
	Type        MessageType `json:"type"`
	File        *FileMeta   `json:"file,omitempty"`
	Edited      bool        `json:"edited"`
	EditedAt    *time.Time  `json:"editedAt,omitempty"`
	Read        bool        `json:"read"`
	CreatedAt   time.Time   `json:"createdAt"`
}

type NotificationType string

const (
	NotificationMessage        NotificationType = "message"
	NotificationFriendRequest  NotificationType = "friend_request"
	NotificationFriendAccepted NotificationType = "friend_accepted"
	NotificationFriendDeclined NotificationType = "friend_declined"
	NotificationSystem         NotificationType = "system"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationMessage, NotificationFriendRequest, NotificationFriendAccepted,
		NotificationFriendDeclined, NotificationSystem:
		return true
	}
	return false
}

// Notification is a persisted, per-recipient record of something that
// happened. A message notification always references a message.
type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipientId"`
	SenderID    string           `json:"senderId"`
	Type        NotificationType `json:"type"`
	MessageID   *string          `json:"messageId,omitempty"`
	Content     string           `json:"content"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"createdAt"`

	// Populated by list queries.
	Sender  *UserSummary    `json:"sender,omitempty"`
	Message *MessageSummary `json:"message,omitempty"`
}

// MessageSummary is the projection of a message embedded in message
// notification listings.
type MessageSummary struct {
	Content  string      `json:"content"`
	Type     MessageType `json:"type"`
	FileName string      `json:"fileName,omitempty"`
}
