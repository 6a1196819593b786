package chat

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"chatboard/internal/model"
)

// AttachmentPrefix is the object storage folder for chat attachments.
const AttachmentPrefix = "chat_files/"

// SendInput describes a message to send.
type SendInput struct {
	SenderID    string
	RecipientID string
	Content     string
	Type        model.MessageType
	File        *model.FileMeta
}

// Conversations stores direct messages and routes their lifecycle events.
type Conversations struct {
	database      Database
	store         ObjectStore
	notifications *Notifications
	router        *Router
	logger        Logger
	clock         Clock
	idgen         IDGenerator
	maxUpload     int64
}

func NewConversations(database Database, store ObjectStore, notifications *Notifications, router *Router, logger Logger, clock Clock, idgen IDGenerator, maxUpload int64) *Conversations {
	return &Conversations{
		database:      database,
		store:         store,
		notifications: notifications,
		router:        router,
		logger:        logger,
		clock:         clock,
		idgen:         idgen,
		maxUpload:     maxUpload,
	}
}

// Send persists a message, routes newMessage to the recipient and records a
// companion message notification.
func (c *Conversations) Send(ctx context.Context, in SendInput) (*model.Message, error) {
	if in.SenderID == "" || in.RecipientID == "" {
		return nil, fmt.Errorf("%w: sender and recipient are required", ErrValidation)
	}
	if in.Type == "" {
		in.Type = model.MessageText
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown message type %q", ErrValidation, in.Type)
	}
	if in.Type == model.MessageText {
		if strings.TrimSpace(in.Content) == "" {
			return nil, fmt.Errorf("%w: content is required", ErrValidation)
		}
		in.File = nil
	} else if in.File == nil || in.File.URL == "" || in.File.Name == "" {
		return nil, fmt.Errorf("%w: %s messages require file metadata", ErrValidation, in.Type)
	}

	sender, err := c.database.FindUserByID(ctx, in.SenderID)
	if err != nil {
		return nil, fmt.Errorf("finding sender: %w", err)
	}
	if sender == nil {
		return nil, fmt.Errorf("%w: sender not found", ErrNotFound)
	}
	recipient, err := c.database.FindUserByID(ctx, in.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("finding recipient: %w", err)
	}
	if recipient == nil {
		return nil, fmt.Errorf("%w: recipient not found", ErrNotFound)
	}

	msg := &model.Message{
		ID:          c.idgen.New(),
		SenderID:    in.SenderID,
		RecipientID: in.RecipientID,
		Content:     in.Content,
		Type:        in.Type,
		File:        in.File,
		CreatedAt:   c.clock.Now(),
	}
	if err := c.database.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	c.router.Deliver(EventNewMessage, msg, msg.RecipientID)

	n, err := c.notifications.Create(ctx, NotificationInput{
		RecipientID: msg.RecipientID,
		SenderID:    msg.SenderID,
		Type:        model.NotificationMessage,
		Content:     sender.Username + " " + notificationVerb(msg.Type),
		MessageID:   msg.ID,
	})
	if err != nil {
		c.logger.Error("failed to record message notification", "message", msg.ID, "error", err)
		return msg, nil
	}
	n.Sender = sender.Summary()
	n.Message = &model.MessageSummary{Content: msg.Content, Type: msg.Type}
	if msg.File != nil {
		n.Message.FileName = msg.File.Name
	}
	c.notifications.Publish(n)

	return msg, nil
}

// SendAttachment stores the upload and sends it as an image or file message.
// The blob is deleted again when the message cannot be recorded.
func (c *Conversations) SendAttachment(ctx context.Context, in SendInput, up Upload) (*model.Message, error) {
	if up.Name == "" || up.Body == nil {
		return nil, fmt.Errorf("%w: file is required", ErrValidation)
	}
	if up.Size <= 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrValidation)
	}
	if c.maxUpload > 0 && up.Size > c.maxUpload {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrValidation, c.maxUpload)
	}
	if in.SenderID == "" || in.RecipientID == "" {
		return nil, fmt.Errorf("%w: sender and recipient are required", ErrValidation)
	}

	key := AttachmentPrefix + c.idgen.New() + strings.ToLower(filepath.Ext(up.Name))
	url, err := c.store.Put(ctx, key, up.Body, up.Size, up.MimeType)
	if err != nil {
		return nil, fmt.Errorf("storing attachment: %w", err)
	}

	in.Type = model.MessageFile
	if strings.HasPrefix(up.MimeType, "image/") {
		in.Type = model.MessageImage
	}
	if strings.TrimSpace(in.Content) == "" {
		in.Content = up.Name
	}
	in.File = &model.FileMeta{
		Name:     up.Name,
		Size:     up.Size,
		URL:      url,
		MimeType: up.MimeType,
		Key:      key,
	}

	msg, err := c.Send(ctx, in)
	if err != nil {
		c.removeBlob(ctx, key)
		return nil, err
	}
	return msg, nil
}

// History returns the messages exchanged between a and b in both
// directions, oldest first.
func (c *Conversations) History(ctx context.Context, a, b string) ([]*model.Message, error) {
	if a == "" || b == "" {
		return nil, fmt.Errorf("%w: both participants are required", ErrValidation)
	}
	msgs, err := c.database.ListConversation(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("listing conversation: %w", err)
	}
	return msgs, nil
}

// Edit replaces the content of a message the caller sent.
func (c *Conversations) Edit(ctx context.Context, id, senderID, content string) (*model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}
	msg, err := c.database.UpdateMessageContent(ctx, id, senderID, content, c.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("editing message: %w", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: message not found", ErrNotFound)
	}

	c.router.Deliver(EventMessageEdited, msg, msg.RecipientID)
	return msg, nil
}

// Delete removes a message the caller sent, along with its attachment.
func (c *Conversations) Delete(ctx context.Context, id, senderID string) (*model.Message, error) {
	msg, err := c.database.DeleteMessage(ctx, id, senderID)
	if err != nil {
		return nil, fmt.Errorf("deleting message: %w", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: message not found", ErrNotFound)
	}

	if msg.File != nil && msg.File.Key != "" {
		c.removeBlob(ctx, msg.File.Key)
	}

	c.router.Deliver(EventMessageDeleted, map[string]any{
		"messageId": msg.ID,
		"senderId":  msg.SenderID,
	}, msg.RecipientID)
	return msg, nil
}

// MarkRead marks a message addressed to the caller as read and tells the
// sender.
func (c *Conversations) MarkRead(ctx context.Context, id, recipientID string) (*model.Message, error) {
	msg, err := c.database.MarkMessageRead(ctx, id, recipientID)
	if err != nil {
		return nil, fmt.Errorf("marking message read: %w", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: message not found", ErrNotFound)
	}

	c.router.Deliver(EventMessageRead, map[string]any{
		"messageId": msg.ID,
		"readerId":  recipientID,
	}, msg.SenderID)
	return msg, nil
}

func (c *Conversations) removeBlob(ctx context.Context, key string) {
	if err := c.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		c.logger.Error("failed to delete attachment", "key", key, "error", err)
	}
}

func notificationVerb(t model.MessageType) string {
	switch t {
	case model.MessageImage:
		return "sent you an image"
	case model.MessageFile:
		return "sent you a file"
	default:
		return "sent you a message"
	}
}
