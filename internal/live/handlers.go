package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chatboard/internal/chat"
	"chatboard/internal/model"
)

// Inbound event names.
const (
	inJoin                   = "join"
	inTyping                 = "typing"
	inStopTyping             = "stopTyping"
	inSendNotification       = "sendNotification"
	inNotificationRead       = "notificationRead"
	inGetUnreadNotifications = "getUnreadNotifications"
	inSendFriendRequest      = "sendFriendRequest"
	inRespondToFriendRequest = "respondToFriendRequest"
	inPing                   = "ping"
)

// Replies sent to the originating connection.
const (
	outUnreadNotifications   = "unreadNotifications"
	outFriendRequestSent     = "friendRequestSent"
	outFriendRequestError    = "friendRequestError"
	outFriendRequestResponse = "friendRequestResponse"
	outPong                  = "pong"
	outError                 = "error"
)

type errorPayload struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

type statusPayload struct {
	Status  string               `json:"status"`
	Message string               `json:"message,omitempty"`
	Request *model.FriendRequest `json:"request,omitempty"`
}

// handler dispatches the inbound events of one connection. userID is the
// identity bound at the handshake; ids claimed in payloads must match it.
type handler struct {
	svc    *chat.ChatService
	logger chat.Logger
	userID string
	conn   chat.Conn
}

func (h *handler) dispatch(ctx context.Context, data []byte) {
	var ev chat.Event
	if err := json.Unmarshal(data, &ev); err != nil || ev.Name == "" {
		h.fail("", fmt.Errorf("%w: malformed frame", chat.ErrValidation))
		return
	}

	var err error
	switch ev.Name {
	case inJoin:
		err = h.join(ev.Data)
	case inTyping:
		err = h.typing(ev.Data, true)
	case inStopTyping:
		err = h.typing(ev.Data, false)
	case inSendNotification:
		err = h.sendNotification(ctx, ev.Data)
	case inNotificationRead:
		err = h.notificationRead(ctx, ev.Data)
	case inGetUnreadNotifications:
		err = h.getUnread(ctx, ev.Data)
	case inSendFriendRequest:
		h.sendFriendRequest(ctx, ev.Data)
		return
	case inRespondToFriendRequest:
		h.respondToFriendRequest(ctx, ev.Data)
		return
	case inPing:
		h.reply(outPong, nil)
	default:
		err = fmt.Errorf("%w: unknown event %q", chat.ErrValidation, ev.Name)
	}
	if err != nil {
		h.fail(ev.Name, err)
	}
}

func (h *handler) join(data json.RawMessage) error {
	claimed, err := decodeUserID(data)
	if err != nil {
		return err
	}
	return h.checkIdentity(claimed)
}

func (h *handler) typing(data json.RawMessage, typing bool) error {
	var p struct {
		SenderID   string `json:"senderId"`
		ReceiverID string `json:"receiverId"`
	}
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := h.checkIdentity(p.SenderID); err != nil {
		return err
	}
	if p.ReceiverID == "" {
		return fmt.Errorf("%w: receiverId is required", chat.ErrValidation)
	}

	h.svc.Router.DeliverExcept(h.conn, chat.EventUserTyping, map[string]any{
		"senderId": h.userID,
		"typing":   typing,
	}, p.ReceiverID)
	return nil
}

func (h *handler) sendNotification(ctx context.Context, data json.RawMessage) error {
	var p struct {
		RecipientID string                 `json:"recipientId"`
		SenderID    string                 `json:"senderId"`
		Type        model.NotificationType `json:"type"`
		Content     string                 `json:"content"`
	}
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := h.checkIdentity(p.SenderID); err != nil {
		return err
	}
	if p.Type == model.NotificationMessage {
		return fmt.Errorf("%w: message notifications are created by sending a message", chat.ErrValidation)
	}

	_, err := h.svc.Notifications.Notify(ctx, chat.NotificationInput{
		RecipientID: p.RecipientID,
		SenderID:    h.userID,
		Type:        p.Type,
		Content:     p.Content,
	})
	return err
}

func (h *handler) notificationRead(ctx context.Context, data json.RawMessage) error {
	var p struct {
		NotificationID string `json:"notificationId"`
		UserID         string `json:"userId"`
	}
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := h.checkIdentity(p.UserID); err != nil {
		return err
	}
	_, err := h.svc.Notifications.MarkRead(ctx, p.NotificationID, h.userID)
	return err
}

func (h *handler) getUnread(ctx context.Context, data json.RawMessage) error {
	claimed, err := decodeUserID(data)
	if err != nil {
		return err
	}
	if err := h.checkIdentity(claimed); err != nil {
		return err
	}

	ns, err := h.svc.Notifications.ListUnread(ctx, h.userID)
	if err != nil {
		return err
	}
	if ns == nil {
		ns = []*model.Notification{}
	}
	h.reply(outUnreadNotifications, ns)
	return nil
}

func (h *handler) sendFriendRequest(ctx context.Context, data json.RawMessage) {
	var p struct {
		SenderID    string `json:"senderId"`
		RecipientID string `json:"recipientId"`
	}
	err := decode(data, &p)
	if err == nil {
		err = h.checkIdentity(p.SenderID)
	}
	if err != nil {
		h.friendRequestError(inSendFriendRequest, err)
		return
	}

	req, err := h.svc.Relationships.SendRequest(ctx, h.userID, p.RecipientID)
	if err != nil {
		h.friendRequestError(inSendFriendRequest, err)
		return
	}
	h.reply(outFriendRequestSent, statusPayload{Status: "success", Request: req})
}

func (h *handler) respondToFriendRequest(ctx context.Context, data json.RawMessage) {
	var p struct {
		SenderID       string `json:"senderId"`
		RecipientID    string `json:"recipientId"`
		Response       string `json:"response"`
		NotificationID string `json:"notificationId"`
		RequestID      string `json:"requestId"`
	}
	err := decode(data, &p)
	if err == nil {
		err = h.checkIdentity(p.RecipientID)
	}
	var decision chat.Decision
	if err == nil {
		decision, err = chat.ParseDecision(p.Response)
	}
	if err != nil {
		h.friendRequestError(inRespondToFriendRequest, err)
		return
	}

	var req *model.FriendRequest
	if p.RequestID != "" {
		req, err = h.svc.Relationships.Respond(ctx, p.RequestID, h.userID, decision)
	} else {
		req, err = h.svc.Relationships.RespondFrom(ctx, p.SenderID, h.userID, decision)
	}
	if err != nil {
		h.friendRequestError(inRespondToFriendRequest, err)
		return
	}

	if p.NotificationID != "" {
		if _, err := h.svc.Notifications.MarkRead(ctx, p.NotificationID, h.userID); err != nil {
			h.logger.Warn("failed to mark friend request notification read",
				"notification", p.NotificationID, "error", err)
		}
	}

	h.svc.Router.Deliver(outFriendRequestResponse, map[string]any{
		"status": string(req.Status),
		"userId": h.userID,
	}, req.SenderID)
}

func (h *handler) checkIdentity(claimed string) error {
	if claimed != "" && claimed != h.userID {
		return fmt.Errorf("%w: payload user does not match the connection", chat.ErrUnauthorized)
	}
	return nil
}

func (h *handler) reply(name string, payload any) {
	if err := h.svc.Router.Reply(h.conn, name, payload); err != nil {
		h.logger.Debug("reply dropped", "event", name, "conn", h.conn.ID(), "error", err)
	}
}

func (h *handler) fail(event string, err error) {
	h.log(event, err)
	h.reply(outError, errorPayload{Event: event, Message: publicMessage(err)})
}

func (h *handler) friendRequestError(event string, err error) {
	h.log(event, err)
	h.reply(outFriendRequestError, statusPayload{Status: "error", Message: publicMessage(err)})
}

func (h *handler) log(event string, err error) {
	if isClientError(err) {
		h.logger.Debug("live event rejected", "event", event, "user", h.userID, "error", err)
		return
	}
	h.logger.Error("live event failed", "event", event, "user", h.userID, "error", err)
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: payload is required", chat.ErrValidation)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: malformed payload", chat.ErrValidation)
	}
	return nil
}

// decodeUserID accepts either a bare JSON string or {"userId": ...}.
// An absent payload claims nothing.
func decodeUserID(data json.RawMessage) (string, error) {
	if len(data) == 0 || string(data) == "null" {
		return "", nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return id, nil
	}
	var p struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("%w: malformed payload", chat.ErrValidation)
	}
	return p.UserID, nil
}

func isClientError(err error) bool {
	return errors.Is(err, chat.ErrValidation) ||
		errors.Is(err, chat.ErrUnauthorized) ||
		errors.Is(err, chat.ErrNotFound) ||
		errors.Is(err, chat.ErrConflict)
}

// publicMessage hides internal failure details from clients.
func publicMessage(err error) string {
	if isClientError(err) || errors.Is(err, chat.ErrUnavailable) {
		return err.Error()
	}
	return "internal error"
}
