package chat

import (
	"context"
	"fmt"
	"strings"

	"chatboard/internal/model"
)

// Decision is a recipient's answer to a friend request.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// ParseDecision accepts the verbs used by clients ("accept", "accepted",
// "decline", "declined").
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accept", "accepted":
		return DecisionAccept, nil
	case "decline", "declined", "reject", "rejected":
		return DecisionDecline, nil
	default:
		return "", fmt.Errorf("%w: unknown response %q", ErrValidation, s)
	}
}

const searchLimit = 20

// Relationships owns friend requests and the symmetric friendship edges.
type Relationships struct {
	database        Database
	notifications   *Notifications
	router          *Router
	logger          Logger
	clock           Clock
	idgen           IDGenerator
	notifyOnDecline bool
}

func NewRelationships(database Database, notifications *Notifications, router *Router, logger Logger, clock Clock, idgen IDGenerator, notifyOnDecline bool) *Relationships {
	return &Relationships{
		database:        database,
		notifications:   notifications,
		router:          router,
		logger:          logger,
		clock:           clock,
		idgen:           idgen,
		notifyOnDecline: notifyOnDecline,
	}
}

// SendRequest records a pending request from sender to recipient, notifies
// the recipient and routes friend_request to them.
func (g *Relationships) SendRequest(ctx context.Context, senderID, recipientID string) (*model.FriendRequest, error) {
	if senderID == "" || recipientID == "" {
		return nil, fmt.Errorf("%w: sender and recipient are required", ErrValidation)
	}
	if senderID == recipientID {
		return nil, fmt.Errorf("%w: cannot send a friend request to yourself", ErrValidation)
	}

	sender, err := g.requireUser(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if _, err := g.requireUser(ctx, recipientID); err != nil {
		return nil, err
	}

	friends, err := g.database.AreFriends(ctx, senderID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("checking friendship: %w", err)
	}
	if friends {
		return nil, fmt.Errorf("%w: already friends", ErrConflict)
	}
	pending, err := g.database.FindPendingRequestBetween(ctx, senderID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("checking pending requests: %w", err)
	}
	if pending != nil {
		return nil, fmt.Errorf("%w: friend request already pending", ErrConflict)
	}

	req := &model.FriendRequest{
		ID:          g.idgen.New(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Status:      model.RequestPending,
		CreatedAt:   g.clock.Now(),
	}
	if err := g.database.CreateFriendRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("creating friend request: %w", err)
	}

	g.router.Deliver(EventFriendRequest, map[string]any{
		"type":      model.NotificationFriendRequest,
		"requestId": req.ID,
		"sender":    sender.Summary(),
	}, recipientID)

	g.notify(ctx, NotificationInput{
		RecipientID: recipientID,
		SenderID:    senderID,
		Type:        model.NotificationFriendRequest,
		Content:     sender.Username + " sent you a friend request",
	}, sender)

	return req, nil
}

// Respond applies the recipient's decision to a pending request addressed to
// them. Any other request id, including one addressed to someone else or no
// longer pending, is ErrNotFound.
func (g *Relationships) Respond(ctx context.Context, requestID, recipientID string, decision Decision) (*model.FriendRequest, error) {
	if requestID == "" || recipientID == "" {
		return nil, fmt.Errorf("%w: request id is required", ErrValidation)
	}

	switch decision {
	case DecisionAccept:
		return g.accept(ctx, requestID, recipientID)
	case DecisionDecline:
		return g.decline(ctx, requestID, recipientID)
	default:
		return nil, fmt.Errorf("%w: unknown decision %q", ErrValidation, decision)
	}
}

// RespondFrom is Respond for the pending request sent by senderID.
func (g *Relationships) RespondFrom(ctx context.Context, senderID, recipientID string, decision Decision) (*model.FriendRequest, error) {
	req, err := g.database.FindPendingRequestFrom(ctx, senderID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("finding friend request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: friend request not found", ErrNotFound)
	}
	return g.Respond(ctx, req.ID, recipientID, decision)
}

func (g *Relationships) accept(ctx context.Context, requestID, recipientID string) (*model.FriendRequest, error) {
	req, err := g.database.AcceptFriendRequest(ctx, requestID, recipientID, g.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("accepting friend request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: friend request not found", ErrNotFound)
	}

	recipient, err := g.requireUser(ctx, recipientID)
	if err != nil {
		g.logger.Warn("accepted request but could not load recipient", "request", req.ID, "error", err)
		return req, nil
	}

	g.router.Deliver(EventFriendRequestAccepted, map[string]any{
		"type":      model.NotificationFriendAccepted,
		"requestId": req.ID,
		"user":      recipient.Summary(),
	}, req.SenderID)

	g.notify(ctx, NotificationInput{
		RecipientID: req.SenderID,
		SenderID:    recipientID,
		Type:        model.NotificationFriendAccepted,
		Content:     recipient.Username + " accepted your friend request",
	}, recipient)

	return req, nil
}

func (g *Relationships) decline(ctx context.Context, requestID, recipientID string) (*model.FriendRequest, error) {
	req, err := g.database.DeclineFriendRequest(ctx, requestID, recipientID, g.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("declining friend request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: friend request not found", ErrNotFound)
	}

	g.router.Deliver(EventFriendRequestDeclined, map[string]any{
		"type":      model.NotificationFriendDeclined,
		"requestId": req.ID,
		"userId":    recipientID,
	}, req.SenderID)

	if g.notifyOnDecline {
		recipient, err := g.requireUser(ctx, recipientID)
		if err != nil {
			g.logger.Warn("declined request but could not load recipient", "request", req.ID, "error", err)
			return req, nil
		}
		g.notify(ctx, NotificationInput{
			RecipientID: req.SenderID,
			SenderID:    recipientID,
			Type:        model.NotificationFriendDeclined,
			Content:     recipient.Username + " declined your friend request",
		}, recipient)
	}

	return req, nil
}

// notify records and publishes a notification that follows a committed
// mutation. Failures are logged; the mutation stands.
func (g *Relationships) notify(ctx context.Context, in NotificationInput, sender *model.User) {
	n, err := g.notifications.Create(ctx, in)
	if err != nil {
		g.logger.Error("failed to record notification", "type", in.Type, "recipient", in.RecipientID, "error", err)
		return
	}
	n.Sender = sender.Summary()
	g.notifications.Publish(n)
}

// AreFriends reports whether a friendship edge exists between a and b.
func (g *Relationships) AreFriends(ctx context.Context, a, b string) (bool, error) {
	ok, err := g.database.AreFriends(ctx, a, b)
	if err != nil {
		return false, fmt.Errorf("checking friendship: %w", err)
	}
	return ok, nil
}

// ListFriends returns the user's friends ordered by username.
func (g *Relationships) ListFriends(ctx context.Context, userID string) ([]*model.User, error) {
	friends, err := g.database.ListFriends(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	return friends, nil
}

// ListPending returns pending requests addressed to the user, newest first.
func (g *Relationships) ListPending(ctx context.Context, userID string) ([]*model.FriendRequest, error) {
	reqs, err := g.database.ListIncomingRequests(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing incoming requests: %w", err)
	}
	return reqs, nil
}

// ListSent returns pending requests the user sent, newest first.
func (g *Relationships) ListSent(ctx context.Context, userID string) ([]*model.FriendRequest, error) {
	reqs, err := g.database.ListOutgoingRequests(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing outgoing requests: %w", err)
	}
	return reqs, nil
}

// SearchUsers finds users whose username contains query, ignoring case.
// The caller is never part of the result.
func (g *Relationships) SearchUsers(ctx context.Context, userID, query string) ([]*model.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrValidation)
	}
	users, err := g.database.SearchUsers(ctx, query, userID, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	return users, nil
}

func (g *Relationships) requireUser(ctx context.Context, id string) (*model.User, error) {
	u, err := g.database.FindUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("%w: user not found", ErrNotFound)
	}
	return u, nil
}
