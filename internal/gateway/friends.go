package gateway

import (
	"fmt"
	"net/http"

	"chatboard/internal/chat"
	"chatboard/internal/model"
)

func (g *Gateway) listFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := g.svc.Relationships.ListFriends(r.Context(), userID(r))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.ok(w, http.StatusOK, "", map[string]any{"friends": orEmpty(friends)})
}

func (g *Gateway) searchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := g.svc.Relationships.SearchUsers(r.Context(), userID(r), r.URL.Query().Get("username"))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.ok(w, http.StatusOK, "", map[string]any{"users": orEmpty(users)})
}

func (g *Gateway) listReceived(w http.ResponseWriter, r *http.Request) {
	reqs, err := g.svc.Relationships.ListPending(r.Context(), userID(r))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.ok(w, http.StatusOK, "", map[string]any{"requests": orEmpty(reqs)})
}

func (g *Gateway) listSent(w http.ResponseWriter, r *http.Request) {
	reqs, err := g.svc.Relationships.ListSent(r.Context(), userID(r))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.ok(w, http.StatusOK, "", map[string]any{"requests": orEmpty(reqs)})
}

func (g *Gateway) sendFriendRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		g.fail(w, r, err)
		return
	}

	req, err := g.svc.Relationships.SendRequest(r.Context(), userID(r), body.UserID)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.ok(w, http.StatusCreated, "Friend request sent", map[string]any{"request": req})
}

func (g *Gateway) respondFriendRequest(decision chat.Decision) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RequestID string `json:"requestId"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			g.fail(w, r, err)
			return
		}
		if body.RequestID == "" {
			g.fail(w, r, fmt.Errorf("%w: requestId is required", chat.ErrValidation))
			return
		}

		req, err := g.svc.Relationships.Respond(r.Context(), body.RequestID, userID(r), decision)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		msg := "Friend request accepted"
		if req.Status == model.RequestDeclined {
			msg = "Friend request declined"
		}
		g.ok(w, http.StatusOK, msg, map[string]any{"request": req})
	}
}

// orEmpty keeps empty listings encoded as [] rather than null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
