package gateway

import (
	"net/http"

	"chatboard/internal/model"
)

func (g *Gateway) listNotifications(w http.ResponseWriter, r *http.Request) {
	ns, err := g.svc.Notifications.ListAll(r.Context(), userID(r))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.ok(w, http.StatusOK, "", map[string]any{"notifications": orEmpty(ns)})
}

func (g *Gateway) listUnreadNotifications(w http.ResponseWriter, r *http.Request) {
	ns, err := g.svc.Notifications.ListUnread(r.Context(), userID(r))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.ok(w, http.StatusOK, "", map[string]any{"notifications": orEmpty(ns)})
}

func (g *Gateway) listMessageNotifications(w http.ResponseWriter, r *http.Request) {
	ns, err := g.svc.Notifications.ListByType(r.Context(), userID(r), model.NotificationMessage)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.ok(w, http.StatusOK, "", map[string]any{"notifications": orEmpty(ns)})
}

func (g *Gateway) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	n, err := g.svc.Notifications.MarkRead(r.Context(), r.PathValue("id"), userID(r))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.ok(w, http.StatusOK, "", map[string]any{"notification": n})
}

func (g *Gateway) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	count, err := g.svc.Notifications.MarkAllRead(r.Context(), userID(r))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.ok(w, http.StatusOK, "All notifications marked as read", map[string]any{"count": count})
}

func (g *Gateway) deleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := g.svc.Notifications.Delete(r.Context(), r.PathValue("id"), userID(r)); err != nil {
		g.fail(w, r, err)
		return
	}
	g.ok(w, http.StatusOK, "Notification deleted successfully", nil)
}
