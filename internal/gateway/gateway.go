// Package gateway exposes the chat components over HTTP JSON under /api/v1
// and mounts the live channel, attachment downloads and metrics.
package gateway

import (
	"context"
	"net/http"
	"strings"

	"chatboard/internal/auth"
	"chatboard/internal/chat"
)

// APIPrefix is the root of every JSON route.
const APIPrefix = "/api/v1"

// AuthService registers, logs in and authenticates users.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Authenticate(accessToken string) (string, error)
}

// Options configures the optional surfaces of a Gateway.
type Options struct {
	MaxUploadSize int64
	Live          http.Handler // mounted at /ws when set
	Metrics       http.Handler // mounted at MetricsPath when set
	MetricsPath   string
}

// Gateway is the HTTP front of the server.
type Gateway struct {
	svc    *chat.ChatService
	auth   AuthService
	store  chat.ObjectStore
	logger chat.Logger
	opts   Options

	handler http.Handler
}

func New(svc *chat.ChatService, authSvc AuthService, store chat.ObjectStore, logger chat.Logger, opts Options) *Gateway {
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	g := &Gateway{svc: svc, auth: authSvc, store: store, logger: logger, opts: opts}
	g.handler = cors(g.routes())
	return g
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.handler.ServeHTTP(w, r)
}

func (g *Gateway) routes() *http.ServeMux {
	mux := http.NewServeMux()
	api := func(pattern string, h http.HandlerFunc) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.Handle(method+" "+APIPrefix+path, g.logged(h))
	}
	private := func(pattern string, h http.HandlerFunc) {
		api(pattern, g.authenticated(h))
	}

	api("GET /health", g.health)

	api("POST /auth/register", g.register)
	api("POST /auth/login", g.login)
	api("POST /auth/refresh", g.refresh)
	private("POST /auth/logout", g.logout)

	private("GET /friends", g.listFriends)
	private("GET /friends/search", g.searchUsers)
	private("GET /friends/requests/received", g.listReceived)
	private("GET /friends/pending", g.listReceived)
	private("GET /friends/requests/sent", g.listSent)
	private("POST /friends/request", g.sendFriendRequest)
	private("POST /friends/accept", g.respondFriendRequest(chat.DecisionAccept))
	private("POST /friends/decline", g.respondFriendRequest(chat.DecisionDecline))

	private("POST /messages", g.sendMessage)
	private("GET /messages/conversation/{userId}", g.conversation)
	private("PATCH /messages/{id}", g.editMessage)
	private("DELETE /messages/{id}", g.deleteMessage)
	private("PATCH /messages/{id}/read", g.markMessageRead)

	private("GET /notifications", g.listNotifications)
	private("GET /notifications/unread", g.listUnreadNotifications)
	private("GET /notifications/messages", g.listMessageNotifications)
	private("PATCH /notifications/mark-all-read", g.markAllNotificationsRead)
	private("PATCH /notifications/{id}/read", g.markNotificationRead)
	private("DELETE /notifications/{id}", g.deleteNotification)

	private("GET /users/search", g.searchUsers)

	mux.Handle("GET /uploads/{key...}", g.logged(http.HandlerFunc(g.download)))
	if g.opts.Live != nil {
		// Not wrapped: the upgrade hijacks the underlying connection.
		mux.Handle("GET /ws", g.opts.Live)
	}
	if g.opts.Metrics != nil {
		mux.Handle("GET "+g.opts.MetricsPath, g.opts.Metrics)
	}
	return mux
}

func (g *Gateway) health(w http.ResponseWriter, r *http.Request) {
	g.ok(w, http.StatusOK, "Server is up and running", nil)
}
