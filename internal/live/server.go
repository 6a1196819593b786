package live

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"chatboard/internal/chat"
)

// Authenticator resolves a bearer token to a user id.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

// Config tunes live connections.
type Config struct {
	OutboundBuffer int
	WriteTimeout   time.Duration
}

// Server upgrades authenticated HTTP requests to WebSocket live connections
// and dispatches their inbound events.
type Server struct {
	svc    *chat.ChatService
	auth   Authenticator
	logger chat.Logger
	idgen  chat.IDGenerator
	cfg    Config

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewServer(svc *chat.ChatService, auth Authenticator, logger chat.Logger, idgen chat.IDGenerator, cfg Config) *Server {
	return &Server{svc: svc, auth: auth, logger: logger, idgen: idgen, cfg: cfg}
}

// ServeHTTP authenticates the handshake and upgrades the request. The
// token's user id becomes the connection's bound identity.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := s.auth.Authenticate(bearerToken(r))
	if err != nil {
		s.logger.Debug("rejected live connection", "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if !s.track() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	raw, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn("upgrade failed", "user", userID, "error", err)
		s.wg.Add(-2)
		return
	}

	c := newConn(s.idgen.New(), raw, s.cfg.OutboundBuffer, s.cfg.WriteTimeout)
	s.svc.Presence.Connect(context.Background(), userID, c)
	s.logger.Debug("live connection opened", "user", userID, "conn", c.ID())

	// Close may have run between track and Connect, after the service took
	// its snapshot of registered connections.
	if s.isClosed() {
		c.Close()
	}

	go func() {
		defer s.wg.Done()
		if err := c.writeLoop(); err != nil {
			s.logger.Debug("write loop ended", "conn", c.ID(), "error", err)
		}
	}()
	go func() {
		defer s.wg.Done()
		s.serve(userID, c)
	}()
}

func (s *Server) serve(userID string, c *wsConn) {
	defer func() {
		c.Close()
		s.svc.Presence.Disconnect(context.Background(), c)
		s.logger.Debug("live connection closed", "user", userID, "conn", c.ID())
	}()

	h := &handler{svc: s.svc, logger: s.logger, userID: userID, conn: c}
	err := c.readLoop(func(data []byte) {
		h.dispatch(context.Background(), data)
	})
	var closed wsutil.ClosedError
	if err != nil && !errors.As(err, &closed) && !errors.Is(err, io.EOF) {
		s.logger.Debug("read loop ended", "conn", c.ID(), "error", err)
	}
}

// track counts a new connection's two loops, or reports false once Close
// has been called.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(2)
	return true
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close refuses further upgrades. Connections already open are closed by
// ChatService.Shutdown; call Close first so none slips past it.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Wait blocks until every connection's loops have exited or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// bearerToken reads the token from the Authorization header, falling back
// to the token query parameter for browser clients.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}
