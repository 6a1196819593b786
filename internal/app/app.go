package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"chatboard/internal/auth"
	"chatboard/internal/chat"
	"chatboard/internal/config"
	"chatboard/internal/database"
	"chatboard/internal/gateway"
	"chatboard/internal/live"
	"chatboard/internal/metrics"
	"chatboard/internal/storage"
)

// shutdownTimeout bounds how long Serve waits for requests and live
// connections to drain.
const shutdownTimeout = 10 * time.Second

// ChatApp is the application layer between the CLI and the chat components.
// It constructs all dependencies from config, serves HTTP and the live
// channel, and manages the DB lifecycle on Close.
type ChatApp struct {
	cfg     *config.Config
	db      *database.SQLiteDatabase
	service *chat.ChatService
	live    *live.Server
	gateway *gateway.Gateway
	logger  chat.Logger
	logFile *os.File
}

// NewChatApp creates a fully wired ChatApp from the given config.
// The caller must call Close when done.
func NewChatApp(ctx context.Context, cfg *config.Config) (*ChatApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	mode, err := chat.ParsePresenceMode(cfg.Presence.Mode)
	if err != nil {
		return nil, err
	}
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewObjectStoreFromConfig(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("creating object store: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	slogger, logFile, err := newLogger(cfg.LogDir, level, cfg.InstanceID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	var m chat.Metrics = chat.NopMetrics{}
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(true)
		m = collector
	}

	clock := chat.RealClock{}
	idgen := chat.UUIDGenerator{}

	svc := chat.NewChatService(db, store, logger, m, clock, idgen, chat.Options{
		PresenceMode:    mode,
		NotifyOnDecline: cfg.Notifications.OnDecline,
		MaxUploadSize:   cfg.Storage.MaxUploadSize,
	})

	tokens, err := auth.NewTokenIssuer(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret,
		cfg.Auth.AccessTTL.Duration, cfg.Auth.RefreshTTL.Duration, clock)
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating token issuer: %w", err)
	}
	authSvc := auth.NewService(db, tokens, logger, clock, idgen, cfg.Auth.BcryptCost)

	liveSrv := live.NewServer(svc, authSvc, logger, idgen, live.Config{
		OutboundBuffer: cfg.Server.OutboundBuffer,
		WriteTimeout:   cfg.Server.WriteTimeout.Duration,
	})

	opts := gateway.Options{
		MaxUploadSize: cfg.Storage.MaxUploadSize,
		Live:          liveSrv,
		MetricsPath:   cfg.Metrics.Path,
	}
	if collector != nil {
		opts.Metrics = collector.Handler()
	}

	return &ChatApp{
		cfg:     cfg,
		db:      db,
		service: svc,
		live:    liveSrv,
		gateway: gateway.New(svc, authSvc, store, logger, opts),
		logger:  logger,
		logFile: logFile,
	}, nil
}

// Handler returns the HTTP handler serving the API, uploads, metrics and
// the live channel.
func (a *ChatApp) Handler() http.Handler {
	return a.gateway
}

// Run listens on the configured address and serves until ctx is done.
func (a *ChatApp) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve resets presence state, serves on ln until ctx is done and then shuts
// down: new requests are refused, live connections are closed and their
// presence transitions are allowed to finish.
func (a *ChatApp) Serve(ctx context.Context, ln net.Listener) error {
	if err := a.service.Start(ctx); err != nil {
		ln.Close()
		return fmt.Errorf("starting chat service: %w", err)
	}

	srv := &http.Server{
		Handler:           a.gateway,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	a.logger.Info("server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var firstErr error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		firstErr = fmt.Errorf("shutting down http server: %w", err)
	}
	a.live.Close()
	a.service.Shutdown()
	if err := a.live.Wait(shutdownCtx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("waiting for live connections: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) && firstErr == nil {
		firstErr = fmt.Errorf("serving http: %w", err)
	}
	return firstErr
}

// Close closes the database and the log file.
func (a *ChatApp) Close() error {
	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
