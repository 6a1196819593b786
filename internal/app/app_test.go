package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"

	"chatboard/internal/config"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.NewConfig("test-instance", t.TempDir())
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Database = config.DatabaseConfig{Type: "memory", Timeout: config.Duration{Duration: 5 * time.Second}}
	cfg.Storage = config.StorageConfig{Type: "memory", MaxUploadSize: 1024}
	cfg.Auth.BcryptCost = 4
	cfg.LogLevel = "error"
	return cfg
}

func TestNewChatApp_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"shared secrets", func(c *config.Config) { c.Auth.RefreshSecret = c.Auth.AccessSecret }},
		{"unknown log level", func(c *config.Config) { c.LogLevel = "chatty" }},
		{"unknown storage", func(c *config.Config) { c.Storage.Type = "tape" }},
		{"unknown database", func(c *config.Config) { c.Database.Type = "postgres" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t)
			tt.mutate(cfg)
			if a, err := NewChatApp(context.Background(), cfg); err == nil {
				a.Close()
				t.Error("NewChatApp() expected error")
			}
		})
	}
}

func TestNewChatApp_UnmigratedDatabase(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Database = config.DatabaseConfig{Type: "sqlite", DataDir: t.TempDir()}

	a, err := NewChatApp(context.Background(), cfg)
	if err == nil {
		a.Close()
		t.Fatal("NewChatApp() on an unmigrated database expected error")
	}
	if !strings.Contains(err.Error(), "out of date") {
		t.Errorf("error = %v", err)
	}
}

func TestChatApp_Serve(t *testing.T) {
	cfg := newTestConfig(t)
	a, err := NewChatApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewChatApp() error = %v", err)
	}
	defer a.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	resp, err := http.Get(base + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /health = %d", resp.StatusCode)
	}

	resp, err = http.Post(base+"/api/v1/auth/register", "application/json",
		strings.NewReader(`{"username":"alice","email":"alice@example.com","password":"secret-alice"}`))
	if err != nil {
		t.Fatalf("register error = %v", err)
	}
	var body struct {
		Data struct {
			User struct {
				ID string `json:"id"`
			} `json:"user"`
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if body.Data.AccessToken == "" {
		t.Fatal("register returned no access token")
	}

	conn, _, _, err := ws.Dial(context.Background(), "ws://"+ln.Addr().String()+"/ws?token="+body.Data.AccessToken)
	if err != nil {
		t.Fatalf("ws.Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for !a.service.Presence.Online(body.Data.User.ID) {
		if time.Now().After(deadline) {
			t.Fatal("user never came online")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err = http.Get(base + cfg.Metrics.Path)
	if err != nil {
		t.Fatalf("GET metrics error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET metrics = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
	if a.service.Presence.Online(body.Data.User.ID) {
		t.Error("user still online after shutdown")
	}
}
