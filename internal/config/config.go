package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the chatboard server configuration.
type Config struct {
	InstanceID    string              `toml:"instance_id"`
	BaseDir       string              `toml:"base_dir"`
	LogDir        string              `toml:"log_dir"`
	LogLevel      string              `toml:"log_level"` // debug, info, warn or error
	Server        ServerConfig        `toml:"server"`
	Database      DatabaseConfig      `toml:"database"`
	Storage       StorageConfig       `toml:"storage"`
	Auth          AuthConfig          `toml:"auth"`
	Presence      PresenceConfig      `toml:"presence"`
	Notifications NotificationsConfig `toml:"notifications"`
	Metrics       MetricsConfig       `toml:"metrics"`
}

// Duration is a time.Duration written as a string ("5s", "1h") in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	OutboundBuffer int      `toml:"outbound_buffer"` // events buffered per live connection
	WriteTimeout   Duration `toml:"write_timeout"`   // per frame on the live channel
}

// DatabaseConfig represents configuration for the durable store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string   `toml:"type"`               // "sqlite" or "memory"
	DataDir string   `toml:"data_dir,omitempty"` // only used for type=sqlite
	Timeout Duration `toml:"timeout"`            // bound on every store call
}

// StorageConfig represents configuration for attachment object storage.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StorageConfig struct {
	Type          string `toml:"type"`            // "memory", "filesystem" or "s3"
	MaxUploadSize int64  `toml:"max_upload_size"` // bytes

	// Base URL blobs are served under; local stores are served by the gateway
	// at /uploads.
	PublicBaseURL string `toml:"public_base_url,omitempty"`

	// Age key file attachments are encrypted with at rest. Empty disables
	// encryption. Encrypted blobs are only readable through /uploads.
	EncryptionKeyPath string `toml:"encryption_key_path,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// AuthConfig holds token signing and password hashing settings.
type AuthConfig struct {
	AccessSecret  string   `toml:"access_secret"`
	RefreshSecret string   `toml:"refresh_secret"`
	AccessTTL     Duration `toml:"access_ttl"`
	RefreshTTL    Duration `toml:"refresh_ttl"`
	BcryptCost    int      `toml:"bcrypt_cost,omitempty"`
}

// PresenceConfig selects the presence model.
type PresenceConfig struct {
	Mode string `toml:"mode"` // "multi" (default) or "single"
}

// NotificationsConfig toggles optional notifications.
type NotificationsConfig struct {
	OnDecline bool `toml:"on_decline"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path,omitempty"`
}

// NewConfig creates a Config rooted at baseDir with production defaults and
// freshly generated token secrets.
func NewConfig(instanceID, baseDir string) (*Config, error) {
	accessSecret, err := randomSecret()
	if err != nil {
		return nil, err
	}
	refreshSecret, err := randomSecret()
	if err != nil {
		return nil, err
	}

	return &Config{
		InstanceID: instanceID,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		LogLevel:   "info",
		Server: ServerConfig{
			Addr:           ":3001",
			OutboundBuffer: 64,
			WriteTimeout:   Duration{10 * time.Second},
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
			Timeout: Duration{5 * time.Second},
		},
		Storage: StorageConfig{
			Type:          "filesystem",
			MaxUploadSize: 10 << 20,
			PublicBaseURL: "http://localhost:3001/uploads",
			FSRoot:        filepath.Join(baseDir, "uploads"),
		},
		Auth: AuthConfig{
			AccessSecret:  accessSecret,
			RefreshSecret: refreshSecret,
			AccessTTL:     Duration{time.Hour},
			RefreshTTL:    Duration{7 * 24 * time.Hour},
		},
		Presence: PresenceConfig{Mode: "multi"},
		Metrics:  MetricsConfig{Enabled: true, Path: "/metrics"},
	}, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes cfg to path with owner-only permissions since the file
// carries token secrets.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

// Validate checks the settings every server start depends on.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Auth.AccessSecret == "" || c.Auth.RefreshSecret == "" {
		return fmt.Errorf("auth.access_secret and auth.refresh_secret are required")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return fmt.Errorf("auth.access_secret and auth.refresh_secret must differ")
	}
	switch c.Presence.Mode {
	case "", "multi", "single":
	default:
		return fmt.Errorf("presence.mode must be multi or single, got %q", c.Presence.Mode)
	}
	if c.Storage.MaxUploadSize < 0 {
		return fmt.Errorf("storage.max_upload_size must not be negative")
	}
	return nil
}
