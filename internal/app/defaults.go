package app

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"chatboard/internal/config"
)

// Defaults holds the paths and listen address a fresh install starts with.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
	DataDir    string
	UploadDir  string
	KeyPath    string
	Addr       string
}

// GetDefaults resolves defaults, checking environment variables first.
// Environment variables:
//   - CHATBOARD_CONFIG_PATH: config file location (default: ~/.config/chatboard.toml)
//   - CHATBOARD_HOME: base directory for chatboard data (default: ~/.local/share/chatboard)
//   - CHATBOARD_UPLOAD_DIR: attachment root (default: $CHATBOARD_HOME/uploads)
//   - CHATBOARD_ADDR: listen address (default: :3001)
func GetDefaults() (*Defaults, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	uploadDir := os.Getenv("CHATBOARD_UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = filepath.Join(baseDir, "uploads")
	}

	addr := os.Getenv("CHATBOARD_ADDR")
	if addr == "" {
		addr = ":3001"
	}

	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		DataDir:    filepath.Join(baseDir, "db"),
		UploadDir:  uploadDir,
		KeyPath:    KeyPath(baseDir),
		Addr:       addr,
	}, nil
}

// KeyPath is where the attachment encryption key lives under baseDir.
func KeyPath(baseDir string) string {
	return filepath.Join(baseDir, "keys", "attachments.key")
}

// NewConfig builds a fresh config laid out under these defaults. Uploads
// are served by this instance, so their public URL follows the listen
// address.
func (d *Defaults) NewConfig(instanceID string) (*config.Config, error) {
	uploadsURL, err := uploadsURL(d.Addr)
	if err != nil {
		return nil, err
	}

	cfg, err := config.NewConfig(instanceID, d.BaseDir)
	if err != nil {
		return nil, err
	}
	cfg.LogDir = d.LogDir
	cfg.Server.Addr = d.Addr
	cfg.Database.DataDir = d.DataDir
	cfg.Storage.FSRoot = d.UploadDir
	cfg.Storage.PublicBaseURL = uploadsURL
	return cfg, nil
}

// uploadsURL maps a listen address to the gateway's uploads route. Wildcard
// hosts become localhost.
func uploadsURL(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/uploads", nil
}

// getConfigPath returns the config file path, checking CHATBOARD_CONFIG_PATH
// first, then falling back to ~/.config/chatboard.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("CHATBOARD_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "chatboard.toml"), nil
}

// getBaseDir returns the base directory for chatboard data, checking
// CHATBOARD_HOME first, then falling back to ~/.local/share/chatboard.
func getBaseDir() (string, error) {
	if path := os.Getenv("CHATBOARD_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "chatboard"), nil
}
