package storage

import (
	"context"
	"fmt"
	"os"

	"chatboard/internal/chat"
	"chatboard/internal/config"
	"chatboard/internal/encryption"
)

// DefaultPublicBaseURL is used by local stores when none is configured.
const DefaultPublicBaseURL = "/uploads"

// KeyPassphraseEnv names the environment variable holding the passphrase of
// a protected attachment key file.
const KeyPassphraseEnv = "CHATBOARD_KEY_PASSPHRASE"

// NewObjectStoreFromConfig creates an ObjectStore based on the storage config
// type, wrapped in an EncryptedStore when an encryption key is configured.
func NewObjectStoreFromConfig(ctx context.Context, cfg config.StorageConfig) (chat.ObjectStore, error) {
	store, err := newBaseStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.EncryptionKeyPath == "" {
		return store, nil
	}

	cipher, err := encryption.LoadAgeCipher(cfg.EncryptionKeyPath, os.Getenv(KeyPassphraseEnv))
	if err != nil {
		return nil, fmt.Errorf("loading attachment key: %w", err)
	}
	return NewEncryptedStore(store, cipher), nil
}

// newBaseStore builds the unencrypted store. Encrypted blobs are only
// readable through the gateway, so they default to its /uploads route even
// on S3.
func newBaseStore(ctx context.Context, cfg config.StorageConfig) (chat.ObjectStore, error) {
	if cfg.PublicBaseURL == "" && (cfg.Type != "s3" || cfg.EncryptionKeyPath != "") {
		cfg.PublicBaseURL = DefaultPublicBaseURL
	}
	baseURL := cfg.PublicBaseURL

	switch cfg.Type {
	case "memory":
		return NewMemoryStore(baseURL), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem storage requires fs_root to be set")
		}
		return NewFileSystemStore(cfg.FSRoot, baseURL)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
