package database

import (
	"fmt"
	"os"
	"path/filepath"

	"chatboard/internal/config"
)

// NewDatabaseFromConfig opens the database described by cfg. The schema is
// not touched: callers migrate or check it explicitly, except for memory
// databases which always start empty and are migrated here.
func NewDatabaseFromConfig(cfg config.DatabaseConfig) (*SQLiteDatabase, error) {
	timeout := cfg.Timeout.Duration

	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data_dir: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, "chatboard.db"), timeout)
	case "memory":
		db, err := NewSQLiteDatabase(":memory:", timeout)
		if err != nil {
			return nil, err
		}
		if err := db.MigrateUp(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating memory database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
