package testutil

import (
	"context"
	"testing"
	"time"

	"chatboard/internal/database"
	"chatboard/internal/model"
)

// NewTestDatabase creates an in-memory SQLite database with migrations applied.
// The database is closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:", 5*time.Second)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		t.Fatalf("failed to migrate database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// CreateUser inserts a user whose id, username and email derive from name.
func CreateUser(t *testing.T, db *database.SQLiteDatabase, name string) *model.User {
	t.Helper()

	u := &model.User{
		ID:           "user-" + name,
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		CreatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	return u
}
