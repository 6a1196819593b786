package testutil

import "chatboard/internal/storage"

// NewTestStore creates an in-memory object store serving under /uploads.
func NewTestStore() *storage.MemoryStore {
	return storage.NewMemoryStore("/uploads")
}
