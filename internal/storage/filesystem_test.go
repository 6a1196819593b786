package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chatboard/internal/chat"
)

func TestFileSystemStore_PutGetDelete(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileSystemStore(root, "/uploads")
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	ctx := context.Background()

	url, err := store.Put(ctx, "chat_files/photo.png", strings.NewReader("png-bytes"), 9, "image/png")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if url != "/uploads/chat_files/photo.png" {
		t.Errorf("Put() url = %q", url)
	}
	if _, err := os.Stat(filepath.Join(root, "chat_files", "photo.png")); err != nil {
		t.Fatalf("blob file not written: %v", err)
	}

	var buf bytes.Buffer
	if err := store.Get(ctx, "chat_files/photo.png", &buf); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if buf.String() != "png-bytes" {
		t.Errorf("Get() = %q, want %q", buf.String(), "png-bytes")
	}

	if err := store.Delete(ctx, "chat_files/photo.png"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Get(ctx, "chat_files/photo.png", &buf); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("Get() after Delete() error = %v, want ErrNotFound", err)
	}
}

func TestFileSystemStore_SizeMismatchLeavesNothing(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileSystemStore(root, "")
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	_, err = store.Put(context.Background(), "chat_files/short.txt", strings.NewReader("abc"), 5, "")
	if err == nil {
		t.Fatal("Put() expected size mismatch error")
	}

	entries, err := os.ReadDir(filepath.Join(root, "chat_files"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files after failed Put(), found %d", len(entries))
	}
}

func TestFileSystemStore_RejectsTraversal(t *testing.T) {
	store, err := NewFileSystemStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	if _, err := store.Put(context.Background(), "../outside", strings.NewReader("x"), 1, ""); err == nil {
		t.Error("Put() with traversal key expected error")
	}
	if err := store.Get(context.Background(), "../outside", &bytes.Buffer{}); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("Get() with traversal key error = %v, want ErrNotFound", err)
	}
}

func TestFileSystemStore_ValidateSetup(t *testing.T) {
	t.Run("valid root", func(t *testing.T) {
		store, err := NewFileSystemStore(t.TempDir(), "")
		if err != nil {
			t.Fatalf("NewFileSystemStore() error = %v", err)
		}
		if err := store.ValidateSetup(context.Background()); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})

	t.Run("root removed", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "gone")
		store, err := NewFileSystemStore(root, "")
		if err != nil {
			t.Fatalf("NewFileSystemStore() error = %v", err)
		}
		os.RemoveAll(root)
		if err := store.ValidateSetup(context.Background()); err == nil {
			t.Error("ValidateSetup() expected error for missing root")
		}
	})
}
