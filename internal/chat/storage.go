package chat

import (
	"context"
	"io"
)

// ObjectStore holds uploaded attachment blobs. Operations stream through
// io.Reader/io.Writer so attachments are never buffered whole by callers.
type ObjectStore interface {
	// Put stores size bytes read from r under key and returns the public URL.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)

	// Get writes the blob stored under key to w. Returns ErrNotFound for an
	// unknown key.
	Get(ctx context.Context, key string, w io.Writer) error

	// Delete removes the blob. Deleting an unknown key is not an error.
	Delete(ctx context.Context, key string) error

	// ValidateSetup verifies the store is reachable and configured.
	ValidateSetup(ctx context.Context) error
}

// Upload is an attachment received from a client.
type Upload struct {
	Name     string
	MimeType string
	Size     int64
	Body     io.Reader
}
