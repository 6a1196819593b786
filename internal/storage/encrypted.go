package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"chatboard/internal/chat"
)

// Cipher encrypts blobs before they reach the underlying store.
type Cipher interface {
	Encrypt(r io.Reader, w io.Writer) error
	Decrypt(r io.Reader, w io.Writer) error
}

// EncryptedStore wraps another store so blobs are encrypted at rest. Blobs
// are only readable through Get, so public URLs must point at the gateway's
// /uploads route rather than directly at the bucket.
type EncryptedStore struct {
	inner  chat.ObjectStore
	cipher Cipher
}

func NewEncryptedStore(inner chat.ObjectStore, cipher Cipher) *EncryptedStore {
	return &EncryptedStore{inner: inner, cipher: cipher}
}

// Put encrypts into memory first: the ciphertext size the inner store needs
// is only known once encryption is complete.
func (s *EncryptedStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	counted := &countingReader{r: r}
	var buf bytes.Buffer
	if err := s.cipher.Encrypt(counted, &buf); err != nil {
		return "", fmt.Errorf("encrypting blob: %w", err)
	}
	if counted.n != size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counted.n)
	}
	return s.inner.Put(ctx, key, &buf, int64(buf.Len()), contentType)
}

func (s *EncryptedStore) Get(ctx context.Context, key string, w io.Writer) error {
	pr, pw := io.Pipe()
	errCh := make(chan error, 1)
	go func() {
		err := s.inner.Get(ctx, key, pw)
		pw.CloseWithError(err)
		errCh <- err
	}()

	decErr := s.cipher.Decrypt(pr, w)
	pr.Close()
	// A failed decrypt closes the pipe under the inner store's writer.
	if err := <-errCh; err != nil && (decErr == nil || !errors.Is(err, io.ErrClosedPipe)) {
		return err
	}
	if decErr != nil {
		return fmt.Errorf("decrypting blob: %w", decErr)
	}
	return nil
}

func (s *EncryptedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *EncryptedStore) ValidateSetup(ctx context.Context) error {
	return s.inner.ValidateSetup(ctx)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

var _ chat.ObjectStore = (*EncryptedStore)(nil)
