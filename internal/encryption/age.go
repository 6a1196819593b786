// Package encryption encrypts attachment blobs at rest with age X25519 keys.
package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"
)

// AgeCipher encrypts to the public half of an X25519 identity and decrypts
// with the private half. Both halves stay in memory once loaded.
type AgeCipher struct {
	identity  age.Identity
	recipient age.Recipient
	public    string
}

// GenerateKey writes a new X25519 identity to path and returns its public
// recipient string. With a non-empty passphrase the key file is encrypted
// with age's scrypt-based passphrase encryption. An existing file is never
// overwritten.
func GenerateKey(path, passphrase string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("key file already exists at %s", path)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating key pair: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("creating key directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("creating key file: %w", err)
	}
	defer f.Close()

	var w io.WriteCloser = nopCloser{f}
	if passphrase != "" {
		recipient, err := age.NewScryptRecipient(passphrase)
		if err != nil {
			return "", fmt.Errorf("creating scrypt recipient: %w", err)
		}
		if w, err = age.Encrypt(f, recipient); err != nil {
			return "", fmt.Errorf("creating encrypted writer: %w", err)
		}
	}

	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return "", fmt.Errorf("writing private key: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing private key: %w", err)
	}

	return identity.Recipient().String(), nil
}

// LoadAgeCipher reads the identity written by GenerateKey. passphrase must
// match the one the key was generated with.
func LoadAgeCipher(path, passphrase string) (*AgeCipher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	if passphrase != "" {
		scrypt, err := age.NewScryptIdentity(passphrase)
		if err != nil {
			return nil, fmt.Errorf("creating scrypt identity: %w", err)
		}
		r, err := age.Decrypt(bytes.NewReader(data), scrypt)
		if err != nil {
			return nil, fmt.Errorf("unlocking key file: %w", err)
		}
		if data, err = io.ReadAll(r); err != nil {
			return nil, fmt.Errorf("reading unlocked key: %w", err)
		}
	}

	identities, err := age.ParseIdentities(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	if len(identities) == 0 {
		return nil, errors.New("no identities found in key file")
	}

	x, ok := identities[0].(*age.X25519Identity)
	if !ok {
		return nil, errors.New("key file does not hold an X25519 identity")
	}
	return &AgeCipher{identity: x, recipient: x.Recipient(), public: x.Recipient().String()}, nil
}

// Recipient returns the public key blobs are encrypted to.
func (c *AgeCipher) Recipient() string { return c.public }

// Encrypt reads plaintext from r and writes age ciphertext to w.
func (c *AgeCipher) Encrypt(r io.Reader, w io.Writer) error {
	encWriter, err := age.Encrypt(w, c.recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}

	if _, err := io.Copy(encWriter, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}

	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}

	return nil
}

// Decrypt reads age ciphertext from r and writes plaintext to w.
func (c *AgeCipher) Decrypt(r io.Reader, w io.Writer) error {
	decReader, err := age.Decrypt(r, c.identity)
	if err != nil {
		return fmt.Errorf("creating decrypted reader: %w", err)
	}

	if _, err := io.Copy(w, decReader); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}

	return nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
