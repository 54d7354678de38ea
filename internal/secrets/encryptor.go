// Package secrets stores the gateway's upstream credentials on disk,
// encrypted with an age x25519 identity held in a local key file.
package secrets

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

// AgeEncryptor encrypts and decrypts byte blobs with a single x25519
// identity.
type AgeEncryptor struct {
	identity *age.X25519Identity
}

// NewEncryptor wraps an existing identity.
func NewEncryptor(identity *age.X25519Identity) *AgeEncryptor {
	return &AgeEncryptor{identity: identity}
}

// LoadOrCreateIdentity reads the age identity at path, generating and
// persisting a new one (mode 0600) if the file does not exist.
func LoadOrCreateIdentity(path string) (*AgeEncryptor, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("parse identity file %s: %w", path, err)
		}
		return NewEncryptor(identity), nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read identity file %s: %w", path, err)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(identity.String()+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("write identity file %s: %w", path, err)
	}
	return NewEncryptor(identity), nil
}

// Recipient returns the public key for this identity, safe to print.
func (e *AgeEncryptor) Recipient() string {
	return e.identity.Recipient().String()
}

// Encrypt seals plaintext to this identity's recipient.
func (e *AgeEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, e.identity.Recipient())
	if err != nil {
		return nil, fmt.Errorf("create age encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("write plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize encryption: %w", err)
	}
	return buf.Bytes(), nil
}

// Decrypt opens a blob sealed with Encrypt.
func (e *AgeEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), e.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read plaintext: %w", err)
	}
	return plaintext, nil
}
