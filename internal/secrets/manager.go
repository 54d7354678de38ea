package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrNotFound indicates the requested secret key is not stored.
var ErrNotFound = errors.New("secret not found")

// Manager keeps a key/value secret map in a single age-encrypted file.
// Typical keys are the upstream apikey, the whoami credential, and the
// client credential accepted by the gate.
type Manager struct {
	mu        sync.Mutex
	path      string
	encryptor *AgeEncryptor
}

// NewManager creates a secrets Manager over the encrypted file at path.
func NewManager(path string, enc *AgeEncryptor) *Manager {
	return &Manager{path: path, encryptor: enc}
}

// Put encrypts and stores a secret under key, rewriting the file.
func (m *Manager) Put(key string, plaintext []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	values, err := m.load()
	if err != nil {
		return err
	}
	values[key] = string(plaintext)
	return m.save(values)
}

// Get decrypts and returns the secret stored under key.
func (m *Manager) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	values, err := m.load()
	if err != nil {
		return nil, err
	}
	val, ok := values[key]
	if !ok {
		return nil, fmt.Errorf("secret %q: %w", key, ErrNotFound)
	}
	return []byte(val), nil
}

// List returns all stored key names in sorted order, never values.
func (m *Manager) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	values, err := m.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes the secret stored under key.
func (m *Manager) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	values, err := m.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return fmt.Errorf("secret %q: %w", key, ErrNotFound)
	}
	delete(values, key)
	return m.save(values)
}

func (m *Manager) load() (map[string]string, error) {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read secrets file: %w", err)
	}

	plaintext, err := m.encryptor.Decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("decrypt secrets: %w", err)
	}

	var values map[string]string
	if err := json.Unmarshal(plaintext, &values); err != nil {
		return nil, fmt.Errorf("unmarshal secrets: %w", err)
	}
	return values, nil
}

func (m *Manager) save(values map[string]string) error {
	plaintext, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}
	encrypted, err := m.encryptor.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypt secrets: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("create secrets directory: %w", err)
	}
	// Write-then-rename so a crash never leaves a truncated file.
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, encrypted, 0o600); err != nil {
		return fmt.Errorf("write secrets file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace secrets file: %w", err)
	}
	return nil
}
