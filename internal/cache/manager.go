package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Backend is the storage interface the Manager sits on. Implementations
// must support concurrent access; every operation is fallible so remote
// backends can report unavailability.
type Backend interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Ping(ctx context.Context) error
}

// Manager fronts a Backend and absorbs its failures: the cache is an
// optimization, so a backend error degrades to a miss on read and a
// dropped write, never a failed request.
type Manager struct {
	backend Backend
}

// NewManager creates a cache Manager over the given backend.
func NewManager(b Backend) *Manager {
	return &Manager{backend: b}
}

// Get returns the cached value for key, or false on miss. Backend errors
// are logged and reported as a miss.
func (m *Manager) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	val, ok, err := m.backend.Get(ctx, key)
	if err != nil {
		slog.Warn("cache get failed, treating as miss", "key", key, "error", err)
		return nil, false
	}
	return val, ok
}

// Set stores value under key with the given TTL. Backend errors are
// logged and the write is dropped.
func (m *Manager) Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := m.backend.Set(ctx, key, value, ttl); err != nil {
		slog.Warn("cache set failed, skipping write", "key", key, "error", err)
	}
}

// Invalidate removes a single key.
func (m *Manager) Invalidate(ctx context.Context, key string) {
	if err := m.backend.Delete(ctx, key); err != nil {
		slog.Warn("cache invalidate failed", "key", key, "error", err)
	}
}

// InvalidatePrefix removes every key with the given prefix.
func (m *Manager) InvalidatePrefix(ctx context.Context, prefix string) {
	n, err := m.backend.DeletePrefix(ctx, prefix)
	if err != nil {
		slog.Warn("cache prefix invalidate failed", "prefix", prefix, "error", err)
		return
	}
	if n > 0 {
		slog.Debug("cache prefix invalidated", "prefix", prefix, "removed", n)
	}
}

// Healthy reports whether the backend is reachable.
func (m *Manager) Healthy(ctx context.Context) bool {
	return m.backend.Ping(ctx) == nil
}
