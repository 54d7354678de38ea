package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fieldstack/maximo-mcp/internal/cache"
)

type stubProber struct{ err error }

func (p stubProber) WhoAmI(ctx context.Context) error { return p.err }

// brokenBackend fails every operation, so the cache signal reports down.
type brokenBackend struct{}

var errBackend = errors.New("backend down")

func (brokenBackend) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	return nil, false, errBackend
}

func (brokenBackend) Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	return errBackend
}

func (brokenBackend) Delete(ctx context.Context, key string) error {
	return errBackend
}

func (brokenBackend) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	return 0, errBackend
}

func (brokenBackend) Ping(ctx context.Context) error {
	return errBackend
}

func TestHealthChecker_Matrix(t *testing.T) {
	healthyCache := cache.NewManager(cache.NewMemory(16))
	brokenCache := cache.NewManager(brokenBackend{})

	cases := []struct {
		name     string
		cache    *cache.Manager
		upstream error
		want     string
	}{
		{"both up", healthyCache, nil, StatusHealthy},
		{"upstream down", healthyCache, errors.New("connect refused"), StatusDegraded},
		{"cache down", brokenCache, nil, StatusDegraded},
		{"both down", brokenCache, errors.New("connect refused"), StatusUnhealthy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checker := NewHealthChecker(tc.cache, stubProber{err: tc.upstream})
			got := checker.Check(context.Background())
			if got.Status != tc.want {
				t.Fatalf("status = %q; want %q (signals %+v)", got.Status, tc.want, got.Signals)
			}
			if tc.upstream != nil && got.Signals["upstream"].Error == "" {
				t.Error("upstream failure must carry its error text")
			}
		})
	}
}
