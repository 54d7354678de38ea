package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemory_GetSet(t *testing.T) {
	m := NewMemory(64)
	ctx := context.Background()

	// Miss on empty cache.
	_, ok, err := m.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected miss on empty cache")
	}

	if err := m.Set(ctx, "a", json.RawMessage(`{"n":42}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, _ := m.Get(ctx, "a")
	if !ok || string(v) != `{"n":42}` {
		t.Fatalf("Get(a) = %s, %v; want {\"n\":42}, true", v, ok)
	}
}

func TestMemory_TTLExpiry(t *testing.T) {
	m := NewMemory(64)
	ctx := context.Background()

	m.Set(ctx, "a", json.RawMessage(`1`), 10*time.Millisecond)

	if _, ok, _ := m.Get(ctx, "a"); !ok {
		t.Fatal("expected hit before TTL")
	}

	time.Sleep(15 * time.Millisecond)
	if _, ok, _ := m.Get(ctx, "a"); ok {
		t.Fatal("expected miss after TTL expiry")
	}
	// The expired entry is evicted on read.
	if m.Len() != 0 {
		t.Fatalf("Len = %d after expiry read; want 0", m.Len())
	}
}

func TestMemory_UpdateExisting(t *testing.T) {
	m := NewMemory(64)
	ctx := context.Background()

	m.Set(ctx, "a", json.RawMessage(`1`), time.Minute)
	m.Set(ctx, "a", json.RawMessage(`2`), time.Minute)

	v, ok, _ := m.Get(ctx, "a")
	if !ok || string(v) != "2" {
		t.Fatalf("Get(a) = %s, %v; want 2, true", v, ok)
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d; want 1", m.Len())
	}
}

func TestMemory_EvictionBound(t *testing.T) {
	m := NewMemory(16)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		m.Set(ctx, fmt.Sprintf("key-%d", i), json.RawMessage(`1`), time.Minute)
	}
	if m.Len() > 16 {
		t.Fatalf("Len = %d; want <= 16", m.Len())
	}
	if m.Stats().Evictions == 0 {
		t.Fatal("expected evictions to be counted")
	}
}

func TestMemory_Delete(t *testing.T) {
	m := NewMemory(64)
	ctx := context.Background()

	m.Set(ctx, "a", json.RawMessage(`1`), time.Minute)
	m.Set(ctx, "b", json.RawMessage(`2`), time.Minute)

	m.Delete(ctx, "a")
	if _, ok, _ := m.Get(ctx, "a"); ok {
		t.Fatal("expected 'a' to be deleted")
	}
	if _, ok, _ := m.Get(ctx, "b"); !ok {
		t.Fatal("expected 'b' to survive")
	}
}

func TestMemory_DeletePrefix(t *testing.T) {
	m := NewMemory(64)
	ctx := context.Background()

	m.Set(ctx, "asset:get:aaa", json.RawMessage(`1`), time.Minute)
	m.Set(ctx, "asset:search:bbb", json.RawMessage(`2`), time.Minute)
	m.Set(ctx, "workorder:get:ccc", json.RawMessage(`3`), time.Minute)

	n, err := m.DeletePrefix(ctx, "asset:")
	if err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	if n != 2 {
		t.Fatalf("removed = %d; want 2", n)
	}
	if _, ok, _ := m.Get(ctx, "asset:get:aaa"); ok {
		t.Fatal("expected asset detail to be purged")
	}
	if _, ok, _ := m.Get(ctx, "asset:search:bbb"); ok {
		t.Fatal("expected asset search to be purged")
	}
	if _, ok, _ := m.Get(ctx, "workorder:get:ccc"); !ok {
		t.Fatal("expected workorder entry to survive")
	}
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	m := NewMemory(1024)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("g%d-k%d", g, i)
				m.Set(ctx, key, json.RawMessage(`1`), time.Minute)
				m.Get(ctx, key)
				if i%10 == 0 {
					m.Delete(ctx, key)
				}
			}
		}(g)
	}
	wg.Wait()
}

func TestMemory_Stats(t *testing.T) {
	m := NewMemory(64)
	ctx := context.Background()

	m.Set(ctx, "a", json.RawMessage(`1`), time.Minute)
	m.Get(ctx, "a")
	m.Get(ctx, "missing")

	s := m.Stats()
	if s.Hits != 1 || s.Misses != 1 {
		t.Fatalf("stats = %+v; want 1 hit, 1 miss", s)
	}
	if s.HitRate != 0.5 {
		t.Fatalf("hit rate = %v; want 0.5", s.HitRate)
	}
}
