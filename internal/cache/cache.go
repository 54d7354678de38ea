package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

const shardCount = 16

// Memory is an in-process cache backend with LRU eviction and TTL expiry.
// It is sharded by key hash so concurrent access to unrelated keys never
// contends on the same mutex.
type Memory struct {
	shards [shardCount]*shard
}

type shard struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	evictList  *list.List
	maxEntries int
	stats      Stats
}

type entry struct {
	key       string
	value     json.RawMessage
	createdAt time.Time
	expiresAt time.Time
}

// NewMemory creates a memory backend bounded at maxEntries total.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	perShard := maxEntries / shardCount
	if perShard < 1 {
		perShard = 1
	}
	m := &Memory{}
	for i := range m.shards {
		m.shards[i] = &shard{
			items:      make(map[string]*list.Element),
			evictList:  list.New(),
			maxEntries: perShard,
		}
	}
	return m
}

func (m *Memory) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return m.shards[h.Sum32()%shardCount]
}

// Get retrieves a value. An entry past its TTL is treated as a miss and
// evicted in place.
func (m *Memory) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		s.stats.Misses++
		return nil, false, nil
	}

	e := el.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		s.removeLocked(el)
		s.stats.Misses++
		return nil, false, nil
	}

	s.evictList.MoveToFront(el)
	s.stats.Hits++
	return e.value, true, nil
}

// Set stores a value with the given TTL, replacing any existing entry.
func (m *Memory) Set(_ context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if el, ok := s.items[key]; ok {
		s.evictList.MoveToFront(el)
		e := el.Value.(*entry)
		e.value = value
		e.createdAt = now
		e.expiresAt = now.Add(ttl)
		return nil
	}

	e := &entry{
		key:       key,
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	s.items[key] = s.evictList.PushFront(e)

	for s.evictList.Len() > s.maxEntries {
		s.evictOldestLocked()
	}
	return nil
}

// Delete removes a single key.
func (m *Memory) Delete(_ context.Context, key string) error {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		s.removeLocked(el)
	}
	return nil
}

// DeletePrefix removes all keys with the given prefix across every shard.
// Returns the number of entries removed.
func (m *Memory) DeletePrefix(_ context.Context, prefix string) (int, error) {
	removed := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for key, el := range s.items {
			if strings.HasPrefix(key, prefix) {
				s.removeLocked(el)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed, nil
}

// Ping reports backend reachability. The in-process backend is always
// reachable.
func (m *Memory) Ping(context.Context) error { return nil }

// Flush removes all entries.
func (m *Memory) Flush() {
	for _, s := range m.shards {
		s.mu.Lock()
		s.items = make(map[string]*list.Element)
		s.evictList.Init()
		s.mu.Unlock()
	}
}

// Len returns the total number of entries across shards.
func (m *Memory) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.Lock()
		n += len(s.items)
		s.mu.Unlock()
	}
	return n
}

// Stats returns an aggregated snapshot of cache statistics.
func (m *Memory) Stats() Stats {
	var agg Stats
	for _, s := range m.shards {
		s.mu.Lock()
		agg.Hits += s.stats.Hits
		agg.Misses += s.stats.Misses
		agg.Evictions += s.stats.Evictions
		agg.Entries += len(s.items)
		s.mu.Unlock()
	}
	if total := agg.Hits + agg.Misses; total > 0 {
		agg.HitRate = float64(agg.Hits) / float64(total)
	}
	return agg
}

func (s *shard) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	delete(s.items, e.key)
	s.evictList.Remove(el)
}

func (s *shard) evictOldestLocked() {
	el := s.evictList.Back()
	if el == nil {
		return
	}
	s.removeLocked(el)
	s.stats.Evictions++
}
