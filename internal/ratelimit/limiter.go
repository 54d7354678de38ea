package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Class identifies an operation class with its own throughput budget.
// Search queries and mutations get separate, tighter buckets than
// general reads.
type Class string

const (
	ClassGeneral Class = "general"
	ClassSearch  Class = "search"
	ClassCreate  Class = "create"
)

// Config holds per-class requests-per-minute capacities. Bucket capacity
// equals the per-minute count; tokens refill continuously at capacity/60
// per second.
type Config struct {
	GeneralPerMinute int
	SearchPerMinute  int
	CreatePerMinute  int
}

// DefaultConfig returns the stock per-class budgets.
func DefaultConfig() Config {
	return Config{
		GeneralPerMinute: 100,
		SearchPerMinute:  50,
		CreatePerMinute:  20,
	}
}

func (c Config) perMinute(class Class) int {
	switch class {
	case ClassSearch:
		return c.SearchPerMinute
	case ClassCreate:
		return c.CreatePerMinute
	default:
		return c.GeneralPerMinute
	}
}

const limiterShards = 16

// Limiter admits requests via per-(caller, class) token buckets. Buckets
// are created lazily on first use and live for the process lifetime. The
// bucket map is sharded by key hash so unrelated callers never contend.
type Limiter struct {
	cfg    Config
	shards [limiterShards]*limiterShard
}

type limiterShard struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// New creates a Limiter with the given per-class budgets.
func New(cfg Config) *Limiter {
	l := &Limiter{cfg: cfg}
	for i := range l.shards {
		l.shards[i] = &limiterShard{buckets: make(map[string]*rate.Limiter)}
	}
	return l
}

// Allow attempts to consume one token from the caller's bucket for the
// given class. When the bucket is exhausted it returns false along with
// the wait until the next token becomes available, computed from the
// refill rate.
func (l *Limiter) Allow(caller string, class Class) (bool, time.Duration) {
	bucket := l.bucket(caller, class)

	// Reserve-then-cancel keeps the check-and-consume atomic: the
	// reservation either succeeds immediately (token consumed) or is
	// cancelled, returning the would-be tokens to the bucket.
	r := bucket.Reserve()
	if !r.OK() {
		return false, time.Minute
	}
	delay := r.Delay()
	if delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}

func (l *Limiter) bucket(caller string, class Class) *rate.Limiter {
	key := caller + "\x00" + string(class)

	h := fnv.New32a()
	h.Write([]byte(key))
	s := l.shards[h.Sum32()%limiterShards]

	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.buckets[key]; ok {
		return b
	}

	perMin := l.cfg.perMinute(class)
	if perMin <= 0 {
		perMin = DefaultConfig().perMinute(class)
	}
	b := rate.NewLimiter(rate.Limit(float64(perMin)/60.0), perMin)
	s.buckets[key] = b
	return b
}
