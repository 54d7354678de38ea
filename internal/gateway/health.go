package gateway

import (
	"context"
	"time"

	"github.com/fieldstack/maximo-mcp/internal/cache"
)

// UpstreamProber verifies upstream reachability without a domain query.
type UpstreamProber interface {
	WhoAmI(ctx context.Context) error
}

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Health is the aggregate health report.
type Health struct {
	Status  string                  `json:"status"`
	Signals map[string]SignalHealth `json:"signals"`
}

// SignalHealth reports one dependency check.
type SignalHealth struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// HealthChecker probes the cache backend and the upstream whoami
// endpoint.
type HealthChecker struct {
	cache    *cache.Manager
	upstream UpstreamProber
	timeout  time.Duration
}

// NewHealthChecker builds a checker with a bounded per-probe timeout.
func NewHealthChecker(cacheMgr *cache.Manager, upstream UpstreamProber) *HealthChecker {
	return &HealthChecker{cache: cacheMgr, upstream: upstream, timeout: 5 * time.Second}
}

// Check runs both probes. healthy means both pass, degraded exactly one,
// unhealthy neither.
func (h *HealthChecker) Check(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	signals := map[string]SignalHealth{
		"cache":    {OK: h.cache.Healthy(ctx)},
		"upstream": {OK: true},
	}
	if err := h.upstream.WhoAmI(ctx); err != nil {
		signals["upstream"] = SignalHealth{OK: false, Error: err.Error()}
	}

	ok := 0
	for _, sig := range signals {
		if sig.OK {
			ok++
		}
	}

	status := StatusUnhealthy
	switch ok {
	case len(signals):
		status = StatusHealthy
	case 1:
		status = StatusDegraded
	}
	return Health{Status: status, Signals: signals}
}
