// Package dispatch runs each tool invocation through the gateway
// pipeline: credential gate, rate limiter, cache, upstream call, cache
// store, audit. It is the only package aware of per-tool semantics.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fieldstack/maximo-mcp/internal/audit"
	"github.com/fieldstack/maximo-mcp/internal/auth"
	"github.com/fieldstack/maximo-mcp/internal/cache"
	"github.com/fieldstack/maximo-mcp/internal/config"
	"github.com/fieldstack/maximo-mcp/internal/maximo"
	"github.com/fieldstack/maximo-mcp/internal/ratelimit"
	"github.com/fieldstack/maximo-mcp/internal/store"
	"github.com/fieldstack/maximo-mcp/internal/tools"
)

// Upstream is the subset of the Maximo client the dispatcher drives.
type Upstream interface {
	Fetch(ctx context.Context, entity maximo.Entity, where *maximo.Where) (*maximo.Record, error)
	Search(ctx context.Context, entity maximo.Entity, where *maximo.Where, pageSize int) (json.RawMessage, int, error)
	Create(ctx context.Context, entity maximo.Entity, payload map[string]any) (json.RawMessage, error)
	Update(ctx context.Context, entity maximo.Entity, resID string, payload map[string]any) (json.RawMessage, error)
}

// Request is one tool invocation as delivered by a transport.
type Request struct {
	Tool       string
	Args       map[string]any
	Credential string
	Transport  string
}

// Result is a successful invocation outcome.
type Result struct {
	Data      json.RawMessage
	CacheHit  bool
	RequestID string
}

// Dispatcher wires the pipeline components together.
type Dispatcher struct {
	upstream Upstream
	cache    *cache.Manager
	limiter  *ratelimit.Limiter
	gate     *auth.Gate
	audit    *audit.Logger
	cfg      *config.FileConfig
}

// New builds a Dispatcher. The audit logger may be nil, in which case
// invocations are not persisted.
func New(upstream Upstream, cacheMgr *cache.Manager, limiter *ratelimit.Limiter,
	gate *auth.Gate, auditLog *audit.Logger, cfg *config.FileConfig) *Dispatcher {
	return &Dispatcher{
		upstream: upstream,
		cache:    cacheMgr,
		limiter:  limiter,
		gate:     gate,
		audit:    auditLog,
		cfg:      cfg,
	}
}

// Dispatch runs one invocation through the full pipeline.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	requestID := uuid.NewString()
	start := time.Now()
	log := slog.With("request_id", requestID, "tool", req.Tool)

	res, callerID, tool, err := d.run(ctx, log, requestID, req)
	d.record(ctx, log, requestID, req, callerID, tool, res, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (d *Dispatcher) run(ctx context.Context, log *slog.Logger, requestID string, req Request) (*Result, string, *tools.Tool, error) {
	// received: resolve and validate before anything has side effects.
	tool, ok := tools.Lookup(req.Tool)
	if !ok {
		return nil, "", nil, &PipelineError{
			Stage: StageReceived, Kind: KindValidation,
			Message: fmt.Sprintf("unknown tool %q", req.Tool),
		}
	}
	args, err := tool.Validate(req.Args)
	if err != nil {
		return nil, "", tool, &PipelineError{
			Stage: StageReceived, Kind: KindValidation,
			Message: err.Error(), wrapped: err,
		}
	}

	// authorized: constant-time credential check.
	callerID, err := d.gate.Check(req.Credential)
	if err != nil {
		return nil, "", tool, &PipelineError{
			Stage: StageAuthorized, Kind: KindAuthentication,
			Message: err.Error(), wrapped: err,
		}
	}

	// rate_checked: one token per invocation, regardless of cache outcome.
	if ok, retryAfter := d.limiter.Allow(callerID, tool.RateClass); !ok {
		log.Info("rate limited", "caller", callerID, "class", tool.RateClass, "retry_after", retryAfter)
		return nil, callerID, tool, &PipelineError{
			Stage: StageRateChecked, Kind: KindRateLimited,
			Message:    fmt.Sprintf("rate limit exceeded for %s operations", tool.RateClass),
			RetryAfter: retryAfter,
		}
	}

	// cache_lookup: reads only; mutations always reach the upstream.
	var key string
	var ttl time.Duration
	if !tool.Mutation {
		key = cache.Key(string(tool.Entity), string(tool.CacheOp), args)
		ttl = d.cfg.TTLFor(tool.TTLBucket)
		if data, hit := d.cache.Get(ctx, key); hit {
			log.Debug("cache hit", "key", key)
			return &Result{Data: data, CacheHit: true, RequestID: requestID}, callerID, tool, nil
		}
	}

	// upstream_call.
	data, err := d.execute(ctx, tool, args)
	if err != nil {
		return nil, callerID, tool, d.classifyUpstream(err)
	}

	if tool.Mutation {
		// Purge whole entity namespaces so no stale read survives the
		// write, whatever argument combination produced its key.
		for _, entity := range tool.Invalidates {
			d.cache.InvalidatePrefix(ctx, cache.EntityPrefix(string(entity)))
		}
	} else if ttl > 0 {
		d.cache.Set(ctx, key, data, ttl)
	}

	return &Result{Data: data, RequestID: requestID}, callerID, tool, nil
}

// classifyUpstream maps client errors onto the surfaced taxonomy.
// Transient checks come first: a per-attempt timeout wraps
// context.DeadlineExceeded but is still an upstream fault, while a bare
// context cancellation means the caller went away.
func (d *Dispatcher) classifyUpstream(err error) *PipelineError {
	kind := KindClientError
	switch {
	case maximo.IsTransient(err):
		kind = KindTransient
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = KindCanceled
	}
	return &PipelineError{
		Stage: StageUpstream, Kind: kind,
		Message: err.Error(), wrapped: err,
	}
}

// record writes the audit trail entry. Audit failures never fail the
// invocation.
func (d *Dispatcher) record(ctx context.Context, log *slog.Logger, requestID string,
	req Request, callerID string, tool *tools.Tool, res *Result, dispatchErr error, elapsed time.Duration) {

	status := "success"
	var errKind, errMsg string
	if dispatchErr != nil {
		status = "error"
		errKind = string(KindOf(dispatchErr))
		errMsg = dispatchErr.Error()
		log.Warn("tool invocation failed", "error", dispatchErr, "latency_ms", elapsed.Milliseconds())
	} else {
		log.Info("tool invocation complete",
			"cache_hit", res.CacheHit, "latency_ms", elapsed.Milliseconds())
	}

	if d.audit == nil {
		return
	}

	params, _ := json.Marshal(req.Args)
	rec := &store.AuditRecord{
		RequestID:      requestID,
		CallerID:       callerID,
		Transport:      req.Transport,
		ToolName:       req.Tool,
		ParamsRedacted: params,
		Status:         status,
		ErrorKind:      errKind,
		ErrorMessage:   errMsg,
		LatencyMs:      int(elapsed.Milliseconds()),
	}
	if tool != nil {
		rec.Entity = string(tool.Entity)
	}
	if res != nil {
		rec.CacheHit = res.CacheHit
		rec.ResponseSize = len(res.Data)
	}
	if err := d.audit.Record(ctx, rec); err != nil {
		log.Warn("audit record failed", "error", err)
	}
}
