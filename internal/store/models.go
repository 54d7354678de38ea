package store

import (
	"encoding/json"
	"time"
)

// AuditRecord captures one tool invocation from receipt to response.
type AuditRecord struct {
	ID             string          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	RequestID      string          `json:"request_id"`
	CallerID       string          `json:"caller_id"`
	Transport      string          `json:"transport"`
	ToolName       string          `json:"tool_name"`
	Entity         string          `json:"entity"`
	ParamsRedacted json.RawMessage `json:"params_redacted,omitempty"`
	CacheHit       bool            `json:"cache_hit"`
	Status         string          `json:"status"`
	ErrorKind      string          `json:"error_kind,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	LatencyMs      int             `json:"latency_ms"`
	ResponseSize   int             `json:"response_size"`
	CreatedAt      time.Time       `json:"created_at"`
}

// AuditFilter specifies query parameters for listing audit records.
type AuditFilter struct {
	CallerID *string    `json:"caller_id,omitempty"`
	ToolName *string    `json:"tool_name,omitempty"`
	Entity   *string    `json:"entity,omitempty"`
	Status   *string    `json:"status,omitempty"`
	After    *time.Time `json:"after,omitempty"`
	Before   *time.Time `json:"before,omitempty"`
	Limit    int        `json:"limit"`
	Offset   int        `json:"offset"`
}

// AuditStats holds aggregate statistics for audit records.
type AuditStats struct {
	TotalRequests int     `json:"total_requests"`
	SuccessCount  int     `json:"success_count"`
	ErrorCount    int     `json:"error_count"`
	CacheHits     int     `json:"cache_hits"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	P95LatencyMs  int     `json:"p95_latency_ms"`
}
