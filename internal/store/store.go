// Package store defines the persistence interfaces and record types for
// the gateway's audit trail.
package store

import (
	"context"
	"time"
)

// Store is the composite interface for all data access.
type Store interface {
	AuditStore
	Ping(ctx context.Context) error
	Close() error
}

// AuditStore manages audit log records.
type AuditStore interface {
	InsertAuditRecord(ctx context.Context, r *AuditRecord) error
	QueryAuditRecords(ctx context.Context, f AuditFilter) ([]AuditRecord, int, error)
	GetAuditStats(ctx context.Context, after, before time.Time) (*AuditStats, error)
	PruneAuditRecords(ctx context.Context, before time.Time) (int, error)
}
