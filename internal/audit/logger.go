// Package audit records every tool invocation with sensitive parameters
// redacted before anything touches disk.
package audit

import (
	"context"
	"fmt"

	"github.com/fieldstack/maximo-mcp/internal/store"
)

// Logger writes audit records with parameter redaction.
type Logger struct {
	store store.AuditStore
	// hints are extra key substrings to redact, from configuration.
	hints []string
}

// NewLogger creates an audit Logger.
func NewLogger(auditStore store.AuditStore, hints []string) *Logger {
	return &Logger{store: auditStore, hints: hints}
}

// Record redacts sensitive parameters and inserts the audit record.
func (l *Logger) Record(ctx context.Context, rec *store.AuditRecord) error {
	if len(rec.ParamsRedacted) > 0 {
		rec.ParamsRedacted = Redact(rec.ParamsRedacted, l.hints)
	}
	if err := l.store.InsertAuditRecord(ctx, rec); err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}
