package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldstack/maximo-mcp/internal/store"
)

func (d *DB) InsertAuditRecord(ctx context.Context, r *store.AuditRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	params := normalizeJSON(r.ParamsRedacted, "{}")

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO audit_records
			(id, timestamp, request_id, caller_id, transport, tool_name,
			 entity, params_redacted, cache_hit, status, error_kind,
			 error_message, latency_ms, response_size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, formatTime(r.Timestamp), r.RequestID, r.CallerID, r.Transport,
		r.ToolName, r.Entity, params, boolToInt(r.CacheHit), r.Status,
		r.ErrorKind, r.ErrorMessage, r.LatencyMs, r.ResponseSize,
		formatTime(r.CreatedAt),
	)
	return err
}

func (d *DB) QueryAuditRecords(
	ctx context.Context, f store.AuditFilter,
) ([]store.AuditRecord, int, error) {
	where, args := buildAuditWhere(f)

	var total int
	countQ := "SELECT COUNT(*) FROM audit_records" + where
	if err := d.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	dataQ := `SELECT id, timestamp, request_id, caller_id, transport, tool_name,
		entity, params_redacted, cache_hit, status, error_kind,
		error_message, latency_ms, response_size, created_at
		FROM audit_records` + where +
		` ORDER BY timestamp DESC LIMIT ? OFFSET ?`
	dataArgs := append(args, limit, f.Offset)

	rows, err := d.db.QueryContext(ctx, dataQ, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []store.AuditRecord
	for rows.Next() {
		var r store.AuditRecord
		var ts, createdAt, params string
		var cacheHit int
		err := rows.Scan(
			&r.ID, &ts, &r.RequestID, &r.CallerID, &r.Transport, &r.ToolName,
			&r.Entity, &params, &cacheHit, &r.Status, &r.ErrorKind,
			&r.ErrorMessage, &r.LatencyMs, &r.ResponseSize, &createdAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan audit row: %w", err)
		}
		r.ParamsRedacted = json.RawMessage(params)
		r.CacheHit = cacheHit != 0
		r.Timestamp = parseTime(ts)
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func (d *DB) GetAuditStats(
	ctx context.Context, after, before time.Time,
) (*store.AuditStats, error) {
	var s store.AuditStats
	args := []any{formatTime(after), formatTime(before)}

	err := d.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'success'),
			COUNT(*) FILTER (WHERE status = 'error'),
			COUNT(*) FILTER (WHERE cache_hit = 1),
			COALESCE(AVG(latency_ms), 0)
		FROM audit_records
		WHERE timestamp >= ? AND timestamp <= ?`,
		args...,
	).Scan(&s.TotalRequests, &s.SuccessCount, &s.ErrorCount, &s.CacheHits, &s.AvgLatencyMs)
	if err != nil {
		return nil, err
	}

	// P95 latency approximation.
	err = d.db.QueryRowContext(ctx, `
		SELECT COALESCE(latency_ms, 0) FROM audit_records
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY latency_ms ASC
		LIMIT 1 OFFSET (
			SELECT CAST(COUNT(*) * 0.95 AS INTEGER) FROM audit_records
			WHERE timestamp >= ? AND timestamp <= ?
		)`,
		append(args, args...)...,
	).Scan(&s.P95LatencyMs)
	if err != nil {
		// No rows is fine, P95 stays 0.
		s.P95LatencyMs = 0
	}
	return &s, nil
}

func (d *DB) PruneAuditRecords(ctx context.Context, before time.Time) (int, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM audit_records WHERE timestamp < ?`, formatTime(before))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func buildAuditWhere(f store.AuditFilter) (string, []any) {
	var conds []string
	var args []any
	if f.CallerID != nil {
		conds = append(conds, "caller_id = ?")
		args = append(args, *f.CallerID)
	}
	if f.ToolName != nil {
		conds = append(conds, "tool_name = ?")
		args = append(args, *f.ToolName)
	}
	if f.Entity != nil {
		conds = append(conds, "entity = ?")
		args = append(args, *f.Entity)
	}
	if f.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *f.Status)
	}
	if f.After != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, formatTime(*f.After))
	}
	if f.Before != nil {
		conds = append(conds, "timestamp <= ?")
		args = append(args, formatTime(*f.Before))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
