package audit

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fieldstack/maximo-mcp/internal/store"
)

type captureStore struct {
	last *store.AuditRecord
}

func (c *captureStore) InsertAuditRecord(_ context.Context, r *store.AuditRecord) error {
	c.last = r
	return nil
}

func (c *captureStore) QueryAuditRecords(context.Context, store.AuditFilter) ([]store.AuditRecord, int, error) {
	return nil, 0, nil
}

func (c *captureStore) GetAuditStats(context.Context, time.Time, time.Time) (*store.AuditStats, error) {
	return nil, nil
}

func (c *captureStore) PruneAuditRecords(context.Context, time.Time) (int, error) {
	return 0, nil
}

func TestLogger_RedactsBeforeInsert(t *testing.T) {
	cs := &captureStore{}
	l := NewLogger(cs, []string{"badge"})

	rec := &store.AuditRecord{
		ToolName:       "create_work_order",
		ParamsRedacted: json.RawMessage(`{"description":"fix pump","badge_id":"B-42","api_key":"sk-1"}`),
		Status:         "success",
	}
	if err := l.Record(context.Background(), rec); err != nil {
		t.Fatalf("Record: %v", err)
	}

	stored := string(cs.last.ParamsRedacted)
	if strings.Contains(stored, "B-42") || strings.Contains(stored, "sk-1") {
		t.Fatalf("sensitive values reached the store: %s", stored)
	}
	if !strings.Contains(stored, "fix pump") {
		t.Fatalf("benign values should survive redaction: %s", stored)
	}
}
