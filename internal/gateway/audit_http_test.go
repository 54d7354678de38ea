package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldstack/maximo-mcp/internal/auth"
	"github.com/fieldstack/maximo-mcp/internal/store"
	"github.com/fieldstack/maximo-mcp/internal/store/sqlite"
)

func TestAuditEndpoints(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	for i, rec := range []*store.AuditRecord{
		{CallerID: "ab12cd34", ToolName: "get_asset", Entity: "asset", Status: "success", LatencyMs: 12},
		{CallerID: "ab12cd34", ToolName: "create_asset", Entity: "asset", Status: "error", ErrorKind: "validation_error", LatencyMs: 3},
		{CallerID: "ff00ff00", ToolName: "get_user_status", Entity: "user", Status: "success", CacheHit: true, LatencyMs: 1},
	} {
		rec.Timestamp = now.Add(-time.Duration(i+1) * time.Minute)
		rec.Transport = "http"
		if err := db.InsertAuditRecord(ctx, rec); err != nil {
			t.Fatalf("insert record %d: %v", i, err)
		}
	}

	h := NewHTTPHandler(HandlerDeps{
		Server:  NewServer(nil, testCredential),
		Checker: nil, // health endpoint unused here
		Gate:    auth.NewGate(testCredential),
		Audit:   db,
	})

	get := func(t *testing.T, path, credential string) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if credential != "" {
			req.Header.Set("Authorization", "Bearer "+credential)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("requires credential", func(t *testing.T) {
		if rec := get(t, "/audit", ""); rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d; want 401", rec.Code)
		}
		if rec := get(t, "/audit/stats", "wrong"); rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d; want 401", rec.Code)
		}
	})

	t.Run("query with filter", func(t *testing.T) {
		rec := get(t, "/audit?tool_name=get_asset", testCredential)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		var resp struct {
			Data  []store.AuditRecord `json:"data"`
			Total int                 `json:"total"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Total != 1 || len(resp.Data) != 1 {
			t.Fatalf("total = %d, rows = %d; want 1 matching record", resp.Total, len(resp.Data))
		}
		if resp.Data[0].ToolName != "get_asset" {
			t.Errorf("tool = %q", resp.Data[0].ToolName)
		}
	})

	t.Run("query by caller", func(t *testing.T) {
		rec := get(t, "/audit?caller_id=ab12cd34", testCredential)
		var resp struct {
			Total int `json:"total"`
		}
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Total != 2 {
			t.Fatalf("total = %d; want 2", resp.Total)
		}
	})

	t.Run("stats", func(t *testing.T) {
		rec := get(t, "/audit/stats", testCredential)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		var stats store.AuditStats
		if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if stats.TotalRequests != 3 || stats.ErrorCount != 1 || stats.CacheHits != 1 {
			t.Fatalf("stats = %+v", stats)
		}
	})
}
