package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fieldstack/maximo-mcp/internal/auth"
	"github.com/fieldstack/maximo-mcp/internal/store"
)

// auditHandler serves read-only views of the audit trail. Both endpoints
// require the same credential that authorizes tool calls.
type auditHandler struct {
	store store.AuditStore
	gate  *auth.Gate
}

func (h *auditHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if _, err := h.gate.Check(auth.FromRequest(r)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or missing credential")
		return false
	}
	return true
}

func (h *auditHandler) query(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	q := r.URL.Query()
	filter := store.AuditFilter{
		Limit:  50,
		Offset: 0,
	}

	if v := q.Get("caller_id"); v != "" {
		filter.CallerID = &v
	}
	if v := q.Get("tool_name"); v != "" {
		filter.ToolName = &v
	}
	if v := q.Get("entity"); v != "" {
		filter.Entity = &v
	}
	if v := q.Get("status"); v != "" {
		filter.Status = &v
	}
	if v := q.Get("after"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.After = &t
		}
	}
	if v := q.Get("before"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.Before = &t
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	records, total, err := h.store.QueryAuditRecords(r.Context(), filter)
	if err != nil {
		slog.Error("audit query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query audit records")
		return
	}

	if records == nil {
		records = []store.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":   records,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func (h *auditHandler) stats(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	q := r.URL.Query()
	before := time.Now()
	after := before.Add(-24 * time.Hour)
	if v := q.Get("after"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			after = t
		}
	}
	if v := q.Get("before"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			before = t
		}
	}

	stats, err := h.store.GetAuditStats(r.Context(), after, before)
	if err != nil {
		slog.Error("audit stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute audit stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
