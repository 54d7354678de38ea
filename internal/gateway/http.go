package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fieldstack/maximo-mcp/internal/auth"
	"github.com/fieldstack/maximo-mcp/internal/store"
)

const maxRequestBody = 1 << 20

type contextKey string

const requestIDKey contextKey = "request_id"

// HandlerDeps collects the dependencies for the HTTP transport. Gate and
// Audit are optional; when both are set the audit query endpoints are
// mounted.
type HandlerDeps struct {
	Server  *Server
	Checker *HealthChecker
	Gate    *auth.Gate
	Audit   store.AuditStore
}

// NewHTTPHandler builds the HTTP transport: JSON-RPC over POST /mcp, the
// health endpoint, and optionally the audit endpoints, wrapped in
// request-id and logging middleware.
func NewHTTPHandler(deps HandlerDeps) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", requireMethod(http.MethodPost, deps.Server.handleHTTPMessage))
	mux.HandleFunc("/health", requireMethod(http.MethodGet, handleHealth(deps.Checker)))

	if deps.Gate != nil && deps.Audit != nil {
		ah := &auditHandler{store: deps.Audit, gate: deps.Gate}
		mux.HandleFunc("/audit", requireMethod(http.MethodGet, ah.query))
		mux.HandleFunc("/audit/stats", requireMethod(http.MethodGet, ah.stats))
	}

	return requestIDMiddleware(loggingMiddleware(mux))
}

// requireMethod restricts a route to one HTTP method, matching the
// method-pattern ServeMux behavior that needs Go 1.22+: any other method
// gets 405 with an Allow header.
func requireMethod(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

// handleHTTPMessage serves one JSON-RPC message per POST. The client
// credential comes from the request headers and is checked inside the
// pipeline, so the transport itself never rejects on auth.
func (s *Server) handleHTTPMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, "read request body", http.StatusBadRequest)
		return
	}

	resp := s.Handle(r.Context(), body, auth.FromRequest(r), "http")
	if resp == nil {
		// Notification: acknowledged, nothing to return.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("write mcp response", "error", err)
	}
}

func handleHealth(checker *HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := checker.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(health); err != nil {
			slog.Error("write health response", "error", err)
		}
	}
}

// requestIDMiddleware injects a unique request ID into the request
// context and sets it as a response header.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each request with method, path, status, and
// duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", r.Context().Value(requestIDKey),
		)
	})
}

// statusWriter captures the HTTP status code for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
