package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fieldstack/maximo-mcp/internal/auth"
	"github.com/fieldstack/maximo-mcp/internal/cache"
	"github.com/fieldstack/maximo-mcp/internal/config"
	"github.com/fieldstack/maximo-mcp/internal/dispatch"
	"github.com/fieldstack/maximo-mcp/internal/maximo"
	"github.com/fieldstack/maximo-mcp/internal/ratelimit"
	"github.com/fieldstack/maximo-mcp/internal/tools"
)

const testCredential = "gateway-test-credential"

// testStack runs a fake Maximo behind a real client, dispatcher and
// server, and counts upstream hits.
type testStack struct {
	server   *Server
	client   *maximo.Client
	upstream *httptest.Server
	hits     *atomic.Int32
}

func newTestStack(t *testing.T, upstreamHandler http.HandlerFunc) *testStack {
	t.Helper()

	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		upstreamHandler(w, r)
	}))
	t.Cleanup(upstream.Close)

	client, err := maximo.NewClient(maximo.Config{
		BaseURL: upstream.URL,
		APIKey:  "upstream-key",
		MaxAuth: "upstream-maxauth",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(client.Close)

	d := dispatch.New(
		client,
		cache.NewManager(cache.NewMemory(128)),
		ratelimit.New(ratelimit.DefaultConfig()),
		auth.NewGate(testCredential),
		nil,
		config.Default(),
	)
	return &testStack{
		server:   NewServer(d, testCredential),
		client:   client,
		upstream: upstream,
		hits:     &hits,
	}
}

func rpc(t *testing.T, s *Server, id int, method string, params any) *Response {
	t.Helper()
	msg := map[string]any{"jsonrpc": "2.0", "id": id, "method": method}
	if params != nil {
		msg["params"] = params
	}
	line, _ := json.Marshal(msg)
	resp := s.Handle(context.Background(), line, testCredential, "stdio")
	if resp == nil {
		t.Fatalf("no response for %s", method)
	}
	return resp
}

func toolResult(t *testing.T, resp *Response) *CallToolResult {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("rpc error: %+v", resp.Error)
	}
	var tr CallToolResult
	if err := json.Unmarshal(resp.Result, &tr); err != nil {
		t.Fatalf("unmarshal tool result: %v", err)
	}
	return &tr
}

func assetUpstream(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(`{"member":[{"assetnum":"PUMP001","siteid":"BEDFORD","status":"OPERATING","_id":"42"}]}`))
}

func TestServer_Initialize(t *testing.T) {
	st := newTestStack(t, assetUpstream)

	resp := rpc(t, st.server, 1, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo":      map[string]any{"name": "test-client", "version": "0.1"},
	})
	if resp.Error != nil {
		t.Fatalf("error: %+v", resp.Error)
	}

	var result InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.ServerInfo.Name != "maximo-mcp" {
		t.Errorf("server name = %q", result.ServerInfo.Name)
	}
	if result.Capabilities.Tools == nil || result.Capabilities.Tools.ListChanged {
		t.Error("static catalog must advertise listChanged=false")
	}
}

func TestServer_ToolsList(t *testing.T) {
	st := newTestStack(t, assetUpstream)

	resp := rpc(t, st.server, 1, "tools/list", nil)
	var result struct {
		Tools []ToolDescriptor `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(result.Tools) != len(tools.Catalog()) {
		t.Fatalf("advertised %d tools; want %d", len(result.Tools), len(tools.Catalog()))
	}
	for _, td := range result.Tools {
		if td.InputSchema == nil {
			t.Errorf("tool %s has no input schema", td.Name)
		}
	}
}

func TestServer_ToolsCall_ColdThenWarm(t *testing.T) {
	st := newTestStack(t, assetUpstream)
	params := map[string]any{
		"name":      "get_asset",
		"arguments": map[string]any{"assetnum": "PUMP001", "siteid": "BEDFORD"},
	}

	cold := toolResult(t, rpc(t, st.server, 1, "tools/call", params))
	if cold.IsError {
		t.Fatalf("cold call failed: %+v", cold)
	}
	if !strings.Contains(cold.Content[0].Text, `"assetnum":"PUMP001"`) {
		t.Fatalf("payload = %s", cold.Content[0].Text)
	}
	if st.hits.Load() != 1 {
		t.Fatalf("upstream hits = %d; want 1", st.hits.Load())
	}

	warm := toolResult(t, rpc(t, st.server, 2, "tools/call", params))
	if warm.IsError || warm.Content[0].Text != cold.Content[0].Text {
		t.Fatal("warm call must return the identical payload")
	}
	if st.hits.Load() != 1 {
		t.Errorf("upstream hits = %d; warm call must be served from cache", st.hits.Load())
	}
}

func TestServer_ToolsCall_ValidationError(t *testing.T) {
	st := newTestStack(t, assetUpstream)

	tr := toolResult(t, rpc(t, st.server, 1, "tools/call", map[string]any{
		"name":      "get_asset",
		"arguments": map[string]any{},
	}))
	if !tr.IsError {
		t.Fatal("missing required argument must produce a tool error")
	}
	var body toolErrorBody
	if err := json.Unmarshal([]byte(tr.Content[0].Text), &body); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if body.Kind != "validation_error" {
		t.Errorf("kind = %q", body.Kind)
	}
	if st.hits.Load() != 0 {
		t.Error("invalid call must not reach upstream")
	}
}

func TestServer_ToolsCall_RateLimitCarriesRetryAfter(t *testing.T) {
	st := newTestStack(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"member":[{"wonum":"WO1"}]}`))
	})

	var last *CallToolResult
	for i := 0; i < 21; i++ {
		last = toolResult(t, rpc(t, st.server, i+1, "tools/call", map[string]any{
			"name": "create_work_order",
			"arguments": map[string]any{
				"description": "repetitive work", "siteid": "BEDFORD",
			},
		}))
	}
	if !last.IsError {
		t.Fatal("21st create must exceed the 20/minute budget")
	}
	var body toolErrorBody
	json.Unmarshal([]byte(last.Content[0].Text), &body)
	if body.Kind != "rate_limited" {
		t.Fatalf("kind = %q", body.Kind)
	}
	if body.RetryAfterSeconds <= 0 {
		t.Errorf("retry_after_seconds = %d; want positive", body.RetryAfterSeconds)
	}
}

func TestServer_UnlockThenFreshRead(t *testing.T) {
	var locked atomic.Bool
	locked.Store(true)

	st := newTestStack(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/mxuser/") {
			// The PATCH-style update.
			locked.Store(false)
			w.Write([]byte(`{"userid":"jdoe","lockedout":0}`))
			return
		}
		if locked.Load() {
			w.Write([]byte(`{"member":[{"userid":"jdoe","status":"ACTIVE","lockedout":1,"failedlogincount":3,"_id":"u-9"}]}`))
		} else {
			w.Write([]byte(`{"member":[{"userid":"jdoe","status":"ACTIVE","lockedout":0,"failedlogincount":0,"_id":"u-9"}]}`))
		}
	})

	read := func(id int) map[string]any {
		tr := toolResult(t, rpc(t, st.server, id, "tools/call", map[string]any{
			"name":      "get_user_status",
			"arguments": map[string]any{"userid": "jdoe"},
		}))
		if tr.IsError {
			t.Fatalf("read failed: %s", tr.Content[0].Text)
		}
		var out map[string]any
		json.Unmarshal([]byte(tr.Content[0].Text), &out)
		return out
	}

	if before := read(1); before["is_locked"] != true {
		t.Fatalf("fixture should start locked: %v", before)
	}

	unlock := toolResult(t, rpc(t, st.server, 2, "tools/call", map[string]any{
		"name":      "unlock_user_account",
		"arguments": map[string]any{"userid": "jdoe"},
	}))
	if unlock.IsError {
		t.Fatalf("unlock failed: %s", unlock.Content[0].Text)
	}

	if after := read(3); after["is_locked"] != false {
		t.Fatalf("read after unlock served stale state: %v", after)
	}
}

func TestServer_UnknownMethod(t *testing.T) {
	st := newTestStack(t, assetUpstream)
	resp := rpc(t, st.server, 1, "resources/list", nil)
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("resp = %+v; want method-not-found", resp)
	}
}

func TestServer_NotificationHasNoResponse(t *testing.T) {
	st := newTestStack(t, assetUpstream)
	line := []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	if resp := st.server.Handle(context.Background(), line, testCredential, "stdio"); resp != nil {
		t.Fatalf("notification got response: %+v", resp)
	}
}

func TestServer_ParseError(t *testing.T) {
	st := newTestStack(t, assetUpstream)
	resp := st.server.Handle(context.Background(), []byte("{nope"), testCredential, "stdio")
	if resp == nil || resp.Error == nil || resp.Error.Code != CodeParseError {
		t.Fatalf("resp = %+v; want parse error", resp)
	}
}

func TestServer_StdioRoundTrip(t *testing.T) {
	st := newTestStack(t, assetUpstream)

	in := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"clientInfo":{"name":"t"}}}` + "\n" +
			`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"ping"}` + "\n")
	var out bytes.Buffer

	if err := st.server.RunConn(context.Background(), in, &out); err != nil {
		t.Fatalf("RunConn: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d response lines; want 2 (notification is silent)", len(lines))
	}
	for _, line := range lines {
		var resp Response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("bad response line %q: %v", line, err)
		}
		if resp.Error != nil {
			t.Fatalf("unexpected error: %+v", resp.Error)
		}
	}
}

func TestHTTPHandler_MCPAndHealth(t *testing.T) {
	st := newTestStack(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oslc/whoami" {
			w.Write([]byte(`{"displayName":"MAXADMIN"}`))
			return
		}
		assetUpstream(w, r)
	})
	checker := NewHealthChecker(cache.NewManager(cache.NewMemory(16)), st.client)
	h := NewHTTPHandler(HandlerDeps{Server: st.server, Checker: checker})

	// tools/call with the credential in the Authorization header.
	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_asset","arguments":{"assetnum":"PUMP001"}}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testCredential)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var tr CallToolResult
	json.Unmarshal(resp.Result, &tr)
	if tr.IsError {
		t.Fatalf("tool error: %s", tr.Content[0].Text)
	}

	// Wrong credential surfaces as a tool-level authentication error.
	req = httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	json.Unmarshal(rec.Body.Bytes(), &resp)
	json.Unmarshal(resp.Result, &tr)
	if !tr.IsError || !strings.Contains(tr.Content[0].Text, "authentication_error") {
		t.Fatalf("want authentication_error, got %+v", tr)
	}

	// Health endpoint.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var health Health
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if health.Status != StatusHealthy {
		t.Fatalf("health = %+v", health)
	}
}
