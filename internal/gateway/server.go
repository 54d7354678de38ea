// Package gateway speaks MCP to clients over stdio or HTTP and hands
// every tools/call to the dispatch pipeline.
package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/fieldstack/maximo-mcp/internal/dispatch"
	"github.com/fieldstack/maximo-mcp/internal/tools"
)

const (
	serverName      = "maximo-mcp"
	serverVersion   = "1.0.0"
	protocolVersion = "2024-11-05"
)

// Server is the MCP gateway server.
type Server struct {
	dispatcher *dispatch.Dispatcher

	// credential authenticates every call on the stdio transport, where
	// there are no per-request headers. Supplied by the spawning client
	// through the environment. HTTP requests carry their own.
	credential string

	mu sync.Mutex // protects writes to the stdio stream
}

// NewServer creates the MCP server around a dispatcher.
func NewServer(d *dispatch.Dispatcher, stdioCredential string) *Server {
	return &Server{dispatcher: d, credential: stdioCredential}
}

// RunStdio serves newline-delimited JSON-RPC over stdin/stdout until EOF
// or context cancellation.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.RunConn(ctx, os.Stdin, os.Stdout)
}

// RunConn serves the stdio protocol over an arbitrary reader/writer pair.
func (s *Server) RunConn(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.Handle(ctx, line, s.credential, "stdio")
		if resp == nil {
			continue // notification, no response needed
		}
		if err := s.write(w, resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	return scanner.Err()
}

// Handle processes one JSON-RPC message and returns the response, or nil
// for notifications. Both transports funnel through here.
func (s *Server) Handle(ctx context.Context, line []byte, credential, transport string) *Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return &Response{
			JSONRPC: "2.0",
			Error: &RPCError{
				Code:    CodeParseError,
				Message: "invalid JSON: " + err.Error(),
			},
		}
	}

	// Notifications have no ID; don't send a response.
	if req.ID == nil {
		s.handleNotification(req)
		return nil
	}

	var result json.RawMessage
	var rpcErr *RPCError

	switch req.Method {
	case "initialize":
		result, rpcErr = s.handleInitialize(req.Params)
	case "ping":
		result, _ = json.Marshal(map[string]any{})
	case "tools/list":
		result, rpcErr = s.handleToolsList()
	case "tools/call":
		result, rpcErr = s.handleToolsCall(ctx, req.Params, credential, transport)
	default:
		rpcErr = &RPCError{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("unknown method: %s", req.Method),
		}
	}

	resp := &Response{JSONRPC: "2.0", ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	return resp
}

func (s *Server) handleNotification(req Request) {
	switch req.Method {
	case "notifications/initialized":
		slog.Info("client initialized")
	default:
		slog.Debug("unhandled notification", "method", req.Method)
	}
}

func (s *Server) handleInitialize(params json.RawMessage) (json.RawMessage, *RPCError) {
	var p InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
		}
	}
	slog.Info("client connected", "client", p.ClientInfo.Name, "version", p.ClientInfo.Version)

	result := InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities: ServerCapability{
			Tools: &ToolCapability{ListChanged: false},
		},
		ServerInfo: ServerInfo{Name: serverName, Version: serverVersion},
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return data, nil
}

func (s *Server) handleToolsList() (json.RawMessage, *RPCError) {
	catalog := tools.Catalog()
	descriptors := make([]ToolDescriptor, 0, len(catalog))
	for i := range catalog {
		descriptors = append(descriptors, ToolDescriptor{
			Name:        catalog[i].Name,
			Description: catalog[i].Description,
			InputSchema: catalog[i].InputSchema(),
		})
	}

	data, err := json.Marshal(map[string]any{"tools": descriptors})
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return data, nil
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage, credential, transport string) (json.RawMessage, *RPCError) {
	var call CallToolRequest
	if err := json.Unmarshal(params, &call); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}

	var args map[string]any
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "arguments must be an object: " + err.Error()}
		}
	}

	res, err := s.dispatcher.Dispatch(ctx, dispatch.Request{
		Tool:       call.Name,
		Args:       args,
		Credential: credential,
		Transport:  transport,
	})
	if err != nil {
		return marshalToolResult(toolErrorResult(err))
	}

	return marshalToolResult(&CallToolResult{
		Content: []ToolContent{{Type: "text", Text: string(res.Data)}},
	})
}

// toolErrorResult maps a pipeline failure onto an MCP tool error carrying
// the stable kind string.
func toolErrorResult(err error) *CallToolResult {
	body := toolErrorBody{
		Kind:    string(dispatch.KindOf(err)),
		Message: err.Error(),
	}
	var pe *dispatch.PipelineError
	if errors.As(err, &pe) && pe.RetryAfter > 0 {
		body.RetryAfterSeconds = int(math.Ceil(pe.RetryAfter.Seconds()))
	}

	text, mErr := json.Marshal(body)
	if mErr != nil {
		text = []byte(`{"kind":"upstream_client_error","message":"internal error"}`)
	}
	return &CallToolResult{
		Content: []ToolContent{{Type: "text", Text: string(text)}},
		IsError: true,
	}
}

func marshalToolResult(result *CallToolResult) (json.RawMessage, *RPCError) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return data, nil
}

func (s *Server) write(w io.Writer, resp *Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
