// Package dispatch implements the Dispatcher (C8): the per-request
// state machine that decodes JSON-RPC envelopes, routes by method,
// validates arguments, invokes tool handlers, and marshals exactly one
// terminal response per request.
package dispatch

import "encoding/json"

// ProtocolVersion is advertised in the initialize handshake response.
const ProtocolVersion = "2024-11-05"

// ServerName/ServerVersion identify this implementation to the client.
const (
	ServerName    = "mcpcore"
	ServerVersion = "0.1.0"
)

// Request is one JSON-RPC 2.0 request or notification (no ID) ingested
// from the Transport Adapter.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether this request carries no id and
// therefore expects no response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is one JSON-RPC 2.0 response, carrying either Result or
// Error, never both.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Transport-level protocol error codes, reserved and never produced by
// Kind.JSONRPCCode (see internal/errors).
const (
	ParseErrorCode     = -32700
	InvalidRequestCode = -32600
	MethodNotFoundCode = -32601
)

func newResponse(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: result}
}

func newErrorResponse(id json.RawMessage, code int, message string, data any) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message, Data: data}}
}

// ToolsCallParams is the decoded params object of a tools/call request.
type ToolsCallParams struct {
	Name        string          `json:"name"`
	Arguments   map[string]any  `json:"arguments"`
	Cursor      string          `json:"cursor,omitempty"`
	DeadlineMs  int64           `json:"deadline_ms,omitempty"`
}

// CancelParams is the decoded params object of a $/cancel notification.
type CancelParams struct {
	ID json.RawMessage `json:"id"`
}

// InitializeParams is the decoded params object of an initialize request.
type InitializeParams struct {
	ClientName    string   `json:"client_name,omitempty"`
	ClientVersion string   `json:"client_version,omitempty"`
	Capabilities  []string `json:"capabilities,omitempty"`
}

// InitializeResult is returned from a successful initialize handshake.
type InitializeResult struct {
	ProtocolVersion string   `json:"protocol_version"`
	ServerName      string   `json:"server_name"`
	ServerVersion   string   `json:"server_version"`
	Capabilities    []string `json:"capabilities"`
}
