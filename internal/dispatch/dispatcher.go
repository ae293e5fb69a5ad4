package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/sync/semaphore"

	"github.com/hanzoai/mcpcore/internal/cursor"
	coreerrors "github.com/hanzoai/mcpcore/internal/errors"
	"github.com/hanzoai/mcpcore/internal/process"
	"github.com/hanzoai/mcpcore/internal/registry"
	"github.com/hanzoai/mcpcore/internal/sessionlog"
	"github.com/hanzoai/mcpcore/internal/telemetry"
	"github.com/hanzoai/mcpcore/internal/tokenbudget"
	"github.com/hanzoai/mcpcore/internal/toolctx"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultMaxConcurrent is the server-wide default worker cap (§5).
const DefaultMaxConcurrent = 64

// DefaultInvocationDeadline is used when a tools/call request does not
// specify deadline_ms.
const DefaultInvocationDeadline = 5 * time.Minute

// Deps bundles every component the Dispatcher wires together per
// invocation.
type Deps struct {
	Registry   *registry.Registry
	Supervisor *process.Supervisor
	Budget     *tokenbudget.Budgeter
	SessionLog *sessionlog.Log
	Logger     zerolog.Logger

	// Metrics is optional; nil in stdio mode, where there is no /metrics
	// endpoint to serve the readings.
	Metrics *telemetry.Metrics

	// NewToolCtx builds a fresh per-invocation toolctx.Context. Supplied
	// as a factory rather than assembled inline here so the Dispatcher
	// does not need to import the Permission Gate or DAG Runner directly —
	// those, and the Cursor Store the tool bodies use, are wired once at
	// server construction.
	NewToolCtx func(ctx context.Context, invocationID string, deadline time.Time) *toolctx.Context

	MaxConcurrent int
}

// Dispatcher implements the C8 state machine:
// received -> validated -> authorized -> executing -> {responded|failed|cursor-suspended}.
type Dispatcher struct {
	deps Deps
	sem  *semaphore.Weighted

	schemaMu sync.Mutex
	schemas  map[string]*jsonschema.Schema

	inflightMu sync.Mutex
	inflight   map[string]context.CancelFunc
}

// New builds a Dispatcher.
func New(deps Deps) *Dispatcher {
	if deps.MaxConcurrent <= 0 {
		deps.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Dispatcher{
		deps:     deps,
		sem:      semaphore.NewWeighted(int64(deps.MaxConcurrent)),
		schemas:  map[string]*jsonschema.Schema{},
		inflight: map[string]context.CancelFunc{},
	}
}

// Handle decodes and processes one wire message, returning the Response
// to write back, or nil for a notification / a dropped malformed
// message that carried no recoverable id. It always emits at most one
// terminal response per request, per the invariant in §8.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		// Unparseable JSON carries no recoverable id to reply to.
		d.deps.Logger.Warn().Err(err).Msg("dropping malformed JSON-RPC message")
		return nil
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		if len(req.ID) > 0 {
			return newErrorResponse(req.ID, InvalidRequestCode, "invalid JSON-RPC request", nil)
		}
		return nil
	}

	switch req.Method {
	case "$/cancel":
		d.handleCancel(req.Params)
		return nil
	case "ping":
		if req.IsNotification() {
			return nil
		}
		return newResponse(req.ID, map[string]string{"pong": "ok"})
	case "shutdown":
		return newResponse(req.ID, map[string]bool{"ok": true})
	case "initialize":
		return d.handleInitialize(req.ID)
	case "tools/list":
		return d.handleToolsList(req.ID)
	case "tools/call":
		return d.handleToolsCall(ctx, req)
	default:
		if req.IsNotification() {
			return nil
		}
		return newErrorResponse(req.ID, MethodNotFoundCode, "unknown method", req.Method)
	}
}

func (d *Dispatcher) handleInitialize(id json.RawMessage) *Response {
	return newResponse(id, InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerName:      ServerName,
		ServerVersion:   ServerVersion,
		Capabilities:    []string{"tools", "cursors", "cancellation", "sse"},
	})
}

func (d *Dispatcher) handleToolsList(id json.RawMessage) *Response {
	return newResponse(id, map[string]any{"tools": d.deps.Registry.List()})
}

func (d *Dispatcher) handleCancel(params json.RawMessage) {
	var p CancelParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	key := string(p.ID)
	d.inflightMu.Lock()
	cancel, ok := d.inflight[key]
	d.inflightMu.Unlock()
	if ok {
		cancel()
	}
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, req Request) *Response {
	var params ToolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return d.terminal(req.ID, nil, coreerrors.New(coreerrors.InvalidArguments, "malformed tools/call params", err.Error()))
	}

	// received -> validated: resolve the tool.
	descriptor, handler, err := d.deps.Registry.Resolve(params.Name)
	if err != nil {
		return d.terminal(req.ID, nil, err)
	}

	// validated: schema check.
	if err := d.validateArgs(descriptor, params.Arguments); err != nil {
		return d.terminal(req.ID, nil, err)
	}

	// authorized: bounded worker admission.
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return d.terminal(req.ID, nil, coreerrors.Wrap(coreerrors.Cancelled, err, "request cancelled while queued", ""))
	}
	defer d.sem.Release(1)

	invocationID := uuid.NewString()
	deadline := time.Now().Add(DefaultInvocationDeadline)
	if params.DeadlineMs > 0 {
		deadline = time.Now().Add(time.Duration(params.DeadlineMs) * time.Millisecond)
	}

	invCtx, cancel := context.WithDeadline(ctx, deadline)
	key := string(req.ID)
	d.inflightMu.Lock()
	d.inflight[key] = cancel
	d.inflightMu.Unlock()
	defer func() {
		d.inflightMu.Lock()
		delete(d.inflight, key)
		d.inflightMu.Unlock()
		cancel()
	}()

	started := time.Now()
	argsJSON, _ := json.Marshal(params.Arguments)
	d.logInvocation(invocationID, descriptor.Name, argsJSON, "started", 0, 0, "")

	if d.deps.Metrics != nil {
		d.deps.Metrics.InflightDelta(ctx, 1)
		defer d.deps.Metrics.InflightDelta(ctx, -1)
	}

	// executing.
	tc := d.deps.NewToolCtx(invCtx, invocationID, deadline)
	result, herr := d.runHandler(handler, tc, params.Arguments)

	duration := time.Since(started)

	if herr != nil {
		if invCtx.Err() != nil {
			herr = coreerrors.New(coreerrors.Cancelled, "invocation cancelled or deadline exceeded", invocationID)
		}
		d.logInvocation(invocationID, descriptor.Name, argsJSON, herr.Error(), duration, 0, "")
		if d.deps.Metrics != nil {
			d.deps.Metrics.RecordInvocation(ctx, descriptor.Name, "error", duration.Seconds())
		}
		return d.terminal(req.ID, nil, herr)
	}

	d.logInvocation(invocationID, descriptor.Name, argsJSON, "success", duration, contentBytes(result), result.NextCursor)
	if d.deps.Metrics != nil {
		d.deps.Metrics.RecordInvocation(ctx, descriptor.Name, "success", duration.Seconds())
	}
	return newResponse(req.ID, result)
}

// runHandler recovers from any panic in a tool body and converts it to
// Internal, per §4.8 step 8 / §9's exception-driven-flow note.
func (d *Dispatcher) runHandler(handler registry.Handler, tc *toolctx.Context, args map[string]any) (result *registry.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			d.deps.Logger.Error().Interface("panic", r).Str("correlation_id", correlationID).Msg("tool handler panicked")
			err = coreerrors.New(coreerrors.Internal, "unclassified internal error", correlationID)
		}
	}()
	return handler(tc, args)
}

func (d *Dispatcher) terminal(id json.RawMessage, result any, err error) *Response {
	correlationID := uuid.NewString()
	if _, classified := coreerrors.AsCoreError(err); !classified {
		d.deps.Logger.Error().Err(err).Str("correlation_id", correlationID).Msg("unclassified error converted to Internal")
	}
	ce := coreerrors.ToCoreError(err, correlationID)
	return newErrorResponse(id, ce.Kind.JSONRPCCode(), ce.Message, ce.Detail)
}

func (d *Dispatcher) logInvocation(invocationID, toolName string, argsJSON []byte, outcome string, duration time.Duration, bytesOut int, nextCursor string) {
	if d.deps.SessionLog == nil {
		return
	}
	phase := "end"
	if outcome == "started" {
		phase = "start"
	}
	d.deps.SessionLog.Append(sessionlog.Entry{
		InvocationID:   invocationID,
		ToolName:       toolName,
		ArgumentDigest: digestOf(argsJSON),
		OutcomeKind:    outcome,
		Duration:       duration,
		BytesOut:       bytesOut,
		NextCursor:     nextCursor,
		Phase:          phase,
	})
}

func contentBytes(r *registry.Result) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, c := range r.Content {
		n += len(c.Text)
	}
	return n
}

// validateArgs compiles (once, cached) and runs the descriptor's JSON
// Schema against args, returning a field-level InvalidArguments message
// on mismatch.
func (d *Dispatcher) validateArgs(descriptor registry.Descriptor, args map[string]any) error {
	if descriptor.Schema == nil {
		return nil
	}

	schema, err := d.compiledSchema(descriptor)
	if err != nil {
		return coreerrors.Wrap(coreerrors.Internal, err, "failed to compile tool schema", descriptor.Name)
	}

	// santhosh-tekuri/jsonschema validates against decoded JSON values
	// (map[string]interface{}/[]interface{}/json.Number), which is
	// exactly the shape arguments already arrive in from the JSON-RPC
	// envelope.
	if err := schema.Validate(args); err != nil {
		return coreerrors.Wrap(coreerrors.InvalidArguments, err, "argument validation failed", descriptor.Name)
	}
	return nil
}

func (d *Dispatcher) compiledSchema(descriptor registry.Descriptor) (*jsonschema.Schema, error) {
	d.schemaMu.Lock()
	defer d.schemaMu.Unlock()

	if s, ok := d.schemas[descriptor.Name]; ok {
		return s, nil
	}

	raw, err := json.Marshal(descriptor.Schema)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	resourceName := fmt.Sprintf("tool://%s/schema.json", descriptor.Name)
	if err := c.AddResource(resourceName, doc); err != nil {
		return nil, err
	}
	schema, err := c.Compile(resourceName)
	if err != nil {
		return nil, err
	}
	d.schemas[descriptor.Name] = schema
	return schema, nil
}

func digestOf(argsJSON []byte) string {
	return cursor.Digest(argsJSON)
}
