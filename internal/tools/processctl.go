package tools

import (
	"encoding/json"

	"github.com/hanzoai/mcpcore/internal/registry"
	"github.com/hanzoai/mcpcore/internal/toolctx"
)

// ListProcessesInput is the list_processes tool's parameter schema.
type ListProcessesInput struct{}

// ProcessSummary is one session's listing entry.
type ProcessSummary struct {
	ID          string `json:"id"`
	CommandLine string `json:"command_line"`
	State       string `json:"state"`
	RSSBytes    uint64 `json:"rss_bytes"`
	CPUPercent  float64 `json:"cpu_percent"`
}

// ListProcessesManifest builds the list_processes tool manifest.
func ListProcessesManifest() registry.Manifest {
	return registry.Manifest{
		Descriptor: registry.Descriptor{
			Name:        "list_processes",
			Description: "List every live process session tracked by the supervisor, with current resource usage.",
			Category:    "exec",
			Schema:      registry.GenerateSchema(&ListProcessesInput{}),
		},
		Handler: listProcessesHandler,
	}
}

func listProcessesHandler(tc *toolctx.Context, raw map[string]any) (*registry.Result, error) {
	sessions := tc.Supervisor.List()
	out := make([]ProcessSummary, 0, len(sessions))
	for _, s := range sessions {
		rss, cpu, _ := tc.Supervisor.Stats(s.ID)
		out = append(out, ProcessSummary{
			ID:          s.ID,
			CommandLine: joinArgv(s.CommandLine),
			State:       string(s.State()),
			RSSBytes:    rss,
			CPUPercent:  cpu,
		})
	}
	return &registry.Result{Content: []registry.Content{{Type: "json", JSON: out}}}, nil
}

// ProcessLogsInput is the process_logs tool's parameter schema.
type ProcessLogsInput struct {
	Session string `json:"session" jsonschema:"required,description=session id or glob pattern over live command lines"`
	Stream  string `json:"stream,omitempty" jsonschema:"description=stdout or stderr; defaults to stdout"`
	Cursor  string `json:"cursor,omitempty" jsonschema:"description=resume a previous log read from its cursor"`
}

// ProcessLogsManifest builds the process_logs tool manifest.
func ProcessLogsManifest() registry.Manifest {
	return registry.Manifest{
		Descriptor: registry.Descriptor{
			Name:        "process_logs",
			Description: "Read a process session's captured stdout/stderr, cursor-paginated for streaming beyond the response cap.",
			Category:    "exec",
			Schema:      registry.GenerateSchema(&ProcessLogsInput{}),
		},
		Handler: processLogsHandler,
	}
}

func processLogsHandler(tc *toolctx.Context, raw map[string]any) (*registry.Result, error) {
	var in ProcessLogsInput
	if err := decodeArgs(raw, &in); err != nil {
		return nil, err
	}

	sess, err := tc.Supervisor.ResolveSession(in.Session)
	if err != nil {
		return nil, err
	}

	var offset int64
	argsJSON, _ := json.Marshal(in)
	if in.Cursor != "" {
		red, rerr := tc.Cursors.Redeem(in.Cursor, argsJSON)
		if rerr != nil {
			return nil, rerr
		}
		offset = red.Offset
	}

	var (
		data  []byte
		total int64
	)
	if in.Stream == "stderr" {
		data, total, err = tc.Supervisor.LogsStderr(sess.ID, offset)
	} else {
		data, total, err = tc.Supervisor.Logs(sess.ID, offset)
	}
	if err != nil {
		return nil, err
	}

	text, _, berr := tc.Budget.TruncateBlob(string(data))
	if berr != nil {
		return nil, berr
	}

	var nextCursor string
	if offset+int64(len(data)) < total {
		nextCursor, err = tc.Cursors.Mint("streamed_log", "process:"+sess.ID, offset+int64(len(data)), argsJSON)
		if err != nil {
			return nil, err
		}
	}

	return &registry.Result{
		Content:    []registry.Content{{Type: "text", Text: text}},
		NextCursor: nextCursor,
	}, nil
}

// SignalProcessInput is the signal_process tool's parameter schema.
type SignalProcessInput struct {
	Session string `json:"session" jsonschema:"required,description=session id or glob pattern over live command lines"`
	Signal  string `json:"signal" jsonschema:"required,description=terminate, kill, or interrupt"`
}

// SignalProcessManifest builds the signal_process tool manifest.
func SignalProcessManifest() registry.Manifest {
	return registry.Manifest{
		Descriptor: registry.Descriptor{
			Name:        "signal_process",
			Description: "Deliver terminate/kill/interrupt to a live process session.",
			Category:    "exec",
			Schema:      registry.GenerateSchema(&SignalProcessInput{}),
		},
		Handler: signalProcessHandler,
	}
}

func signalProcessHandler(tc *toolctx.Context, raw map[string]any) (*registry.Result, error) {
	var in SignalProcessInput
	if err := decodeArgs(raw, &in); err != nil {
		return nil, err
	}

	sess, err := tc.Supervisor.ResolveSession(in.Session)
	if err != nil {
		return nil, err
	}
	if err := tc.Supervisor.Signal(sess.ID, in.Signal); err != nil {
		return nil, err
	}
	return &registry.Result{Content: []registry.Content{{Type: "text", Text: "signalled " + sess.ID}}}, nil
}

// ReapProcessInput is the reap_process tool's parameter schema.
type ReapProcessInput struct {
	Session string `json:"session" jsonschema:"required,description=session id or glob pattern over live command lines"`
}

// ReapProcessManifest builds the reap_process tool manifest.
func ReapProcessManifest() registry.Manifest {
	return registry.Manifest{
		Descriptor: registry.Descriptor{
			Name:        "reap_process",
			Description: "Remove a terminated process session's record once its logs have been read.",
			Category:    "exec",
			Schema:      registry.GenerateSchema(&ReapProcessInput{}),
		},
		Handler: reapProcessHandler,
	}
}

func reapProcessHandler(tc *toolctx.Context, raw map[string]any) (*registry.Result, error) {
	var in ReapProcessInput
	if err := decodeArgs(raw, &in); err != nil {
		return nil, err
	}
	sess, err := tc.Supervisor.ResolveSession(in.Session)
	if err != nil {
		return nil, err
	}
	if err := tc.Supervisor.Reap(sess.ID); err != nil {
		return nil, err
	}
	return &registry.Result{Content: []registry.Content{{Type: "text", Text: "reaped " + sess.ID}}}, nil
}

func joinArgv(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	out := argv[0]
	for _, a := range argv[1:] {
		out += " " + a
	}
	return out
}
