package tools

import (
	"fmt"
	"os"
	"time"

	"github.com/hanzoai/mcpcore/internal/process"
	"github.com/hanzoai/mcpcore/internal/registry"
	"github.com/hanzoai/mcpcore/internal/toolctx"
)

// ShellInput is the run_shell tool's parameter schema.
type ShellInput struct {
	Argv              []string `json:"argv" jsonschema:"required,description=argv[0] is the binary, the rest are its arguments"`
	Cwd               string   `json:"cwd,omitempty" jsonschema:"description=working directory; defaults to the server's cwd"`
	Env               []string `json:"env,omitempty" jsonschema:"description=additional KEY=VALUE environment entries"`
	ForegroundSeconds int      `json:"foreground_seconds,omitempty" jsonschema:"description=how long to wait before auto-backgrounding; 0 uses the server default"`
	PTY               bool     `json:"pty,omitempty" jsonschema:"description=attach a pseudo-terminal instead of plain pipes, for programs that behave differently without one"`
}

// ShellManifest builds the run_shell tool manifest.
func ShellManifest() registry.Manifest {
	return registry.Manifest{
		Descriptor: registry.Descriptor{
			Name:        "run_shell",
			Description: "Spawn a single command under the Process Supervisor, waiting up to a foreground deadline before auto-backgrounding it.",
			Category:    "exec",
			Schema:      registry.GenerateSchema(&ShellInput{}),
		},
		Handler: shellHandler,
	}
}

func shellHandler(tc *toolctx.Context, raw map[string]any) (*registry.Result, error) {
	var in ShellInput
	if err := decodeArgs(raw, &in); err != nil {
		return nil, err
	}

	cwd := in.Cwd
	if cwd == "" {
		cwd, _ = os.Getwd()
	}

	canonCwd, err := tc.Gate.AuthorizeExec(in.Argv, cwd)
	if err != nil {
		return nil, err
	}

	var deadline time.Duration
	if in.ForegroundSeconds > 0 {
		deadline = time.Duration(in.ForegroundSeconds) * time.Second
	}

	res, err := tc.Supervisor.Spawn(tc.Ctx, process.SpawnRequest{
		Argv:               in.Argv,
		Cwd:                canonCwd,
		Env:                append(os.Environ(), in.Env...),
		ForegroundDeadline: deadline,
		PTY:                in.PTY,
	})
	if err != nil {
		return nil, err
	}

	if res.Backgrounded {
		return &registry.Result{
			Content: []registry.Content{{
				Type: "text",
				Text: fmt.Sprintf("backgrounded: session=%s (still running after foreground wait)", res.Session.ID),
			}},
		}, nil
	}

	text := fmt.Sprintf("session=%s exit_status=%d\n--- stdout ---\n%s\n--- stderr ---\n%s",
		res.Session.ID, res.ExitStatus, string(res.CapturedStdout), string(res.CapturedStderr))
	text, _, berr := tc.Budget.TruncateBlob(text)
	if berr != nil {
		return nil, berr
	}
	return &registry.Result{Content: []registry.Content{{Type: "text", Text: text}}}, nil
}
