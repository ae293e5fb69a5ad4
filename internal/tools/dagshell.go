package tools

import (
	"os"

	"github.com/hanzoai/mcpcore/internal/dag"
	coreerrors "github.com/hanzoai/mcpcore/internal/errors"
	"github.com/hanzoai/mcpcore/internal/registry"
	"github.com/hanzoai/mcpcore/internal/toolctx"
)

// RunDAGInput is the run_dag tool's parameter schema.
type RunDAGInput struct {
	Steps []interface{} `json:"steps" jsonschema:"required,description=either bare command strings or {id,run,after} objects"`
	Cwd   string        `json:"cwd,omitempty" jsonschema:"description=working directory shared by every step"`
	Env   []string      `json:"env,omitempty" jsonschema:"description=additional KEY=VALUE environment entries shared by every step"`
}

// RunDAGManifest builds the run_dag tool manifest.
func RunDAGManifest() registry.Manifest {
	return registry.Manifest{
		Descriptor: registry.Descriptor{
			Name:        "run_dag",
			Description: "Run a dependency graph of shell steps with bounded parallel fan-out, cascading cancellation on first failure.",
			Category:    "exec",
			Schema:      registry.GenerateSchema(&RunDAGInput{}),
		},
		Handler: runDAGHandler,
	}
}

func runDAGHandler(tc *toolctx.Context, raw map[string]any) (*registry.Result, error) {
	var in RunDAGInput
	if err := decodeArgs(raw, &in); err != nil {
		return nil, err
	}
	if len(in.Steps) == 0 {
		return nil, coreerrors.New(coreerrors.InvalidArguments, "steps must not be empty", "")
	}

	steps, err := dag.DecodeSteps(in.Steps)
	if err != nil {
		return nil, err
	}

	cwd := in.Cwd
	if cwd == "" {
		cwd, _ = os.Getwd()
	}
	canonCwd, err := tc.Gate.AuthorizeExec([]string{"/bin/sh"}, cwd)
	if err != nil {
		return nil, err
	}

	result, err := tc.DAG.Run(tc.Ctx, canonCwd, append(os.Environ(), in.Env...), steps)
	if err != nil {
		return nil, err
	}

	return &registry.Result{Content: []registry.Content{{Type: "json", JSON: result}}}, nil
}
