package tools

import (
	"testing"

	"github.com/hanzoai/mcpcore/internal/dag"
)

func TestRunDAGHandlerRunsIndependentSteps(t *testing.T) {
	root := t.TempDir()
	tc := newTestToolCtx(t, root)

	res, err := runDAGHandler(tc, map[string]any{
		"steps": []any{
			map[string]any{"id": "a", "run": "echo a"},
			map[string]any{"id": "b", "run": "echo b", "after": []any{"a"}},
		},
		"cwd": root,
	})
	if err != nil {
		t.Fatalf("runDAGHandler: %v", err)
	}

	result, ok := res.Content[0].JSON.(*dag.Result)
	if !ok {
		t.Fatalf("expected *dag.Result json content, got %T", res.Content[0].JSON)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("expected 2 step results, got %d", len(result.Steps))
	}
}

func TestRunDAGHandlerRejectsEmptySteps(t *testing.T) {
	root := t.TempDir()
	tc := newTestToolCtx(t, root)

	_, err := runDAGHandler(tc, map[string]any{"steps": []any{}})
	if err == nil {
		t.Fatal("expected an error for an empty step list")
	}
}
