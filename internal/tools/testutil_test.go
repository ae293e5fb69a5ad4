package tools

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hanzoai/mcpcore/internal/cursor"
	"github.com/hanzoai/mcpcore/internal/dag"
	"github.com/hanzoai/mcpcore/internal/permission"
	"github.com/hanzoai/mcpcore/internal/process"
	"github.com/hanzoai/mcpcore/internal/tokenbudget"
	"github.com/hanzoai/mcpcore/internal/toolctx"
)

// newTestToolCtx builds a toolctx.Context rooted at root, with every
// capability wired the way mcpserver.New wires it at startup, so tool
// bodies can be exercised without a running Dispatcher.
func newTestToolCtx(t *testing.T, root string) *toolctx.Context {
	t.Helper()

	gate, err := permission.New(permission.Config{
		Rules:       []permission.Rule{{Prefix: root, Allow: true}},
		TrustedExec: true,
	})
	if err != nil {
		t.Fatalf("permission.New: %v", err)
	}

	sv, err := process.New(process.Config{SpillRoot: root + "/.spill", Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("process.New: %v", err)
	}
	t.Cleanup(func() { sv.Shutdown(context.Background()) })

	return &toolctx.Context{
		Ctx:          context.Background(),
		InvocationID: "test-invocation",
		Deadline:     time.Now().Add(time.Minute),
		Gate:         gate,
		Supervisor:   sv,
		DAG:          dag.New(sv, 0),
		Cursors:      cursor.New(cursor.DefaultIdleTimeout),
		Budget:       tokenbudget.New(25000),
	}
}
