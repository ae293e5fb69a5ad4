// Package toolctx defines the context handed to every tool body: the
// capabilities its invocation was granted, never more. Keeping this in
// its own package (rather than in registry or dispatch) lets the
// Dispatcher build one per invocation without the Tool Registry needing
// to know about the Permission Gate, Process Supervisor, DAG Runner,
// Cursor Store, or Token Budgeter it wires together.
package toolctx

import (
	"context"
	"time"

	"github.com/hanzoai/mcpcore/internal/cursor"
	"github.com/hanzoai/mcpcore/internal/dag"
	"github.com/hanzoai/mcpcore/internal/permission"
	"github.com/hanzoai/mcpcore/internal/process"
	"github.com/hanzoai/mcpcore/internal/tokenbudget"
)

// Context is passed to every tool handler. Handlers must treat Ctx's
// cancellation as authoritative for every suspension point they hit
// (process wait, file read/write, cursor resolution, sleep timers).
type Context struct {
	Ctx context.Context

	InvocationID string
	Deadline     time.Time

	Gate       *permission.Gate
	Supervisor *process.Supervisor
	DAG        *dag.Runner
	Cursors    *cursor.Store
	Budget     *tokenbudget.Budgeter
}
