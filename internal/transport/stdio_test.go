package transport

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/rs/zerolog"

	"github.com/hanzoai/mcpcore/internal/dispatch"
	"github.com/hanzoai/mcpcore/internal/registry"
	"github.com/hanzoai/mcpcore/internal/toolctx"
)

type echoInput struct {
	Message string `json:"message" jsonschema:"required"`
}

func newEchoDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()
	reflector := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	schema := reflector.Reflect(&echoInput{})

	manifests := []registry.Manifest{
		{
			Descriptor: registry.Descriptor{Name: "echo", Category: "misc", Schema: schema},
			Handler: func(tc *toolctx.Context, args map[string]any) (*registry.Result, error) {
				return &registry.Result{Content: []registry.Content{{Type: "text", Text: args["message"].(string)}}}, nil
			},
		},
	}
	reg, err := registry.New(manifests, nil)
	if err != nil {
		t.Fatal(err)
	}

	return dispatch.New(dispatch.Deps{
		Registry: reg,
		Logger:   zerolog.Nop(),
		NewToolCtx: func(ctx context.Context, invocationID string, deadline time.Time) *toolctx.Context {
			return &toolctx.Context{Ctx: ctx, InvocationID: invocationID, Deadline: deadline}
		},
	})
}

func TestStdioServeRoundTripsOneRequest(t *testing.T) {
	d := newEchoDispatcher(t)
	s := NewStdio(d, zerolog.Nop())

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n")
	var out bytes.Buffer

	if err := s.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	if !strings.Contains(out.String(), `"pong":"ok"`) {
		t.Fatalf("expected a pong response, got %q", out.String())
	}
}

func TestStdioServeSkipsBlankLines(t *testing.T) {
	d := newEchoDispatcher(t)
	s := NewStdio(d, zerolog.Nop())

	in := strings.NewReader("\n\n" + `{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n")
	var out bytes.Buffer

	if err := s.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if strings.Count(out.String(), "\n") != 1 {
		t.Fatalf("expected exactly one response line, got %q", out.String())
	}
}
