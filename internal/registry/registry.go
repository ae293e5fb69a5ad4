// Package registry implements the Tool Registry (C7): it builds the
// immutable dispatch table of Tool Descriptors from compile-time
// registered manifests, rejecting any name collision at startup, and
// exposes read-only lookups to the Dispatcher.
package registry

import (
	"sort"
	"sync"

	"github.com/invopop/jsonschema"

	coreerrors "github.com/hanzoai/mcpcore/internal/errors"
	"github.com/hanzoai/mcpcore/internal/toolctx"
)

// Content is one typed chunk of a Tool Result.
type Content struct {
	Type     string `json:"type"` // "text" | "json" | "resource"
	Text     string `json:"text,omitempty"`
	JSON     any    `json:"json,omitempty"`
	Resource string `json:"resource,omitempty"`
}

// Result is what a tool handler returns on success.
type Result struct {
	Content    []Content `json:"content"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// Handler executes one tool invocation. tc carries the capabilities the
// invocation was granted; rawArgs is the already-schema-validated
// JSON-RPC arguments object.
type Handler func(tc *toolctx.Context, rawArgs map[string]any) (*Result, error)

// Descriptor is the stable, immutable-after-registration metadata for
// one tool.
type Descriptor struct {
	Name        string
	Description string
	Category    string
	Schema      *jsonschema.Schema
}

// Manifest is what a plugin package contributes at registration time:
// one or more descriptors paired with their handlers.
type Manifest struct {
	Descriptor Descriptor
	Handler    Handler
}

// entry is the resolved, bound form of a Manifest kept in the registry.
type entry struct {
	descriptor Descriptor
	handler    Handler
	enabled    bool
}

// Registry is the immutable-after-startup dispatch table.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New builds a Registry from manifests, scanning for name collisions.
// disabledCategories marks whole categories as disabled (SPEC_FULL.md's
// generalization of --disable-write-tools/--disable-search-tools): their
// descriptors stay registered, but List omits them and Resolve reports
// them NotFound, matching the teacher's EnabledTools filter semantics.
func New(manifests []Manifest, disabledCategories map[string]bool) (*Registry, error) {
	r := &Registry{entries: make(map[string]*entry, len(manifests))}
	for _, m := range manifests {
		if m.Descriptor.Name == "" {
			return nil, coreerrors.New(coreerrors.Internal, "tool manifest missing a name", "")
		}
		if _, dup := r.entries[m.Descriptor.Name]; dup {
			return nil, coreerrors.New(coreerrors.Internal, "duplicate tool name at registration", m.Descriptor.Name)
		}
		r.entries[m.Descriptor.Name] = &entry{
			descriptor: m.Descriptor,
			handler:    m.Handler,
			enabled:    !disabledCategories[m.Descriptor.Category],
		}
	}
	return r, nil
}

// List returns the descriptor snapshot for tools/list: only enabled
// tools are advertised to the client.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		if e.enabled {
			out = append(out, e.descriptor)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resolve returns the handler and descriptor for name, or NotFound if
// unknown or disabled.
func (r *Registry) Resolve(name string) (Descriptor, Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok || !e.enabled {
		return Descriptor{}, nil, coreerrors.New(coreerrors.NotFound, "unknown tool", name)
	}
	return e.descriptor, e.handler, nil
}

// GenerateSchema reflects a Go input struct into a JSON Schema using the
// same jsonschema struct-tag convention the teacher's tool manifests use
// (`json` for field names, `jsonschema:"description=..."` for prose).
func GenerateSchema(input any) *jsonschema.Schema {
	reflector := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	return reflector.Reflect(input)
}
