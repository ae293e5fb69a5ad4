package registry

import (
	"testing"

	coreerrors "github.com/hanzoai/mcpcore/internal/errors"
	"github.com/hanzoai/mcpcore/internal/toolctx"
)

func dummyHandler(tc *toolctx.Context, args map[string]any) (*Result, error) {
	return &Result{Content: []Content{{Type: "text", Text: "ok"}}}, nil
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	manifests := []Manifest{
		{Descriptor: Descriptor{Name: "read_file", Category: "read"}, Handler: dummyHandler},
		{Descriptor: Descriptor{Name: "read_file", Category: "read"}, Handler: dummyHandler},
	}
	_, err := New(manifests, nil)
	if err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestListOnlyEnabled(t *testing.T) {
	manifests := []Manifest{
		{Descriptor: Descriptor{Name: "read_file", Category: "read"}, Handler: dummyHandler},
		{Descriptor: Descriptor{Name: "write_file", Category: "write"}, Handler: dummyHandler},
	}
	reg, err := New(manifests, map[string]bool{"write": true})
	if err != nil {
		t.Fatal(err)
	}

	list := reg.List()
	if len(list) != 1 || list[0].Name != "read_file" {
		t.Fatalf("expected only read_file listed, got %+v", list)
	}

	if _, _, err := reg.Resolve("write_file"); err == nil {
		t.Fatal("expected disabled tool to resolve as NotFound")
	}
}

func TestResolveUnknownToolNotFound(t *testing.T) {
	reg, err := New(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = reg.Resolve("ghost")
	ce, ok := coreerrors.AsCoreError(err)
	if !ok || ce.Kind != coreerrors.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestToolNameUniquenessInvariant(t *testing.T) {
	manifests := []Manifest{
		{Descriptor: Descriptor{Name: "a"}, Handler: dummyHandler},
		{Descriptor: Descriptor{Name: "b"}, Handler: dummyHandler},
	}
	reg, err := New(manifests, nil)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, d := range reg.List() {
		if seen[d.Name] {
			t.Fatalf("duplicate name in registry.list(): %s", d.Name)
		}
		seen[d.Name] = true
	}
}
