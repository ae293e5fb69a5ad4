package tools

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/hanzoai/mcpcore/internal/registry"
	"github.com/hanzoai/mcpcore/internal/toolctx"
)

// DirTreeInput is the dir_tree tool's parameter schema.
type DirTreeInput struct {
	Path     string `json:"path" jsonschema:"required,description=directory to enumerate"`
	MaxDepth int    `json:"max_depth,omitempty" jsonschema:"description=maximum recursion depth; 0 means unbounded"`
	Cursor   string `json:"cursor,omitempty" jsonschema:"description=resume a previous listing from its cursor"`
}

// Entry is one enumerated filesystem path.
type Entry struct {
	Path  string `json:"path"`
	Dir   bool   `json:"dir"`
	Size  int64  `json:"size"`
	Depth int    `json:"depth"`
}

// DirTreeManifest builds the dir_tree tool manifest.
func DirTreeManifest() registry.Manifest {
	return registry.Manifest{
		Descriptor: registry.Descriptor{
			Name:        "dir_tree",
			Description: "Enumerate a directory tree up to a bounded depth, with per-path stat info; results are cursor-paginated.",
			Category:    "read",
			Schema:      registry.GenerateSchema(&DirTreeInput{}),
		},
		Handler: dirTreeHandler,
	}
}

func dirTreeHandler(tc *toolctx.Context, raw map[string]any) (*registry.Result, error) {
	var in DirTreeInput
	if err := decodeArgs(raw, &in); err != nil {
		return nil, err
	}

	canonRoot, err := tc.Gate.AuthorizeRead(in.Path)
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

	var entries []Entry
	rootDepth := pathDepth(canonRoot)
	_ = filepath.WalkDir(canonRoot, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		depth := pathDepth(p) - rootDepth
		if in.MaxDepth > 0 && depth > in.MaxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == canonRoot {
			return nil
		}
		info, ierr := d.Info()
		var size int64
		if ierr == nil {
			size = info.Size()
		}
		entries = append(entries, Entry{Path: p, Dir: d.IsDir(), Size: size, Depth: depth})
		return nil
	})

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	if offset > int64(len(entries)) {
		offset = int64(len(entries))
	}
	remaining := entries[offset:]

	items := make([]string, len(remaining))
	for i, e := range remaining {
		b, _ := json.Marshal(e)
		items[i] = string(b)
	}

	n, truncated, berr := tc.Budget.PackList(items, func(s []string) string {
		b, _ := json.Marshal(s)
		return string(b)
	})
	if berr != nil {
		return nil, berr
	}

	page := remaining[:n]
	var nextCursor string
	if truncated {
		nextCursor, err = tc.Cursors.Mint("paginated_list", "dirtree:"+canonRoot, offset+int64(n), argsJSON)
		if err != nil {
			return nil, err
		}
	}

	return &registry.Result{
		Content:    []registry.Content{{Type: "json", JSON: page}},
		NextCursor: nextCursor,
	}, nil
}

func pathDepth(p string) int {
	p = filepath.Clean(p)
	depth := 0
	for _, r := range p {
		if r == filepath.Separator {
			depth++
		}
	}
	return depth
}
