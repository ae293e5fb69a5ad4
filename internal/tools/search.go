package tools

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	coreerrors "github.com/hanzoai/mcpcore/internal/errors"
	"github.com/hanzoai/mcpcore/internal/registry"
	"github.com/hanzoai/mcpcore/internal/toolctx"
)

// SearchInput is the search tool's parameter schema.
type SearchInput struct {
	Pattern string   `json:"pattern" jsonschema:"required,description=byte-regex pattern"`
	Path    string   `json:"path" jsonschema:"required,description=directory to search under"`
	Include []string `json:"include,omitempty" jsonschema:"description=glob patterns a file must match at least one of"`
	Exclude []string `json:"exclude,omitempty" jsonschema:"description=glob patterns that exclude a file"`
	Cursor  string   `json:"cursor,omitempty" jsonschema:"description=resume a previous search from its cursor"`
}

// Hit is one search match.
type Hit struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Preview string `json:"preview"`
}

// SearchManifest builds the search tool manifest.
func SearchManifest() registry.Manifest {
	return registry.Manifest{
		Descriptor: registry.Descriptor{
			Name:        "search",
			Description: "Regex search over a directory tree with include/exclude globs; results are cursor-paginated.",
			Category:    "search",
			Schema:      registry.GenerateSchema(&SearchInput{}),
		},
		Handler: searchHandler,
	}
}

func searchHandler(tc *toolctx.Context, raw map[string]any) (*registry.Result, error) {
	var in SearchInput
	if err := decodeArgs(raw, &in); err != nil {
		return nil, err
	}

	re, err := regexp.Compile(in.Pattern)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.InvalidArguments, err, "invalid search pattern", in.Pattern)
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

	var hits []Hit
	_ = filepath.WalkDir(canonRoot, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return nil
		}
		if !matchesGlobs(p, in.Include, in.Exclude) {
			return nil
		}
		f, oerr := os.Open(p)
		if oerr != nil {
			return nil
		}
		defer f.Close()

		scanner := newLineScanner(f)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if re.MatchString(line) {
				hits = append(hits, Hit{Path: p, Line: lineNo, Preview: preview(line)})
			}
		}
		return nil
	})

	if offset > int64(len(hits)) {
		offset = int64(len(hits))
	}
	remaining := hits[offset:]

	items := make([]string, len(remaining))
	for i, h := range remaining {
		b, _ := json.Marshal(h)
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
		nextCursor, err = tc.Cursors.Mint("batched_search", "search:"+canonRoot, offset+int64(n), argsJSON)
		if err != nil {
			return nil, err
		}
	}

	return &registry.Result{
		Content:    []registry.Content{{Type: "json", JSON: page}},
		NextCursor: nextCursor,
	}, nil
}

func matchesGlobs(p string, include, exclude []string) bool {
	base := filepath.Base(p)
	for _, pat := range exclude {
		if ok, _ := filepath.Match(pat, base); ok {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, pat := range include {
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
	}
	return false
}

func preview(line string) string {
	const maxLen = 200
	if len(line) <= maxLen {
		return line
	}
	return line[:maxLen] + "…"
}
