// Package tools implements the Tool Bodies (C9): the pure tool logic
// that consumes the Permission Gate, Process Supervisor, DAG Runner,
// Cursor Store, and Token Budgeter via the toolctx.Context it is handed.
// No tool body touches the filesystem or spawns a process without
// first going through the Gate.
package tools

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	coreerrors "github.com/hanzoai/mcpcore/internal/errors"
	"github.com/hanzoai/mcpcore/internal/registry"
	"github.com/hanzoai/mcpcore/internal/safe"
	"github.com/hanzoai/mcpcore/internal/toolctx"
)

// ReadFileInput is the read_file tool's parameter schema.
type ReadFileInput struct {
	Path      string `json:"path" jsonschema:"required,description=absolute or relative path to read"`
	StartLine int    `json:"start_line,omitempty" jsonschema:"description=1-based first line to include; 0 means from the start"`
	EndLine   int    `json:"end_line,omitempty" jsonschema:"description=1-based last line to include; 0 means to the end"`
}

// ReadFileManifest builds the read_file tool manifest.
func ReadFileManifest() registry.Manifest {
	return registry.Manifest{
		Descriptor: registry.Descriptor{
			Name:        "read_file",
			Description: "Read a file's contents with line numbers, optionally restricted to a line range.",
			Category:    "read",
			Schema:      registry.GenerateSchema(&ReadFileInput{}),
		},
		Handler: readFileHandler,
	}
}

func readFileHandler(tc *toolctx.Context, raw map[string]any) (*registry.Result, error) {
	var in ReadFileInput
	if err := decodeArgs(raw, &in); err != nil {
		return nil, err
	}

	canon, err := tc.Gate.AuthorizeRead(in.Path)
	if err != nil {
		return nil, err
	}

	data, err := safe.ReadFile(canon, &safe.CopyFileOptions{MaxSize: safe.MaxSizeForTokenBudget(tc.Budget.Cap()), AllowSymlinks: true})
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ExecutionFailed, err, "failed to read file", canon)
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	start, end := 1, len(lines)
	if in.StartLine > 0 {
		start = in.StartLine
	}
	if in.EndLine > 0 && in.EndLine < end {
		end = in.EndLine
	}
	if start > len(lines) {
		return &registry.Result{Content: []registry.Content{{Type: "text", Text: ""}}}, nil
	}
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for i := start; i <= end; i++ {
		fmt.Fprintf(&b, "%d: %s\n", i, lines[i-1])
	}

	text, truncated, berr := tc.Budget.TruncateBlob(b.String())
	if berr != nil {
		return nil, berr
	}
	_ = truncated
	return &registry.Result{Content: []registry.Content{{Type: "text", Text: text}}}, nil
}

// EditFileInput is the edit_file tool's parameter schema.
type EditFileInput struct {
	Path    string `json:"path" jsonschema:"required,description=absolute or relative path to edit"`
	OldText string `json:"old_text" jsonschema:"required,description=exact text to replace; must be unique within the file"`
	NewText string `json:"new_text" jsonschema:"required,description=replacement text"`
}

// EditFileManifest builds the edit_file tool manifest.
func EditFileManifest() registry.Manifest {
	return registry.Manifest{
		Descriptor: registry.Descriptor{
			Name:        "edit_file",
			Description: "Replace a unique old-text/new-text span in a file. Fails if the old text is ambiguous or not found.",
			Category:    "write",
			Schema:      registry.GenerateSchema(&EditFileInput{}),
		},
		Handler: editFileHandler,
	}
}

func editFileHandler(tc *toolctx.Context, raw map[string]any) (*registry.Result, error) {
	var in EditFileInput
	if err := decodeArgs(raw, &in); err != nil {
		return nil, err
	}

	canon, err := tc.Gate.AuthorizeWrite(in.Path)
	if err != nil {
		return nil, err
	}

	data, err := safe.ReadFile(canon, &safe.CopyFileOptions{MaxSize: safe.MaxSizeForTokenBudget(tc.Budget.Cap()), AllowSymlinks: true})
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ExecutionFailed, err, "failed to read file for edit", canon)
	}

	content := string(data)
	count := strings.Count(content, in.OldText)
	switch count {
	case 0:
		return nil, coreerrors.New(coreerrors.InvalidArguments, "old_text not found in file", canon)
	case 1:
		// exactly one match, proceed.
	default:
		return nil, coreerrors.New(coreerrors.InvalidArguments, "old_text is ambiguous: multiple matches in file", strconv.Itoa(count))
	}

	updated := strings.Replace(content, in.OldText, in.NewText, 1)
	if err := os.WriteFile(canon, []byte(updated), 0o644); err != nil {
		return nil, coreerrors.Wrap(coreerrors.ExecutionFailed, err, "failed to write file", canon)
	}

	return &registry.Result{Content: []registry.Content{{Type: "text", Text: "edited " + canon}}}, nil
}

// decodeArgs is a tiny JSON-roundtrip decoder shared by every tool body
// to turn the dispatcher's map[string]any arguments into a typed input
// struct, after schema validation has already run.
func decodeArgs(raw map[string]any, out any) error {
	if err := jsonRemarshal(raw, out); err != nil {
		return coreerrors.Wrap(coreerrors.InvalidArguments, err, "failed to decode arguments", "")
	}
	return nil
}

// newLineScanner is used by tools that need line-oriented access
// without loading an entire huge file into memory at once (search uses
// it).
func newLineScanner(f *os.File) *bufio.Scanner {
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return s
}
