package tools

import (
	coreerrors "github.com/hanzoai/mcpcore/internal/errors"
	"github.com/hanzoai/mcpcore/internal/registry"
	"github.com/hanzoai/mcpcore/internal/safe"
	"github.com/hanzoai/mcpcore/internal/toolctx"
)

// CopyFileInput is the copy_file tool's parameter schema.
type CopyFileInput struct {
	Src           string `json:"src" jsonschema:"required,description=path to the source file"`
	Dst           string `json:"dst" jsonschema:"required,description=path to the destination file; overwritten if it already exists"`
	AllowSymlinks bool   `json:"allow_symlinks,omitempty" jsonschema:"description=follow a symlinked source instead of rejecting it"`
}

// CopyFileManifest builds the copy_file tool manifest.
func CopyFileManifest() registry.Manifest {
	return registry.Manifest{
		Descriptor: registry.Descriptor{
			Name:        "copy_file",
			Description: "Copy a regular file within the allow-listed tree, rejecting symlink sources by default.",
			Category:    "write",
			Schema:      registry.GenerateSchema(&CopyFileInput{}),
		},
		Handler: copyFileHandler,
	}
}

func copyFileHandler(tc *toolctx.Context, raw map[string]any) (*registry.Result, error) {
	var in CopyFileInput
	if err := decodeArgs(raw, &in); err != nil {
		return nil, err
	}

	canonSrc, err := tc.Gate.AuthorizeRead(in.Src)
	if err != nil {
		return nil, err
	}
	canonDst, err := tc.Gate.AuthorizeWrite(in.Dst)
	if err != nil {
		return nil, err
	}

	opts := &safe.CopyFileOptions{MaxSize: 64 << 20, AllowSymlinks: in.AllowSymlinks}
	if err := safe.CopyFile(canonSrc, canonDst, opts); err != nil {
		return nil, coreerrors.Wrap(coreerrors.ExecutionFailed, err, "failed to copy file", canonSrc+" -> "+canonDst)
	}

	return &registry.Result{Content: []registry.Content{{Type: "text", Text: "copied " + canonSrc + " -> " + canonDst}}}, nil
}
