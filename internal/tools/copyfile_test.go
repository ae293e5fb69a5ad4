package tools

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFileHandlerCopiesWithinAllowedTree(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "source.txt")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(root, "dest.txt")

	tc := newTestToolCtx(t, root)
	res, err := copyFileHandler(tc, map[string]any{"src": src, "dst": dst})
	if err != nil {
		t.Fatalf("copyFileHandler: %v", err)
	}
	if len(res.Content) != 1 {
		t.Fatalf("expected one content block, got %d", len(res.Content))
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("reading copied file: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestCopyFileHandlerRejectsPathOutsideAllowedTree(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	src := filepath.Join(outside, "source.txt")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	tc := newTestToolCtx(t, root)
	_, err := copyFileHandler(tc, map[string]any{"src": src, "dst": filepath.Join(root, "dest.txt")})
	if err == nil {
		t.Fatal("expected an authorization error for a source outside the allowed tree")
	}
}
