package tools

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadFileHandlerReturnsNumberedLines(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(path, []byte("alpha\nbeta\ngamma\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tc := newTestToolCtx(t, root)
	res, err := readFileHandler(tc, map[string]any{"path": path})
	if err != nil {
		t.Fatalf("readFileHandler: %v", err)
	}
	if len(res.Content) != 1 {
		t.Fatalf("expected one content block, got %d", len(res.Content))
	}

	want := "1: alpha\n2: beta\n3: gamma\n"
	if got := res.Content[0].Text; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestReadFileHandlerRestrictsToLineRange(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(path, []byte("alpha\nbeta\ngamma\ndelta\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tc := newTestToolCtx(t, root)
	res, err := readFileHandler(tc, map[string]any{"path": path, "start_line": float64(2), "end_line": float64(3)})
	if err != nil {
		t.Fatalf("readFileHandler: %v", err)
	}

	want := "2: beta\n3: gamma\n"
	if got := res.Content[0].Text; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestReadFileHandlerRejectsPathOutsideAllowedTree(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	path := filepath.Join(outside, "notes.txt")
	if err := os.WriteFile(path, []byte("secret\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tc := newTestToolCtx(t, root)
	if _, err := readFileHandler(tc, map[string]any{"path": path}); err == nil {
		t.Fatal("expected an authorization error for a path outside the allowed tree")
	}
}

func TestEditFileHandlerReplacesUniqueSpan(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "config.txt")
	if err := os.WriteFile(path, []byte("host=localhost\nport=8080\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tc := newTestToolCtx(t, root)
	_, err := editFileHandler(tc, map[string]any{"path": path, "old_text": "port=8080", "new_text": "port=9090"})
	if err != nil {
		t.Fatalf("editFileHandler: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "host=localhost\nport=9090\n"
	if string(got) != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// TestEditFileHandlerRoundTripRestoresOriginalBytes covers the round-trip
// law: edit(path, old, new) followed by edit(path, new, old) must restore
// the file byte-for-byte.
func TestEditFileHandlerRoundTripRestoresOriginalBytes(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "config.txt")
	original := []byte("host=localhost\nport=8080\ntimeout=30s\n")
	if err := os.WriteFile(path, original, 0o644); err != nil {
		t.Fatal(err)
	}

	tc := newTestToolCtx(t, root)

	if _, err := editFileHandler(tc, map[string]any{"path": path, "old_text": "port=8080", "new_text": "port=9090"}); err != nil {
		t.Fatalf("forward edit: %v", err)
	}
	if _, err := editFileHandler(tc, map[string]any{"path": path, "old_text": "port=9090", "new_text": "port=8080"}); err != nil {
		t.Fatalf("reverse edit: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(original) {
		t.Fatalf("round trip did not restore original bytes: got %q, want %q", got, original)
	}
}

func TestEditFileHandlerRejectsAmbiguousMatch(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "config.txt")
	if err := os.WriteFile(path, []byte("port=8080\nport=8080\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tc := newTestToolCtx(t, root)
	_, err := editFileHandler(tc, map[string]any{"path": path, "old_text": "port=8080", "new_text": "port=9090"})
	if err == nil {
		t.Fatal("expected an error for an ambiguous old_text match")
	}

	got, rerr := os.ReadFile(path)
	if rerr != nil {
		t.Fatal(rerr)
	}
	if string(got) != "port=8080\nport=8080\n" {
		t.Fatalf("file should be untouched on an ambiguous match, got %q", got)
	}
}

func TestEditFileHandlerRejectsMissingOldText(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "config.txt")
	if err := os.WriteFile(path, []byte("port=8080\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tc := newTestToolCtx(t, root)
	_, err := editFileHandler(tc, map[string]any{"path": path, "old_text": "port=9999", "new_text": "port=1234"})
	if err == nil {
		t.Fatal("expected an error when old_text is not found in the file")
	}
}
