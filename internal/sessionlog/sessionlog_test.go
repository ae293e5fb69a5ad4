package sessionlog

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestAppendWritesNDJSON(t *testing.T) {
	dir := t.TempDir()
	log, err := New(dir, 4242, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	log.Append(Entry{InvocationID: "inv-1", ToolName: "read_file", ArgumentDigest: "abc", OutcomeKind: "success", Phase: "end"})
	log.Append(Entry{InvocationID: "inv-2", ToolName: "shell", ArgumentDigest: "def", OutcomeKind: "failed", Phase: "end"})

	path := filepath.Join(dir, "4242.jsonl")
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lines := 0
	for scanner.Scan() {
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 ndjson lines, got %d", lines)
	}
}

func TestRotateOnThreshold(t *testing.T) {
	dir := t.TempDir()
	log, err := New(dir, 1, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()
	log.threshold = 1 // force rotation on the very next append

	log.Append(Entry{InvocationID: "a", ToolName: "t", OutcomeKind: "success", Phase: "end"})
	log.Append(Entry{InvocationID: "b", ToolName: "t", OutcomeKind: "success", Phase: "end"})

	if _, err := os.Stat(filepath.Join(dir, "1.jsonl.1")); err != nil {
		t.Fatalf("expected rotated file to exist: %v", err)
	}
}
