package tokenbudget

import (
	"strings"
	"testing"
)

func TestFitsSmallPayload(t *testing.T) {
	b := New(25000)
	ok, n, err := b.Fits("hello world")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || n == 0 {
		t.Fatalf("expected small payload to fit, got ok=%v n=%d", ok, n)
	}
}

func TestPackListReturnsFullListWhenSmall(t *testing.T) {
	b := New(25000)
	items := []string{"a", "b", "c"}
	render := func(s []string) string { return strings.Join(s, ",") }

	n, truncated, err := b.PackList(items, render)
	if err != nil {
		t.Fatal(err)
	}
	if truncated || n != len(items) {
		t.Fatalf("expected full list untruncated, got n=%d truncated=%v", n, truncated)
	}
}

func TestPackListTruncatesOversizeList(t *testing.T) {
	b := New(600) // cap - FramingReserve(500) leaves only 100 tokens of budget
	items := make([]string, 0, 2000)
	for i := 0; i < 2000; i++ {
		items = append(items, "this is a moderately long repeated line of filler text")
	}
	render := func(s []string) string { return strings.Join(s, "\n") }

	n, truncated, err := b.PackList(items, render)
	if err != nil {
		t.Fatal(err)
	}
	if !truncated || n == 0 || n >= len(items) {
		t.Fatalf("expected a partial prefix, got n=%d truncated=%v", n, truncated)
	}
}

func TestTruncateBlobAddsVisibleMarker(t *testing.T) {
	b := New(50)
	blob := strings.Repeat("word ", 5000)

	out, truncated, err := b.TruncateBlob(blob)
	if err != nil {
		t.Fatal(err)
	}
	if !truncated {
		t.Fatal("expected truncation for an oversize blob")
	}
	if !strings.Contains(out, "truncated, original size") {
		t.Fatalf("expected visible truncation marker, got %q", out)
	}
}

func TestTruncateBlobNoopWhenFits(t *testing.T) {
	b := New(25000)
	out, truncated, err := b.TruncateBlob("short")
	if err != nil {
		t.Fatal(err)
	}
	if truncated || out != "short" {
		t.Fatalf("expected no-op for a payload that fits, got %q truncated=%v", out, truncated)
	}
}
