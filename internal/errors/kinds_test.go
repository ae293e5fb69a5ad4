package errors

import (
	"errors"
	"testing"
)

func TestKindJSONRPCCodeUnique(t *testing.T) {
	kinds := []Kind{
		InvalidArguments, NotFound, PermissionDenied, ExecutionFailed,
		Cancelled, OutputTooLarge, CursorMismatch, Gone, Internal,
	}
	seen := map[int]Kind{}
	for _, k := range kinds {
		code := k.JSONRPCCode()
		if code >= -32099 && code <= -32000 && (code == -32700 || code == -32600) {
			t.Fatalf("%s collides with a reserved transport code", k)
		}
		if other, ok := seen[code]; ok {
			t.Fatalf("%s and %s share JSON-RPC code %d", k, other, code)
		}
		seen[code] = k
	}
}

func TestCoreErrorMessage(t *testing.T) {
	err := New(PermissionDenied, "path not allowed", "/etc/passwd")
	if got := err.Error(); got == "" {
		t.Fatal("expected non-empty error string")
	}
}

func TestAsCoreError(t *testing.T) {
	ce := New(NotFound, "unknown tool", "frobnicate")
	wrapped := errors.New("boom")
	outer := Wrap(ExecutionFailed, wrapped, "spawn failed", "")

	if _, ok := AsCoreError(ce); !ok {
		t.Fatal("expected ce to convert to itself")
	}
	got, ok := AsCoreError(outer)
	if !ok || got.Kind != ExecutionFailed {
		t.Fatalf("expected ExecutionFailed, got %+v ok=%v", got, ok)
	}
	if !errors.Is(outer, wrapped) {
		t.Fatal("expected Unwrap to expose the original cause")
	}
}

func TestToCoreErrorClassifiesUnknown(t *testing.T) {
	plain := errors.New("something broke")
	ce := ToCoreError(plain, "corr-1")
	if ce.Kind != Internal {
		t.Fatalf("expected Internal, got %s", ce.Kind)
	}
	if ce.Detail != "corr-1" {
		t.Fatalf("expected correlation id in detail, got %q", ce.Detail)
	}

	already := New(Gone, "session reaped", "sess-1")
	if got := ToCoreError(already, "corr-2"); got.Kind != Gone {
		t.Fatalf("expected ToCoreError to pass through existing CoreError kind, got %s", got.Kind)
	}
}
