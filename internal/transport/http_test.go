package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hanzoai/mcpcore/internal/telemetry"
)

func TestHTTPHandlesRPCAndHealthz(t *testing.T) {
	d := newEchoDispatcher(t)
	handler := NewHTTP(d, nil, zerolog.Nop())
	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	rpcResp, err := http.Post(srv.URL+"/rpc", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	if err != nil {
		t.Fatalf("POST /rpc: %v", err)
	}
	defer rpcResp.Body.Close()
	if rpcResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", rpcResp.StatusCode)
	}
}

func TestHTTPExposesMetricsWhenConfigured(t *testing.T) {
	d := newEchoDispatcher(t)
	m, err := telemetry.New()
	if err != nil {
		t.Fatalf("telemetry.New: %v", err)
	}
	handler := NewHTTP(d, m, zerolog.Nop())
	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
