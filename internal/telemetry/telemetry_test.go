package telemetry

import (
	"context"
	"strings"
	"testing"
)

func TestRecordInvocationExposesPrometheusMetrics(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Shutdown(context.Background())

	m.InflightDelta(context.Background(), 1)
	m.RecordInvocation(context.Background(), "read_file", "success", 0.05)
	m.InflightDelta(context.Background(), -1)

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	var found bool
	for _, f := range families {
		if strings.Contains(f.GetName(), "mcpcore_tool_invocations_total") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected mcpcore_tool_invocations_total among gathered families, got %d families", len(families))
	}
}
