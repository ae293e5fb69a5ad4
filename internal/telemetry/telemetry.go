// Package telemetry wires the server's ambient invocation counters and
// duration histograms into an OpenTelemetry metric provider, exported in
// Prometheus exposition format on the SSE transport's /metrics endpoint.
// Stdio mode never starts this provider, since it has no HTTP surface to
// serve it on.
package telemetry

import (
	"context"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the instruments every invocation records against.
type Metrics struct {
	provider    *sdkmetric.MeterProvider
	registry    *promclient.Registry
	invocations metric.Int64Counter
	duration    metric.Float64Histogram
	inflight    metric.Int64UpDownCounter
}

// New builds a Metrics instance backed by a fresh Prometheus registry.
func New() (*Metrics, error) {
	reg := promclient.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("mcpcore")

	invocations, err := meter.Int64Counter("mcpcore_tool_invocations_total",
		metric.WithDescription("Total tools/call invocations, by outcome."))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("mcpcore_tool_invocation_duration_seconds",
		metric.WithDescription("Tool invocation wall-clock duration."))
	if err != nil {
		return nil, err
	}
	inflight, err := meter.Int64UpDownCounter("mcpcore_tool_invocations_inflight",
		metric.WithDescription("Currently executing tool invocations."))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		provider:    provider,
		registry:    reg,
		invocations: invocations,
		duration:    duration,
		inflight:    inflight,
	}, nil
}

// Registry exposes the underlying Prometheus registry for the transport
// layer's /metrics handler.
func (m *Metrics) Registry() *promclient.Registry {
	return m.registry
}

// RecordInvocation records one completed invocation's outcome and
// duration in seconds.
func (m *Metrics) RecordInvocation(ctx context.Context, toolName, outcome string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("tool", toolName),
		attribute.String("outcome", outcome),
	)
	m.invocations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, seconds, attrs)
}

// InflightDelta adjusts the in-flight gauge by delta (+1 on start, -1 on
// completion).
func (m *Metrics) InflightDelta(ctx context.Context, delta int64) {
	m.inflight.Add(ctx, delta)
}

// Shutdown flushes and stops the underlying meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
