package telemetry

import (
	"context"
	"testing"

	"github.com/erp/bulkops/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zaptest"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), config.TelemetryConfig{
		Enabled:     false,
		ServiceName: "bulkops-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewTracerProvider_Enabled(t *testing.T) {
	if testing.Short() {
		t.Skip("requires an OTLP collector")
	}

	tp, err := NewTracerProvider(context.Background(), config.TelemetryConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     1,
		ServiceName:       "bulkops-test",
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, tp.IsEnabled())
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1, sdktrace.AlwaysSample().Description()},
		{1.5, sdktrace.AlwaysSample().Description()},
		{0, sdktrace.NeverSample().Description()},
		{0.25, sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.25)).Description()},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, samplerFor(tt.ratio).Description(), "ratio %v", tt.ratio)
	}
}

func TestTraceExporterOptions(t *testing.T) {
	secure := traceExporterOptions(config.TelemetryConfig{CollectorEndpoint: "otel:4317"})
	insecure := traceExporterOptions(config.TelemetryConfig{CollectorEndpoint: "otel:4317", Insecure: true})
	assert.Len(t, secure, 1)
	assert.Len(t, insecure, 2)
}

func TestServiceResource(t *testing.T) {
	res, err := serviceResource("bulkops-test")
	require.NoError(t, err)

	var found bool
	for _, kv := range res.Attributes() {
		if kv.Key == "service.name" {
			found = true
			assert.Equal(t, "bulkops-test", kv.Value.AsString())
		}
	}
	assert.True(t, found)
}
