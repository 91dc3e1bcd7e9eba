package telemetry_test

import (
	"context"
	"testing"
	"time"

	exportapp "github.com/erp/bulkops/internal/application/export"
	importapp "github.com/erp/bulkops/internal/application/import"
	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/infrastructure/config"
	"github.com/erp/bulkops/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

var (
	_ importapp.Metrics = (*telemetry.BulkMetrics)(nil)
	_ exportapp.Metrics = (*telemetry.BulkMetrics)(nil)
)

func newManualProvider(t *testing.T) (*telemetry.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp, err := telemetry.NewMeterProviderWithReader("bulkops-test", reader, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp, err := telemetry.NewMeterProvider(context.Background(), config.TelemetryConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestCounterAndHistogram(t *testing.T) {
	mp, reader := newManualProvider(t)
	meter := mp.Meter("test")
	ctx := context.Background()

	counter, err := telemetry.NewCounter(meter, "test_total", "test counter", "{op}")
	require.NoError(t, err)
	counter.Inc(ctx, telemetry.AttrEntity.String("project"))
	counter.Add(ctx, 4, telemetry.AttrEntity.String("project"))

	hist, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:       "test_duration_seconds",
		Unit:       "s",
		Boundaries: telemetry.DBDurationBuckets,
	})
	require.NoError(t, err)
	hist.RecordDuration(ctx, 20*time.Millisecond)
	hist.Record(ctx, 2)

	metrics := collect(t, reader)
	assert.Equal(t, int64(5), sumFor(t, metrics["test_total"], telemetry.AttrEntity.String("project")))

	h, ok := metrics["test_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, h.DataPoints, 1)
	assert.Equal(t, uint64(2), h.DataPoints[0].Count)
	assert.Equal(t, telemetry.DBDurationBuckets, h.DataPoints[0].Bounds)
}

func TestBulkMetrics(t *testing.T) {
	mp, reader := newManualProvider(t)
	m, err := telemetry.NewBulkMetrics(mp.Meter(telemetry.TracerName))
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordImportOutcome(ctx, "project", importapp.OutcomeCreated, 3)
	m.RecordImportOutcome(ctx, "project", importapp.OutcomeCreated, 2)
	m.RecordImportOutcome(ctx, "project", importapp.OutcomeFailed, 1)
	m.RecordImportOutcome(ctx, "project", importapp.OutcomeSkipped, 0)
	m.RecordImportBatch(ctx, "project", 5, 40*time.Millisecond)
	m.RecordImportJob(ctx, "project", false, time.Second)
	m.RecordExport(ctx, "project", bulk.FormatCSV, 120, true, 300*time.Millisecond)

	metrics := collect(t, reader)

	records := metrics["bulk_import_records_total"]
	assert.Equal(t, int64(5), sumFor(t, records,
		telemetry.AttrEntity.String("project"), telemetry.AttrOutcome.String(importapp.OutcomeCreated)))
	assert.Equal(t, int64(1), sumFor(t, records,
		telemetry.AttrEntity.String("project"), telemetry.AttrOutcome.String(importapp.OutcomeFailed)))
	assert.Zero(t, sumFor(t, records,
		telemetry.AttrEntity.String("project"), telemetry.AttrOutcome.String(importapp.OutcomeSkipped)))

	assert.Equal(t, int64(1), sumFor(t, metrics["bulk_import_jobs_total"],
		telemetry.AttrEntity.String("project"), telemetry.AttrSuccess.Bool(false)))
	assert.Equal(t, int64(1), sumFor(t, metrics["bulk_export_jobs_total"],
		telemetry.AttrEntity.String("project"),
		telemetry.AttrFormat.String(string(bulk.FormatCSV)),
		telemetry.AttrSuccess.Bool(true)))

	size, ok := metrics["bulk_import_batch_size"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, size.DataPoints, 1)
	assert.Equal(t, float64(5), size.DataPoints[0].Sum)

	exported, ok := metrics["bulk_export_records"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, exported.DataPoints, 1)
	assert.Equal(t, float64(120), exported.DataPoints[0].Sum)
}
