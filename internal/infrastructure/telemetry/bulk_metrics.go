package telemetry

import (
	"context"
	"time"

	"github.com/erp/bulkops/internal/domain/bulk"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BulkMetrics records import and export measurements. It satisfies the
// Metrics interfaces of both bulk pipelines.
type BulkMetrics struct {
	importRecords  *Counter
	importBatch    *Histogram
	importBatchLen *Histogram
	importJobs     *Counter
	importJobTime  *Histogram
	exportJobs     *Counter
	exportRecords  *Histogram
	exportJobTime  *Histogram
}

// NewBulkMetrics creates the bulk instruments on meter.
func NewBulkMetrics(meter metric.Meter) (*BulkMetrics, error) {
	m := &BulkMetrics{}
	var err error

	if m.importRecords, err = NewCounter(meter,
		"bulk_import_records_total", "Imported rows by outcome", "{record}"); err != nil {
		return nil, err
	}
	if m.importBatch, err = NewHistogram(meter, HistogramOpts{
		Name:        "bulk_import_batch_duration_seconds",
		Description: "Time spent committing one import batch",
		Unit:        "s",
		Boundaries:  BatchDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.importBatchLen, err = NewHistogram(meter, HistogramOpts{
		Name:        "bulk_import_batch_size",
		Description: "Rows per committed import batch",
		Unit:        "{record}",
		Boundaries:  RecordCountBuckets,
	}); err != nil {
		return nil, err
	}
	if m.importJobs, err = NewCounter(meter,
		"bulk_import_jobs_total", "Finished import jobs", "{job}"); err != nil {
		return nil, err
	}
	if m.importJobTime, err = NewHistogram(meter, HistogramOpts{
		Name:        "bulk_import_job_duration_seconds",
		Description: "End-to-end import job latency",
		Unit:        "s",
		Boundaries:  JobDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.exportJobs, err = NewCounter(meter,
		"bulk_export_jobs_total", "Finished export jobs", "{job}"); err != nil {
		return nil, err
	}
	if m.exportRecords, err = NewHistogram(meter, HistogramOpts{
		Name:        "bulk_export_records",
		Description: "Records written per export",
		Unit:        "{record}",
		Boundaries:  RecordCountBuckets,
	}); err != nil {
		return nil, err
	}
	if m.exportJobTime, err = NewHistogram(meter, HistogramOpts{
		Name:        "bulk_export_job_duration_seconds",
		Description: "End-to-end export job latency",
		Unit:        "s",
		Boundaries:  JobDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordImportOutcome counts n rows that ended with outcome.
func (m *BulkMetrics) RecordImportOutcome(ctx context.Context, entity, outcome string, n int) {
	if n <= 0 {
		return
	}
	m.importRecords.Add(ctx, int64(n), AttrEntity.String(entity), AttrOutcome.String(outcome))
}

// RecordImportBatch records one committed batch.
func (m *BulkMetrics) RecordImportBatch(ctx context.Context, entity string, size int, d time.Duration) {
	m.importBatch.RecordDuration(ctx, d, AttrEntity.String(entity))
	m.importBatchLen.Record(ctx, float64(size), AttrEntity.String(entity))
}

// RecordImportJob records a finished import job.
func (m *BulkMetrics) RecordImportJob(ctx context.Context, entity string, success bool, d time.Duration) {
	m.importJobs.Inc(ctx, AttrEntity.String(entity), AttrSuccess.Bool(success))
	m.importJobTime.RecordDuration(ctx, d, AttrEntity.String(entity))
}

// RecordExport records a finished export job.
func (m *BulkMetrics) RecordExport(ctx context.Context, entity string, format bulk.Format, records int, success bool, d time.Duration) {
	attrs := []attribute.KeyValue{AttrEntity.String(entity), AttrFormat.String(string(format))}
	m.exportJobs.Inc(ctx, append(attrs, AttrSuccess.Bool(success))...)
	m.exportRecords.Record(ctx, float64(records), attrs...)
	m.exportJobTime.RecordDuration(ctx, d, attrs...)
}
