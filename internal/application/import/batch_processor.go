package importapp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erp/bulkops/internal/domain/bulk"
	csvimport "github.com/erp/bulkops/internal/infrastructure/import"
	"github.com/erp/bulkops/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Record outcomes reported to metrics
const (
	OutcomeCreated  = "created"
	OutcomeUpdated  = "updated"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// ProgressFunc receives a progress snapshot after every batch.
type ProgressFunc func(bulk.ImportProgress)

// Metrics receives import measurements. Implemented by telemetry.BulkMetrics.
type Metrics interface {
	RecordImportOutcome(ctx context.Context, entity, outcome string, n int)
	RecordImportBatch(ctx context.Context, entity string, size int, d time.Duration)
	RecordImportJob(ctx context.Context, entity string, success bool, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordImportOutcome(context.Context, string, string, int)      {}
func (nopMetrics) RecordImportBatch(context.Context, string, int, time.Duration) {}
func (nopMetrics) RecordImportJob(context.Context, string, bool, time.Duration)  {}

// ProcessorConfig tunes the batch processor
type ProcessorConfig struct {
	// Workers bounds concurrent writes within one batch.
	Workers int
	// CommitRate caps writes per second across a job; 0 disables throttling.
	CommitRate float64
	// MaxBatchSize caps the requested batch size.
	MaxBatchSize int
	// MaxErrors caps the error list of a result.
	MaxErrors int
}

// DefaultProcessorConfig returns the default processor configuration
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		Workers:      8,
		MaxBatchSize: 1000,
		MaxErrors:    csvimport.DefaultMaxErrors,
	}
}

// BatchProcessor commits classified records in fixed-size batches.
// Batches run sequentially; records inside a batch are written concurrently
// on a bounded pool. A failing record never aborts its siblings.
type BatchProcessor struct {
	store    bulk.RecordStore
	activity bulk.ActivityLogger
	metrics  Metrics
	cfg      ProcessorConfig
	logger   *zap.Logger
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(
	store bulk.RecordStore,
	activity bulk.ActivityLogger,
	metrics Metrics,
	cfg ProcessorConfig,
	logger *zap.Logger,
) *BatchProcessor {
	if activity == nil {
		activity = bulk.NopActivityLogger{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultProcessorConfig().Workers
	}
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = csvimport.DefaultMaxErrors
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchProcessor{
		store:    store,
		activity: activity,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
	}
}

// BatchSize resolves the effective batch size of job.
func (p *BatchProcessor) BatchSize(job *bulk.ImportJob) int {
	size := job.Options.BatchSize
	if size <= 0 {
		size = bulk.DefaultBatchSize
	}
	if p.cfg.MaxBatchSize > 0 && size > p.cfg.MaxBatchSize {
		size = p.cfg.MaxBatchSize
	}
	return size
}

// tally is the mutex-guarded progress of one run.
type tally struct {
	mu     sync.Mutex
	job    *bulk.ImportJob
	errors *csvimport.ErrorCollection
}

func newTally(job *bulk.ImportJob, maxErrors int) *tally {
	t := &tally{job: job, errors: csvimport.NewErrorCollection(maxErrors)}
	t.errors.Add(job.Progress.Errors...)
	job.Progress.Errors = t.errors.Errors()
	return t
}

func (t *tally) succeed(outcome string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := &t.job.Progress
	p.Processed++
	p.Successful++
	switch outcome {
	case OutcomeCreated:
		p.Created++
	case OutcomeUpdated:
		p.Updated++
	default:
		p.Skipped++
	}
}

func (t *tally) fail(err bulk.RowError) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.job.Progress.Processed++
	t.job.Progress.Failed++
	t.errors.Add(err)
	t.job.Progress.Errors = t.errors.Errors()
}

func (t *tally) snapshot() bulk.ImportProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.job.Progress.Snapshot()
}

func (t *tally) finish() {
	if t.errors.IsTruncated() {
		t.job.Warn(t.errors.TruncationWarning())
	}
}

// Run classifies and commits records into job.Progress. Records must be in input order.
// Cancellation of ctx is honoured between batches only; a started batch always completes.
// onProgress is invoked on the calling goroutine after every batch.
func (p *BatchProcessor) Run(
	ctx context.Context,
	job *bulk.ImportJob,
	schema *bulk.EntitySchema,
	records []bulk.NormalizedRecord,
	onProgress ProgressFunc,
) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "bulk_import", "commit",
		telemetry.WithAttribute("entity", job.Entity),
		telemetry.WithAttribute("records", len(records)))
	defer span.End()

	t := newTally(job, p.cfg.MaxErrors)
	defer t.finish()

	resolver := NewDeduplicationResolver(schema, job.Options)
	var limiter *rate.Limiter
	if p.cfg.CommitRate > 0 && !job.Options.ValidateOnly {
		limiter = rate.NewLimiter(rate.Limit(p.cfg.CommitRate), p.cfg.Workers)
	}

	size := p.BatchSize(job)
	job.Advance(bulk.JobCommitting)
	for start := 0; start < len(records); start += size {
		if err := ctx.Err(); err != nil {
			p.logger.Info("Import cancelled between batches",
				zap.String("job_id", job.ID.String()),
				zap.Int("committed_batches", start/size),
				zap.Error(err))
			job.Advance(bulk.JobCancelled)
			telemetry.AddEvent(span, "cancelled", "remaining", len(records)-start)
			return nil
		}

		end := min(start+size, len(records))
		began := time.Now()
		p.runBatch(context.WithoutCancel(ctx), job, resolver, limiter, schema, records[start:end], t)
		p.metrics.RecordImportBatch(ctx, job.Entity, end-start, time.Since(began))

		if onProgress != nil {
			onProgress(t.snapshot())
		}
	}
	job.Advance(bulk.JobCompleted)
	telemetry.SetOK(span)
	return nil
}

func (p *BatchProcessor) runBatch(
	ctx context.Context,
	job *bulk.ImportJob,
	resolver *DeduplicationResolver,
	limiter *rate.Limiter,
	schema *bulk.EntitySchema,
	batch []bulk.NormalizedRecord,
	t *tally,
) {
	existing, err := p.store.ExistingKeys(ctx, job.OrgID, job.Entity, batchKeys(batch))
	if err != nil {
		p.logger.Error("Existing key lookup failed, failing batch",
			zap.String("job_id", job.ID.String()),
			zap.Int("first_row", batch[0].Row),
			zap.Int("size", len(batch)),
			zap.Error(err))
		msg := fmt.Sprintf("record store unavailable: %v", err)
		for _, rec := range batch {
			t.fail(bulk.RowError{Row: rec.Row, Message: msg, Code: bulk.CodeStoreUnavailable})
		}
		p.metrics.RecordImportOutcome(ctx, job.Entity, OutcomeFailed, len(batch))
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Workers)
	for _, c := range resolver.Classify(batch, existing) {
		switch c.Disposition {
		case bulk.DispositionRejectDuplicate:
			t.fail(*c.Reason)
			p.metrics.RecordImportOutcome(ctx, job.Entity, OutcomeRejected, 1)
			continue
		case bulk.DispositionSkipDuplicate:
			t.succeed(OutcomeSkipped)
			p.metrics.RecordImportOutcome(ctx, job.Entity, OutcomeSkipped, 1)
			continue
		}
		if job.Options.ValidateOnly {
			t.succeed(OutcomeSkipped)
			continue
		}

		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					t.fail(bulk.RowError{Row: c.Record.Row, Message: err.Error(), Code: bulk.CodeCommitFailed})
					return nil
				}
			}
			p.commit(ctx, job, schema, c, t)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *BatchProcessor) commit(ctx context.Context, job *bulk.ImportJob, schema *bulk.EntitySchema, c bulk.Classified, t *tally) {
	rec := schema.ToRecord(job.OrgID, job.CallerID, c.Record)

	var (
		err     error
		outcome string
		action  bulk.ActivityAction
	)
	if c.Disposition == bulk.DispositionUpdate {
		rec.ID = c.ExistingID
		err = p.store.Update(ctx, rec)
		outcome, action = OutcomeUpdated, bulk.ActivityRecordUpdated
	} else {
		err = p.store.Create(ctx, rec)
		outcome, action = OutcomeCreated, bulk.ActivityRecordCreated
	}

	if err != nil {
		t.fail(commitError(schema, c.Record, err))
		p.metrics.RecordImportOutcome(ctx, job.Entity, OutcomeFailed, 1)
		p.logger.Debug("Record commit failed",
			zap.String("job_id", job.ID.String()),
			zap.Int("row", c.Record.Row),
			zap.Error(err))
		return
	}

	t.succeed(outcome)
	p.metrics.RecordImportOutcome(ctx, job.Entity, outcome, 1)

	entry := bulk.NewActivityEntry(job.OrgID, job.CallerID, job.Entity, action,
		fmt.Sprintf("%s %s via import", outcome, rec.Key))
	id := rec.ID
	entry.RecordID = &id
	entry.Details = map[string]string{"job_id": job.ID.String(), "row": fmt.Sprint(c.Record.Row)}
	p.activity.Log(ctx, entry)
}

// commitError maps a store write failure onto a row error.
func commitError(schema *bulk.EntitySchema, rec bulk.NormalizedRecord, err error) bulk.RowError {
	switch {
	case errors.Is(err, bulk.ErrConstraintViolation):
		label := schema.NaturalKey
		if rule, ok := schema.FieldRule(schema.NaturalKey); ok {
			label = rule.Label
		}
		return bulk.RowError{
			Row:     rec.Row,
			Field:   schema.NaturalKey,
			Message: fmt.Sprintf("%s %q already exists", label, rec.Fields[schema.NaturalKey].Text()),
			Code:    bulk.CodeDuplicateInStore,
		}
	case errors.Is(err, bulk.ErrStoreUnavailable):
		return bulk.RowError{Row: rec.Row, Message: fmt.Sprintf("record store unavailable: %v", err), Code: bulk.CodeStoreUnavailable}
	}
	return bulk.RowError{Row: rec.Row, Message: fmt.Sprintf("commit failed: %v", err), Code: bulk.CodeCommitFailed}
}
