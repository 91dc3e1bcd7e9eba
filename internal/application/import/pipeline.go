package importapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/domain/identity"
	csvimport "github.com/erp/bulkops/internal/infrastructure/import"
	"github.com/erp/bulkops/internal/infrastructure/logger"
	"github.com/erp/bulkops/internal/infrastructure/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Authorizer checks that a caller holds every listed action in an organization.
type Authorizer interface {
	Require(ctx context.Context, callerID, orgID uuid.UUID, actions ...identity.Action) (*identity.PermissionSet, error)
}

// ProgressPublisher makes job progress visible outside the calling process.
type ProgressPublisher interface {
	Publish(ctx context.Context, jobID uuid.UUID, progress bulk.ImportProgress) error
}

// PipelineOption configures an ImportPipeline
type PipelineOption func(*ImportPipeline)

// WithHistory records every job in the import history.
func WithHistory(history *HistoryService) PipelineOption {
	return func(p *ImportPipeline) { p.history = history }
}

// WithProgressPublisher pushes progress snapshots after every batch.
func WithProgressPublisher(pub ProgressPublisher) PipelineOption {
	return func(p *ImportPipeline) { p.publisher = pub }
}

// WithActivityLogger sets the audit sink for job completion entries.
func WithActivityLogger(l bulk.ActivityLogger) PipelineOption {
	return func(p *ImportPipeline) { p.activity = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) PipelineOption {
	return func(p *ImportPipeline) { p.metrics = m }
}

// ImportPipeline orchestrates one import: authorize, validate, classify, commit.
// It holds no per-job state and may serve concurrent jobs.
type ImportPipeline struct {
	registry   *bulk.SchemaRegistry
	authorizer Authorizer
	processor  *BatchProcessor
	history    *HistoryService
	publisher  ProgressPublisher
	activity   bulk.ActivityLogger
	metrics    Metrics
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewImportPipeline creates a new import pipeline
func NewImportPipeline(
	registry *bulk.SchemaRegistry,
	authorizer Authorizer,
	processor *BatchProcessor,
	log *zap.Logger,
	opts ...PipelineOption,
) *ImportPipeline {
	if log == nil {
		log = zap.NewNop()
	}
	p := &ImportPipeline{
		registry:   registry,
		authorizer: authorizer,
		processor:  processor,
		activity:   bulk.NopActivityLogger{},
		metrics:    nopMetrics{},
		validate:   validator.New(),
		logger:     log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Import runs req for callerID in orgID.
//
// A malformed request or a denied caller yields a result with a single
// row-0 error together with a non-nil error (wrapping bulk.ErrMalformedRequest
// or an *identity.AuthorizationError); no record is read or written in that
// case. Every other problem is reported inside the result and the error is nil.
func (p *ImportPipeline) Import(
	ctx context.Context,
	orgID, callerID uuid.UUID,
	req bulk.ImportRequest,
	onProgress ProgressFunc,
) (*bulk.ImportResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bulk_import", "import",
		telemetry.WithAttribute("org_id", orgID.String()),
		telemetry.WithAttribute("entity", req.Entity))
	defer span.End()
	began := time.Now()

	schema, err := p.checkRequest(&req)
	if err != nil {
		telemetry.RecordError(span, err)
		return bulk.RejectedImportResult(bulk.RowError{Message: err.Error(), Code: bulk.CodeMalformedRequest}), err
	}

	job := bulk.NewImportJob(orgID, callerID, req)
	ctx = logger.WithContext(ctx, p.logger)
	ctx = logger.WithJobID(logger.WithOrgID(ctx, orgID.String()), job.ID.String())
	ctx = logger.WithCallerID(ctx, callerID.String())
	log := logger.L(ctx).With(zap.String("entity", job.Entity))

	if _, err := p.authorizer.Require(ctx, callerID, orgID, schema.RequiredImportActions()...); err != nil {
		job.Advance(bulk.JobUnauthorized)
		log.Warn("Import denied", zap.Error(err))
		telemetry.RecordError(span, err)
		result := bulk.RejectedImportResult(bulk.RowError{
			Message: fmt.Sprintf("not authorized to import %s", schema.Name),
			Code:    bulk.CodeUnauthorized,
		})
		result.JobID = job.ID
		return result, err
	}

	history := p.beginHistory(ctx, job, log)

	sv, err := csvimport.NewSchemaValidator(schema)
	if err != nil {
		return nil, fmt.Errorf("build validator for %s: %w", schema.Name, err)
	}
	valid, rowErrs, warnings := sv.ValidateAll(req.Records())
	for _, w := range warnings {
		job.Warn(w)
	}
	recordValidationFailures(job, rowErrs)
	job.Advance(bulk.JobValidated)
	job.Advance(bulk.JobClassified)

	log.Info("Import validated",
		zap.Int("rows", job.RawCount),
		zap.Int("valid", len(valid)),
		zap.Int("invalid", job.Progress.Failed),
		zap.Bool("validate_only", job.Options.ValidateOnly))

	progress := func(snap bulk.ImportProgress) {
		if p.publisher != nil {
			if err := p.publisher.Publish(ctx, job.ID, snap); err != nil {
				log.Warn("Failed to publish import progress", zap.Error(err))
			}
		}
		if onProgress != nil {
			onProgress(snap)
		}
	}
	if err := p.processor.Run(ctx, job, schema, valid, progress); err != nil {
		return nil, err
	}

	result := bulk.NewImportResult(job)
	p.finishHistory(ctx, history, result, log)
	p.metrics.RecordImportJob(ctx, job.Entity, result.Success, time.Since(began))

	if !job.Options.ValidateOnly {
		entry := bulk.NewActivityEntry(orgID, callerID, job.Entity, bulk.ActivityImportCompleted,
			fmt.Sprintf("imported %d of %d %s records", result.Successful, result.TotalProcessed, job.Entity))
		entry.Details = map[string]string{
			"job_id":  job.ID.String(),
			"created": fmt.Sprint(result.Created),
			"updated": fmt.Sprint(result.Updated),
			"skipped": fmt.Sprint(result.Skipped),
			"failed":  fmt.Sprint(result.Failed),
		}
		p.activity.Log(ctx, entry)
	}

	log.Info("Import finished",
		zap.Bool("success", result.Success),
		zap.Bool("cancelled", result.Cancelled),
		zap.Int("processed", result.TotalProcessed),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", time.Since(began)))
	if result.Success {
		telemetry.SetOK(span)
	}
	return result, nil
}

// checkRequest validates the top-level request and resolves its schema.
func (p *ImportPipeline) checkRequest(req *bulk.ImportRequest) (*bulk.EntitySchema, error) {
	if err := p.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("%w: %s failed on %s", bulk.ErrMalformedRequest, verrs[0].Field(), verrs[0].Tag())
		}
		return nil, fmt.Errorf("%w: %v", bulk.ErrMalformedRequest, err)
	}
	format, err := bulk.ParseFormat(string(req.Format))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bulk.ErrMalformedRequest, err)
	}
	if !format.CanImport() {
		return nil, fmt.Errorf("%w: format %s cannot be imported", bulk.ErrMalformedRequest, format)
	}
	req.Format = format
	schema, err := p.registry.Get(req.Entity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bulk.ErrMalformedRequest, err)
	}
	return schema, nil
}

// recordValidationFailures counts each invalid row once and keeps all of its errors.
func recordValidationFailures(job *bulk.ImportJob, errs []bulk.RowError) {
	rows := make(map[int]struct{}, len(errs))
	for _, e := range errs {
		rows[e.Row] = struct{}{}
	}
	job.Progress.Processed += len(rows)
	job.Progress.Failed += len(rows)
	job.Progress.Errors = append(job.Progress.Errors, errs...)
}

func (p *ImportPipeline) beginHistory(ctx context.Context, job *bulk.ImportJob, log *logger.ContextLogger) *bulk.ImportHistory {
	if p.history == nil {
		return nil
	}
	h, err := p.history.Begin(ctx, job)
	if err != nil {
		log.Warn("Failed to record import history", zap.Error(err))
		return nil
	}
	return h
}

func (p *ImportPipeline) finishHistory(ctx context.Context, h *bulk.ImportHistory, result *bulk.ImportResult, log *logger.ContextLogger) {
	if h == nil {
		return
	}
	if err := p.history.Complete(ctx, h, result); err != nil {
		log.Warn("Failed to complete import history", zap.Error(err))
	}
}
