package exportapp

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/domain/identity"
	"github.com/erp/bulkops/internal/infrastructure/logger"
	"github.com/erp/bulkops/internal/infrastructure/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NoMatchesMessage is the error of an export whose filters matched nothing.
const NoMatchesMessage = "no records matched the export filters"

// Authorizer checks that a caller holds every listed action in an organization.
type Authorizer interface {
	Require(ctx context.Context, callerID, orgID uuid.UUID, actions ...identity.Action) (*identity.PermissionSet, error)
}

// ObjectStorage keeps large export payloads and hands out download links.
type ObjectStorage interface {
	// Upload stores data under key and returns a time-limited download URL.
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Metrics records export outcomes.
type Metrics interface {
	RecordExport(ctx context.Context, entity string, format bulk.Format, records int, success bool, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordExport(context.Context, string, bulk.Format, int, bool, time.Duration) {}

// Config holds export limits.
type Config struct {
	// Workers bounds concurrent relation lookups.
	Workers int
	// MaxRecords caps the rows read from the store; 0 means no cap.
	MaxRecords int
	// InlineMaxBytes is the largest payload returned inline when object storage is configured.
	InlineMaxBytes int
}

// DefaultConfig returns the default export limits
func DefaultConfig() Config {
	return Config{Workers: 4, MaxRecords: 0, InlineMaxBytes: 5 << 20}
}

// PipelineOption configures an ExportPipeline
type PipelineOption func(*ExportPipeline)

// WithObjectStorage delivers payloads above the inline limit by URL.
func WithObjectStorage(s ObjectStorage) PipelineOption {
	return func(p *ExportPipeline) { p.storage = s }
}

// WithDocumentRenderer enables native document exports.
func WithDocumentRenderer(r DocumentRenderer) PipelineOption {
	return func(p *ExportPipeline) { p.renderer = r }
}

// WithActivityLogger sets the audit sink for completed exports.
func WithActivityLogger(l bulk.ActivityLogger) PipelineOption {
	return func(p *ExportPipeline) { p.activity = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) PipelineOption {
	return func(p *ExportPipeline) { p.metrics = m }
}

// WithConfig overrides the default limits.
func WithConfig(cfg Config) PipelineOption {
	return func(p *ExportPipeline) { p.cfg = cfg }
}

// ExportPipeline reads, projects and serializes records for one caller.
type ExportPipeline struct {
	registry   *bulk.SchemaRegistry
	authorizer Authorizer
	store      bulk.RecordStore
	storage    ObjectStorage
	renderer   DocumentRenderer
	activity   bulk.ActivityLogger
	metrics    Metrics
	cfg        Config
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewExportPipeline creates a new export pipeline
func NewExportPipeline(
	registry *bulk.SchemaRegistry,
	authorizer Authorizer,
	store bulk.RecordStore,
	log *zap.Logger,
	opts ...PipelineOption,
) *ExportPipeline {
	if log == nil {
		log = zap.NewNop()
	}
	p := &ExportPipeline{
		registry:   registry,
		authorizer: authorizer,
		store:      store,
		activity:   bulk.NopActivityLogger{},
		metrics:    nopMetrics{},
		cfg:        DefaultConfig(),
		validate:   validator.New(),
		logger:     log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Export runs req for callerID in orgID.
//
// A malformed request or a denied caller yields a failed result together with
// a non-nil error; the store is not queried in that case. Store and encoding
// failures, as well as an empty match, are reported in the result only.
func (p *ExportPipeline) Export(ctx context.Context, orgID, callerID uuid.UUID, req bulk.ExportRequest) (*bulk.ExportResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bulk_export", "export",
		telemetry.WithAttribute("org_id", orgID.String()),
		telemetry.WithAttribute("entity", req.Entity))
	defer span.End()
	began := time.Now()

	schema, err := p.checkRequest(&req)
	if err != nil {
		telemetry.RecordError(span, err)
		return bulk.FailedExport(req.Filename, req.Format, err.Error()), err
	}

	ctx = logger.WithContext(ctx, p.logger)
	ctx = logger.WithCallerID(logger.WithOrgID(ctx, orgID.String()), callerID.String())
	log := logger.L(ctx).With(zap.String("entity", schema.Name), zap.String("format", string(req.Format)))

	if _, err := p.authorizer.Require(ctx, callerID, orgID, schema.RequiredExportActions()...); err != nil {
		log.Warn("Export denied", zap.Error(err))
		telemetry.RecordError(span, err)
		return bulk.FailedExport(req.Filename, req.Format, fmt.Sprintf("not authorized to export %s", schema.Name)), err
	}

	result := p.run(ctx, orgID, schema, req, log)
	p.metrics.RecordExport(ctx, schema.Name, result.Format, result.RecordCount, result.Success, time.Since(began))
	if !result.Success {
		log.Warn("Export failed", zap.String("reason", result.Error))
		return result, nil
	}

	entry := bulk.NewActivityEntry(orgID, callerID, schema.Name, bulk.ActivityExportCompleted,
		fmt.Sprintf("exported %d %s records", result.RecordCount, schema.Name))
	entry.Details = map[string]string{
		"format":   string(result.Format),
		"filename": result.Filename,
		"records":  fmt.Sprint(result.RecordCount),
	}
	p.activity.Log(ctx, entry)

	log.Info("Export finished",
		zap.Int("records", result.RecordCount),
		zap.String("filename", result.Filename),
		zap.Bool("degraded", result.Degraded),
		zap.Bool("by_url", result.URL != ""),
		zap.Duration("elapsed", time.Since(began)))
	telemetry.SetOK(span)
	return result, nil
}

func (p *ExportPipeline) run(ctx context.Context, orgID uuid.UUID, schema *bulk.EntitySchema, req bulk.ExportRequest, log *logger.ContextLogger) *bulk.ExportResult {
	proj := newProjection(schema, req)
	for _, w := range proj.warnings {
		log.Warn("Export field ignored", zap.String("warning", w))
	}

	records, err := p.store.Query(ctx, orgID, bulk.RecordQuery{
		Entity: schema.Name,
		Filter: req.Filters,
		Limit:  p.cfg.MaxRecords,
	})
	if err != nil {
		return bulk.FailedExport(req.Filename, req.Format, fmt.Sprintf("query %s: %v", schema.Name, err))
	}
	if len(records) == 0 {
		return bulk.FailedExport(req.Filename, req.Format, NoMatchesMessage)
	}

	warnings := append([]string(nil), proj.warnings...)
	if p.cfg.MaxRecords > 0 && len(records) >= p.cfg.MaxRecords {
		warnings = append(warnings, fmt.Sprintf("export truncated at %d records", p.cfg.MaxRecords))
	}

	var loaded map[string]map[uuid.UUID][]bulk.RelationSummary
	if req.IncludeRelations && len(schema.Relations) > 0 {
		loaded, err = expandRelations(ctx, p.store, orgID, schema, records, p.cfg.Workers)
		if err != nil {
			return bulk.FailedExport(req.Filename, req.Format, fmt.Sprintf("expand relations: %v", err))
		}
	}

	rows := make([]row, len(records))
	for i, rec := range records {
		rows[i] = proj.apply(rec)
		if loaded != nil {
			attachRelations(&rows[i], schema, rec.ID, loaded)
		}
	}

	out, err := p.serialize(ctx, schema.Label, req.Format, rows)
	if err != nil {
		return bulk.FailedExport(req.Filename, req.Format, fmt.Sprintf("serialize %s: %v", req.Format, err))
	}
	if out.degraded {
		warnings = append(warnings, fmt.Sprintf("%s output is not available, exported as %s", req.Format, out.format))
	}

	result := &bulk.ExportResult{
		Success:     true,
		RecordCount: len(records),
		Filename:    exportFilename(req.Filename, schema.Name, out.format),
		Format:      out.format,
		ContentType: out.format.ContentType(),
		Degraded:    out.degraded,
		Warnings:    warnings,
	}
	p.deliver(ctx, orgID, result, out.data, log)
	return result
}

// deliver attaches the payload inline or, when it is too large and storage
// is configured, as a download URL. A failed upload falls back to inline data.
func (p *ExportPipeline) deliver(ctx context.Context, orgID uuid.UUID, result *bulk.ExportResult, data []byte, log *logger.ContextLogger) {
	if p.storage == nil || len(data) <= p.cfg.InlineMaxBytes {
		result.Data = data
		return
	}
	key := path.Join("exports", orgID.String(), uuid.NewString(), result.Filename)
	url, err := p.storage.Upload(ctx, key, result.ContentType, data)
	if err != nil {
		log.Warn("Failed to upload export, returning it inline", zap.String("key", key), zap.Error(err))
		result.Data = data
		return
	}
	result.URL = url
}

// checkRequest validates the top-level request and resolves its schema.
func (p *ExportPipeline) checkRequest(req *bulk.ExportRequest) (*bulk.EntitySchema, error) {
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
	req.Format = format
	if f := req.Filters; f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return nil, fmt.Errorf("%w: dateTo precedes dateFrom", bulk.ErrMalformedRequest)
	}
	schema, err := p.registry.Get(req.Entity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bulk.ErrMalformedRequest, err)
	}
	if proj := newProjection(schema, *req); len(proj.fields) == 0 {
		return nil, fmt.Errorf("%w: no known fields requested", bulk.ErrMalformedRequest)
	}
	return schema, nil
}

// exportFilename labels the payload with the extension of the format it is actually in.
func exportFilename(requested, entity string, format bulk.Format) string {
	base := strings.TrimSpace(path.Base(requested))
	if base == "" || base == "." || base == "/" {
		base = fmt.Sprintf("%s_export_%s", entity, time.Now().UTC().Format("20060102_150405"))
	}
	return strings.TrimSuffix(base, path.Ext(base)) + format.Extension()
}
