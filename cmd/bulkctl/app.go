package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	exportapp "github.com/erp/bulkops/internal/application/export"
	identityapp "github.com/erp/bulkops/internal/application/identity"
	importapp "github.com/erp/bulkops/internal/application/import"
	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/infrastructure/cache"
	"github.com/erp/bulkops/internal/infrastructure/config"
	"github.com/erp/bulkops/internal/infrastructure/event"
	csvimport "github.com/erp/bulkops/internal/infrastructure/import"
	"github.com/erp/bulkops/internal/infrastructure/logger"
	"github.com/erp/bulkops/internal/infrastructure/persistence"
	"github.com/erp/bulkops/internal/infrastructure/render"
	"github.com/erp/bulkops/internal/infrastructure/storage"
	"github.com/erp/bulkops/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile string
	env        string
}

// app holds the wired services of one CLI invocation.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *persistence.Database
	registry *bulk.SchemaRegistry
	store    *persistence.GormRecordStore

	evaluator   *identityapp.PermissionEvaluator
	memberships *identityapp.MembershipService
	history     *importapp.HistoryService
	activity    *event.AsyncActivityLogger
	progress    *cache.RedisProgressStore
	metrics     *telemetry.BulkMetrics

	closers []func(context.Context) error
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	if opts.env != "" {
		if err := os.Setenv("ERP_APP_ENV", opts.env); err != nil {
			return nil, err
		}
	}
	return config.Load(opts.configFile)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	lc := logger.DefaultConfig()
	lc.Level = cfg.Log.Level
	lc.Format = cfg.Log.Format
	lc.Output = cfg.Log.Output
	if cfg.App.Env == "production" {
		lc.Format = "json"
	}
	return logger.New(lc)
}

// newApp wires configuration, storage and the bulk services. The caller must
// call close once the command has finished.
func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("load config: %w", err))
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("init logger: %w", err))
	}

	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, func(context.Context) error { logger.Sync(log); return nil })
	if err := a.wire(ctx); err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, a.log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, tp.Shutdown)
	mp, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, a.log)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	a.closers = append(a.closers, mp.Shutdown)
	if a.metrics, err = telemetry.NewBulkMetrics(mp.Meter(telemetry.TracerName)); err != nil {
		return err
	}

	var plugins []gorm.Plugin
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbSystem := "postgresql"
		if cfg.Database.Driver == config.DriverSQLite {
			dbSystem = "sqlite"
		}
		plugins = append(plugins, telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        dbSystem,
		}, a.log))
	}
	if mp.IsEnabled() {
		dbMetrics, err := telemetry.NewDBMetricsPlugin(mp.Meter("db.client"), cfg.Telemetry.DBSlowQueryThresh, a.log)
		if err != nil {
			return err
		}
		plugins = append(plugins, dbMetrics)
		a.closers = append(a.closers, func(context.Context) error { return dbMetrics.Stop() })
	}

	a.db, err = persistence.NewDatabase(&cfg.Database, a.log, plugins...)
	if err != nil {
		return withCode(exitStore, fmt.Errorf("connect database: %w", err))
	}
	a.closers = append(a.closers, func(context.Context) error { return a.db.Close() })
	if cfg.Database.Driver == config.DriverSQLite {
		if err := a.db.AutoMigrate(); err != nil {
			return withCode(exitStore, fmt.Errorf("migrate sqlite schema: %w", err))
		}
	}

	var overrides []*bulk.EntitySchema
	if cfg.Import.SchemaFile != "" {
		if overrides, err = csvimport.LoadSchemaFile(cfg.Import.SchemaFile); err != nil {
			return withCode(exitUsage, fmt.Errorf("load schema file: %w", err))
		}
	}
	if a.registry, err = importapp.NewSchemaRegistry(overrides...); err != nil {
		return withCode(exitUsage, err)
	}

	a.store = persistence.NewGormRecordStore(a.db.DB)
	membershipRepo := persistence.NewGormMembershipRepository(a.db.DB)
	a.evaluator = identityapp.NewPermissionEvaluator(nil, membershipRepo, a.store, a.log)
	a.memberships = identityapp.NewMembershipService(membershipRepo, a.log)
	a.history = importapp.NewHistoryService(persistence.NewGormImportHistoryRepository(a.db.DB), a.log)

	activityCfg := event.DefaultActivityLoggerConfig()
	activityCfg.BufferSize = cfg.Activity.BufferSize
	activityCfg.Workers = cfg.Activity.Workers
	a.activity = event.NewAsyncActivityLogger(persistence.NewGormActivityRepository(a.db.DB), activityCfg, a.log)
	if err := a.activity.Start(ctx); err != nil {
		return err
	}
	a.closers = append(a.closers, a.activity.Stop)

	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			a.log.Warn("Redis unavailable, progress will not be published", zap.Error(err))
		} else {
			a.progress = cache.NewRedisProgressStore(client, "", cfg.Redis.ProgressTTL)
			a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		}
	}
	return nil
}

// importPipeline builds the import pipeline with every configured sink.
func (a *app) importPipeline() *importapp.ImportPipeline {
	processor := importapp.NewBatchProcessor(a.store, a.activity, a.metrics, importapp.ProcessorConfig{
		Workers:      a.cfg.Import.Workers,
		CommitRate:   a.cfg.Import.CommitRate,
		MaxBatchSize: a.cfg.Import.MaxBatchSize,
		MaxErrors:    a.cfg.Import.MaxErrors,
	}, a.log)

	opts := []importapp.PipelineOption{
		importapp.WithHistory(a.history),
		importapp.WithActivityLogger(a.activity),
		importapp.WithMetrics(a.metrics),
	}
	if a.progress != nil {
		opts = append(opts, importapp.WithProgressPublisher(a.progress))
	}
	return importapp.NewImportPipeline(a.registry, a.evaluator, processor, a.log, opts...)
}

// exportPipeline builds the export pipeline. Object storage and document
// rendering are attached only when enabled in the configuration.
func (a *app) exportPipeline(ctx context.Context) (*exportapp.ExportPipeline, error) {
	opts := []exportapp.PipelineOption{
		exportapp.WithConfig(exportapp.Config{
			Workers:        a.cfg.Export.Workers,
			MaxRecords:     a.cfg.Export.MaxRecords,
			InlineMaxBytes: a.cfg.Export.InlineMaxBytes,
		}),
		exportapp.WithActivityLogger(a.activity),
		exportapp.WithMetrics(a.metrics),
	}

	if a.cfg.Storage.Enabled {
		s3, err := storage.NewS3ExportStorage(ctx, &a.cfg.Storage, storage.WithLogger(a.log))
		if err != nil {
			return nil, fmt.Errorf("init export storage: %w", err)
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure export bucket: %w", err)
		}
		opts = append(opts, exportapp.WithObjectStorage(s3))
	}
	if a.cfg.Render.Enabled {
		renderer := render.NewChromedpRenderer(a.cfg.Render, a.log)
		a.closers = append(a.closers, func(context.Context) error { return renderer.Close() })
		opts = append(opts, exportapp.WithDocumentRenderer(renderer))
	}
	return exportapp.NewExportPipeline(a.registry, a.evaluator, a.store, a.log, opts...), nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
