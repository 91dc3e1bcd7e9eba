package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsPlugin is a gorm plugin that records query counts, latency,
// slow queries and connection pool usage.
type DBMetricsPlugin struct {
	meter          metric.Meter
	slowQuery      time.Duration
	logger         *zap.Logger
	queryTotal     *Counter
	queryDuration  *Histogram
	slowQueryTotal *Counter
	poolGauge      metric.Registration
}

// NewDBMetricsPlugin creates the query instruments on meter.
func NewDBMetricsPlugin(meter metric.Meter, slowQuery time.Duration, logger *zap.Logger) (*DBMetricsPlugin, error) {
	if slowQuery <= 0 {
		slowQuery = 200 * time.Millisecond
	}
	p := &DBMetricsPlugin{meter: meter, slowQuery: slowQuery, logger: logger}

	var err error
	if p.queryTotal, err = NewCounter(meter,
		"db_query_total", "Total number of database queries by operation type", "{query}"); err != nil {
		return nil, err
	}
	if p.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency distribution in seconds",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if p.slowQueryTotal, err = NewCounter(meter,
		"db_slow_query_total", "Database queries slower than the configured threshold", "{query}"); err != nil {
		return nil, err
	}
	return p, nil
}

// Name implements gorm.Plugin.
func (p *DBMetricsPlugin) Name() string {
	return "bulkops:db_metrics"
}

// Initialize implements gorm.Plugin. Pool usage is read on each collection.
func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	if err := registerAround(db, "db_metrics", markQueryStart, p.record); err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	conns, err := p.meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Number of connections in the pool by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	p.poolGauge, err = p.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(conns, int64(stats.Idle), metric.WithAttributes(AttrPoolState.String("idle")))
		o.ObserveInt64(conns, int64(stats.InUse), metric.WithAttributes(AttrPoolState.String("in_use")))
		o.ObserveInt64(conns, int64(stats.OpenConnections), metric.WithAttributes(AttrPoolState.String("open")))
		return nil
	}, conns)
	if err != nil {
		return err
	}

	p.logger.Info("Database metrics plugin initialized", zap.Duration("slow_query_threshold", p.slowQuery))
	return nil
}

// Stop unregisters the pool gauge callback.
func (p *DBMetricsPlugin) Stop() error {
	if p.poolGauge == nil {
		return nil
	}
	return p.poolGauge.Unregister()
}

func (p *DBMetricsPlugin) record(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	elapsed, _ := queryElapsed(db)
	p.RecordQuery(ctx, operation, db.Statement.Table, elapsed)
}

// RecordQuery records one statement.
func (p *DBMetricsPlugin) RecordQuery(ctx context.Context, operation, table string, d time.Duration) {
	if operation == "" {
		operation = "OTHER"
	}
	p.queryTotal.Inc(ctx, AttrOperation.String(operation))
	p.queryDuration.RecordDuration(ctx, d, AttrOperation.String(operation))
	if d > p.slowQuery {
		if table == "" {
			table = "unknown"
		}
		p.slowQueryTotal.Inc(ctx, AttrTable.String(table))
	}
}
