package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// StoreLogConfig controls which statements the store logger reports.
type StoreLogConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
	// ReportNotFound logs gorm.ErrRecordNotFound as an error. Lookups of
	// missing memberships and histories are expected, so it is off by default.
	ReportNotFound bool
}

// StoreLogger adapts zap to gorm's logger. Statement entries go through the
// context logger so they carry the job, org and trace of the import or
// export that issued them.
type StoreLogger struct {
	base *zap.Logger
	cfg  StoreLogConfig
}

var _ gormlogger.Interface = (*StoreLogger)(nil)

// NewStoreLogger returns a gorm logger writing to base under the "store" name.
func NewStoreLogger(base *zap.Logger, cfg StoreLogConfig) *StoreLogger {
	if base == nil {
		base = zap.NewNop()
	}
	if cfg.SlowThreshold == 0 {
		cfg.SlowThreshold = 200 * time.Millisecond
	}
	return &StoreLogger{base: base.Named("store"), cfg: cfg}
}

func (l *StoreLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.cfg.Level = level
	return &cp
}

func (l *StoreLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Info {
		l.sugar(ctx).Infof(msg, data...)
	}
}

func (l *StoreLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Warn {
		l.sugar(ctx).Warnf(msg, data...)
	}
}

func (l *StoreLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Error {
		l.sugar(ctx).Errorf(msg, data...)
	}
}

// Trace reports one executed statement: failures at error, statements over
// the slow threshold at warn, everything else at debug.
func (l *StoreLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	level := l.classify(elapsed, err)
	if level == gormlogger.Silent {
		return
	}

	query, rows := fc()
	fields := []zap.Field{
		zap.String("sql", query),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}
	log := WithLogger(ctx, l.base)
	switch level {
	case gormlogger.Error:
		log.Error("Statement failed", append(fields, zap.Error(err))...)
	case gormlogger.Warn:
		log.Warn("Slow statement", append(fields, zap.Duration("threshold", l.cfg.SlowThreshold))...)
	default:
		log.Debug("Statement", fields...)
	}
}

// classify picks the level a statement is reported at, or Silent to drop it.
func (l *StoreLogger) classify(elapsed time.Duration, err error) gormlogger.LogLevel {
	switch {
	case err != nil:
		if errors.Is(err, gormlogger.ErrRecordNotFound) && !l.cfg.ReportNotFound {
			return gormlogger.Silent
		}
		if l.cfg.Level >= gormlogger.Error {
			return gormlogger.Error
		}
	case elapsed > l.cfg.SlowThreshold:
		if l.cfg.Level >= gormlogger.Warn {
			return gormlogger.Warn
		}
	case l.cfg.Level >= gormlogger.Info:
		return gormlogger.Info
	}
	return gormlogger.Silent
}

func (l *StoreLogger) sugar(ctx context.Context) *zap.SugaredLogger {
	return WithLogger(ctx, l.base).Zap().Sugar()
}

// StoreLogLevel maps the application log level to a gorm level. Statements
// are only traced when the application logs at debug.
func StoreLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "debug":
		return gormlogger.Info
	}
	return gormlogger.Warn
}
