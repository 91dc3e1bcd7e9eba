package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type sample struct {
	ID   uint
	Name string
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func installRecorder(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr, tp
}

func TestNewDBTracingPlugin_Defaults(t *testing.T) {
	p := NewDBTracingPlugin(DBTracingConfig{}, zaptest.NewLogger(t))
	assert.Equal(t, 200*time.Millisecond, p.config.SlowQueryThresh)
	assert.Equal(t, "postgresql", p.config.DBSystem)
	assert.False(t, p.config.LogFullSQL)
}

func TestDBTracingPlugin_RecordsQuerySpans(t *testing.T) {
	sr, tp := installRecorder(t)
	db := openSQLite(t)

	require.NoError(t, db.Use(NewDBTracingPlugin(DBTracingConfig{DBSystem: "sqlite"}, zaptest.NewLogger(t))))
	require.NoError(t, db.AutoMigrate(&sample{}))

	ctx, parent := tp.Tracer("test").Start(context.Background(), "parent")
	require.NoError(t, db.WithContext(ctx).Create(&sample{Name: "alpha"}).Error)
	var got []sample
	require.NoError(t, db.WithContext(ctx).Find(&got).Error)
	parent.End()

	var children int
	for _, s := range sr.Ended() {
		if s.Parent().SpanID() == parent.SpanContext().SpanID() {
			children++
		}
	}
	assert.GreaterOrEqual(t, children, 2)
}

func TestDBTracingPlugin_DoubleRegistration(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, db.Use(NewDBTracingPlugin(DBTracingConfig{}, zaptest.NewLogger(t))))
	assert.ErrorIs(t, db.Use(NewDBTracingPlugin(DBTracingConfig{}, zaptest.NewLogger(t))), gorm.ErrRegistered)
}

func TestDBTracingPlugin_Annotate(t *testing.T) {
	sr, tp := installRecorder(t)
	p := NewDBTracingPlugin(DBTracingConfig{SlowQueryThresh: time.Millisecond}, zaptest.NewLogger(t))

	ctx, span := tp.Tracer("test").Start(context.Background(), "query")
	db := openSQLite(t).Session(&gorm.Session{})
	db.Statement.Context = context.WithValue(ctx, queryStartKey, time.Now().Add(-time.Second))
	db.Statement.Table = "records"
	db.Statement.RowsAffected = 3
	db.Error = errors.New("boom")

	p.annotate(db, "SELECT")
	span.End()

	s := sr.Ended()[0]
	attrs := map[string]any{}
	for _, kv := range s.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, int64(3), attrs["db.rows_affected"])
	assert.Equal(t, "records", attrs["db.sql.table"])
	assert.Equal(t, true, attrs["db.slow_query"])
	assert.Equal(t, codes.Error, s.Status().Code)

	var names []string
	for _, ev := range s.Events() {
		names = append(names, ev.Name)
	}
	assert.Contains(t, names, "slow_query_warning")
}

func TestDBTracingPlugin_AnnotateIgnoresNotFound(t *testing.T) {
	sr, tp := installRecorder(t)
	p := NewDBTracingPlugin(DBTracingConfig{}, zaptest.NewLogger(t))

	ctx, span := tp.Tracer("test").Start(context.Background(), "query")
	db := openSQLite(t).Session(&gorm.Session{})
	db.Statement.Context = ctx
	db.Error = gorm.ErrRecordNotFound

	p.annotate(db, "SELECT")
	span.End()

	assert.NotEqual(t, codes.Error, sr.Ended()[0].Status().Code)
}

func TestDetectOperationType(t *testing.T) {
	tests := map[string]string{
		"SELECT * FROM records":           "SELECT",
		"  insert into records values ()": "INSERT",
		"UPDATE records SET x = 1":        "UPDATE",
		"delete from records":             "DELETE",
		"PRAGMA foreign_keys":             "OTHER",
		"":                                "OTHER",
	}
	for sql, want := range tests {
		assert.Equal(t, want, detectOperationType(sql), sql)
	}
}
