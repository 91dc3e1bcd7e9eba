package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	l := zap.NewExample()
	assert.Same(t, l, FromContext(WithContext(context.Background(), l)))
}

func TestContextIDs(t *testing.T) {
	ctx := WithCallerID(WithOrgID(WithJobID(context.Background(), "job"), "org"), "caller")
	assert.Equal(t, "job", GetJobID(ctx))
	assert.Equal(t, "org", GetOrgID(ctx))
	assert.Equal(t, "caller", GetCallerID(ctx))
	assert.Empty(t, GetJobID(context.Background()))
}

func TestL_EnrichesEntries(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := WithContext(context.Background(), zap.New(core))
	ctx = WithOrgID(WithJobID(ctx, "job-9"), "org-3")

	tp := trace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(ctx, "op")
	defer span.End()

	L(ctx).With(zap.String("entity", "people")).Info("Import finished")

	require.Len(t, recorded.All(), 1)
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "job-9", fields["job_id"])
	assert.Equal(t, "org-3", fields["org_id"])
	assert.Equal(t, "people", fields["entity"])
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, GetTraceID(ctx), fields["trace_id"])
	_, hasCaller := fields["caller_id"]
	assert.False(t, hasCaller)
}

func TestContextLogger_NilLogger(t *testing.T) {
	cl := WithLogger(context.Background(), nil)
	assert.NotPanics(t, func() {
		cl.Info("x")
		cl.With(zap.Int("n", 1)).Warn("y")
	})
}
