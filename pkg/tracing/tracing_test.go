package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "livetranslate", cfg.ServiceName)
	assert.Equal(t, "http://localhost:14268/api/traces", cfg.JaegerURL)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInit_Disabled(t *testing.T) {
	tp, err := Init(Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestStartSpan_NoProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test.operation")
	require.NotNil(t, span)
	AddSpanAttributes(ctx, attribute.String("k", "v"))
	RecordError(ctx, errors.New("ignored"))
	span.End()
}

func TestTraceSessionOperation_RecordsAttributes(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := TraceSessionOperation(context.Background(), "join", "s-1", "u-1")
	assert.NotEmpty(t, TraceIDFromContext(ctx))
	MeasureDuration(ctx, time.Now(), "join")
	RecordError(ctx, errors.New("session is not active"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "session.join", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range ended[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "s-1", attrs[SessionIDKey].AsString())
	assert.Equal(t, "u-1", attrs[UserIDKey].AsString())
	assert.Contains(t, attrs, DurationKey)
}

func TestTraceHelpers_SpanNames(t *testing.T) {
	recorder := installRecorder(t)

	_, s1 := TraceHTTPRequest(context.Background(), "GET", "/api/sessions")
	s1.End()
	_, s2 := TraceDatabaseOperation(context.Background(), "insert", "users")
	s2.End()
	_, s3 := TraceRoleTransition(context.Background(), "u-1", "none", "HOST")
	s3.End()

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"http.GET /api/sessions", "db.insert", "role.transition"}, names)
}

func TestTraceIDFromContext_Empty(t *testing.T) {
	assert.Equal(t, "", TraceIDFromContext(context.Background()))
}
