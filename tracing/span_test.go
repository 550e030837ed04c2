package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracelay/tracelay/config"
	"github.com/tracelay/tracelay/monitoring"
)

func TestSpanLifecycle(t *testing.T) {
	tracer, exporter := newTestTracer(nil)

	span, _ := tracer.StartSpan(context.Background(), "work")
	require.True(t, span.Recording())
	require.False(t, span.TraceID.IsZero())
	require.False(t, span.SpanID.IsZero())

	span.SetAttribute("step", "one")
	tracer.End(span)

	require.True(t, span.Finished())
	assert.Equal(t, StatusOK, span.Status())
	assert.False(t, span.EndTime.Before(span.StartTime), "end_time must be >= start_time")

	spans := exporter.all()
	require.Len(t, spans, 1)
	assert.Same(t, span, spans[0])
}

func TestSetAttributeTypes(t *testing.T) {
	tracer, _ := newTestTracer(nil)
	span, _ := tracer.StartSpan(context.Background(), "attrs")

	span.SetAttribute("string", "v")
	span.SetAttribute("bool", true)
	span.SetAttribute("int", 42)
	span.SetAttribute("int64", int64(43))
	span.SetAttribute("float", 1.5)
	// Unsupported types are dropped without breaking the caller.
	span.SetAttribute("struct", struct{ X int }{1})
	span.SetAttribute("slice", []string{"a"})

	v, ok := span.Attribute("string")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	v, ok = span.Attribute("int")
	require.True(t, ok)
	assert.Equal(t, int64(42), v)

	_, ok = span.Attribute("struct")
	assert.False(t, ok)
	_, ok = span.Attribute("slice")
	assert.False(t, ok)
}

func TestSetAttributeLastWriteWins(t *testing.T) {
	tracer, _ := newTestTracer(nil)
	span, _ := tracer.StartSpan(context.Background(), "attrs")

	span.SetAttribute("key", "first")
	span.SetAttribute("key", "second")

	v, _ := span.Attribute("key")
	assert.Equal(t, "second", v)
	assert.Len(t, span.Attributes(), 1)
}

func TestSetError(t *testing.T) {
	tracer, _ := newTestTracer(nil)
	span, _ := tracer.StartSpan(context.Background(), "failing")

	span.SetError(errors.New("boom"))
	span.Finish()

	assert.Equal(t, StatusError, span.Status())
	assert.Equal(t, "boom", span.StatusMessage())

	msg, ok := span.Attribute("error.message")
	require.True(t, ok)
	assert.Equal(t, "boom", msg)

	typ, ok := span.Attribute("error.type")
	require.True(t, ok)
	assert.Equal(t, "*errors.errorString", typ)
}

func TestSealedSpanIgnoresMutation(t *testing.T) {
	tracer, _ := newTestTracer(nil)
	span, _ := tracer.StartSpan(context.Background(), "sealed")
	span.SetAttribute("before", true)
	span.Finish()

	// Production mode: warn and ignore.
	span.SetAttribute("after", true)
	span.SetError(errors.New("late"))

	_, ok := span.Attribute("after")
	assert.False(t, ok)
	assert.Equal(t, StatusOK, span.Status())
}

func TestSealedMutationCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	tracer, _ := newTestTracer(nil, WithMetrics(metrics))

	span, _ := tracer.StartSpan(context.Background(), "sealed")
	span.Finish()

	span.SetAttribute("late", true)
	span.SetError(errors.New("late"))

	assert.Equal(t, float64(2),
		testutil.ToFloat64(metrics.SpansDropped.WithLabelValues(monitoring.DropSealedMutated)))
}

func TestSealedSpanPanicsInStrictMode(t *testing.T) {
	strictTracer, _ := newTestTracer(func(cfg *config.Config) {
		cfg.Logging.Development = true
	})
	span, _ := strictTracer.StartSpan(context.Background(), "sealed")
	span.Finish()

	assert.Panics(t, func() { span.SetAttribute("late", true) })
	assert.Panics(t, func() { span.Finish() })
}

func TestNilSpanIsSafe(t *testing.T) {
	var span *Span

	assert.NotPanics(t, func() {
		span.SetAttribute("k", "v")
		span.SetError(errors.New("x"))
		span.SetStatus(StatusError)
		span.Finish()
	})
	assert.False(t, span.Recording())
	assert.Equal(t, StatusUnset, span.Status())
}
