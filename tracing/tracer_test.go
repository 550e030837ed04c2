package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracelay/tracelay/config"
	"github.com/tracelay/tracelay/internal/id"
)

func TestParentChildSpans(t *testing.T) {
	tracer, _ := newTestTracer(nil)

	parent, ctx := tracer.StartSpan(context.Background(), "parent")
	child, _ := tracer.StartSpan(ctx, "child")

	assert.Equal(t, parent.TraceID, child.TraceID, "child shares the parent's trace id")
	assert.Equal(t, parent.SpanID, child.ParentID)
	assert.NotEqual(t, parent.SpanID, child.SpanID)
}

func TestSpansFromSeparateCallsGetSeparateTraces(t *testing.T) {
	tracer, _ := newTestTracer(nil)

	a, _ := tracer.StartSpan(context.Background(), "a")
	b, _ := tracer.StartSpan(context.Background(), "b")

	assert.NotEqual(t, a.TraceID, b.TraceID)
}

func TestExplicitParentOverridesContext(t *testing.T) {
	tracer, _ := newTestTracer(nil)

	_, ctx := tracer.StartSpan(context.Background(), "ambient")

	remote := SpanContext{TraceID: id.NewTraceID(), SpanID: id.NewSpanID()}
	span, _ := tracer.StartSpan(ctx, "child", WithParent(remote))

	assert.Equal(t, remote.TraceID, span.TraceID)
	assert.Equal(t, remote.SpanID, span.ParentID)
}

func TestTraceparentRoundTrip(t *testing.T) {
	sc := SpanContext{TraceID: id.NewTraceID(), SpanID: id.NewSpanID()}

	header := FormatTraceparent(sc)
	require.Len(t, header, 55)

	parsed, ok := ParseTraceparent(header)
	require.True(t, ok)
	assert.Equal(t, sc, parsed)
}

func TestParseTraceparentRejectsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"garbage", "not-a-traceparent"},
		{"wrong separators", "00x4bf92f3577b34da6a3ce929d0e0e4736x00f067aa0ba902b7x01"},
		{"zero trace id", "00-00000000000000000000000000000000-00f067aa0ba902b7-01"},
		{"non-hex", "00-zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz-00f067aa0ba902b7-01"},
		{"truncated", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseTraceparent(tt.value)
			assert.False(t, ok)
		})
	}
}

func TestEndWithoutExporter(t *testing.T) {
	bare := New(config.Default())

	span, _ := bare.StartSpan(context.Background(), "op")
	assert.NotPanics(t, func() { bare.End(span) })
	assert.True(t, span.Finished())
}
