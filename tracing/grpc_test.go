package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestUnaryServerInterceptor(t *testing.T) {
	tracer, exporter := newTestTracer(nil)
	interceptor := UnaryServerInterceptor(tracer)

	info := &grpc.UnaryServerInfo{FullMethod: "/demo.Users/Get"}
	resp, err := interceptor(context.Background(), "req", info,
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return "resp", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "resp", resp)

	span := exporter.last()
	require.NotNil(t, span)
	assert.Equal(t, "/demo.Users/Get", span.Name)
	assert.Equal(t, StatusOK, span.Status())
	assert.Equal(t, KindServer, span.Kind)

	system, _ := span.Attribute("rpc.system")
	assert.Equal(t, "grpc", system)
}

func TestUnaryServerInterceptorError(t *testing.T) {
	tracer, exporter := newTestTracer(nil)
	interceptor := UnaryServerInterceptor(tracer)

	sentinel := errors.New("not found")
	info := &grpc.UnaryServerInfo{FullMethod: "/demo.Users/Get"}
	_, err := interceptor(context.Background(), "req", info,
		func(context.Context, interface{}) (interface{}, error) {
			return nil, sentinel
		})

	assert.Same(t, sentinel, err)

	span := exporter.last()
	require.NotNil(t, span)
	assert.Equal(t, StatusError, span.Status())
	assert.Equal(t, sentinel.Error(), span.StatusMessage())
}

func TestUnaryServerInterceptorJoinsIncomingTrace(t *testing.T) {
	tracer, exporter := newTestTracer(nil)
	interceptor := UnaryServerInterceptor(tracer)

	parentSpan, _ := tracer.StartSpan(context.Background(), "client-side")
	parent := SpanContext{TraceID: parentSpan.TraceID, SpanID: parentSpan.SpanID}

	md := metadata.Pairs(TraceparentHeader, FormatTraceparent(parent))
	ctx := metadata.NewIncomingContext(context.Background(), md)

	info := &grpc.UnaryServerInfo{FullMethod: "/demo.Users/Get"}
	_, err := interceptor(ctx, "req", info,
		func(context.Context, interface{}) (interface{}, error) { return nil, nil })
	require.NoError(t, err)

	span := exporter.last()
	require.NotNil(t, span)
	assert.Equal(t, parent.TraceID, span.TraceID)
	assert.Equal(t, parent.SpanID, span.ParentID)
}

func TestUnaryClientInterceptorPropagates(t *testing.T) {
	tracer, exporter := newTestTracer(nil)
	interceptor := UnaryClientInterceptor(tracer)

	var outgoing metadata.MD
	err := interceptor(context.Background(), "/demo.Users/Get", "req", "reply", nil,
		func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
			outgoing, _ = metadata.FromOutgoingContext(ctx)
			return nil
		})
	require.NoError(t, err)

	span := exporter.last()
	require.NotNil(t, span)
	assert.Equal(t, KindClient, span.Kind)

	values := outgoing.Get(TraceparentHeader)
	require.Len(t, values, 1)

	sc, ok := ParseTraceparent(values[0])
	require.True(t, ok)
	assert.Equal(t, span.TraceID, sc.TraceID)
	assert.Equal(t, span.SpanID, sc.SpanID)
}
