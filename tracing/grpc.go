package tracing

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// UnaryServerInterceptor traces unary gRPC calls with the same contract as
// the route middleware: errors are recorded and returned unchanged.
func UnaryServerInterceptor(t *Tracer) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		ctx = extractMetadata(ctx)

		span, ctx := t.StartSpan(ctx, info.FullMethod, WithKind(KindServer))
		if span.Recording() {
			span.SetAttribute("rpc.system", "grpc")
			span.SetAttribute("rpc.method", info.FullMethod)
		}

		defer finalize(t, span, ctx)

		resp, err := handler(ctx, req)
		recordOutcome(span, ctx, err)
		t.End(span)
		return resp, err
	}
}

// StreamServerInterceptor traces streaming gRPC calls.
func StreamServerInterceptor(t *Tracer) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx := extractMetadata(ss.Context())

		span, ctx := t.StartSpan(ctx, info.FullMethod, WithKind(KindServer))
		if span.Recording() {
			span.SetAttribute("rpc.system", "grpc")
			span.SetAttribute("rpc.method", info.FullMethod)
			span.SetAttribute("rpc.streaming", true)
		}

		defer finalize(t, span, ctx)

		err := handler(srv, &tracedServerStream{ServerStream: ss, ctx: ctx})
		recordOutcome(span, ctx, err)
		t.End(span)
		return err
	}
}

// UnaryClientInterceptor traces outgoing unary calls and propagates the
// trace context to the callee via traceparent metadata.
func UnaryClientInterceptor(t *Tracer) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		span, ctx := t.StartSpan(ctx, method, WithKind(KindClient))
		if span.Recording() {
			span.SetAttribute("rpc.system", "grpc")
			span.SetAttribute("rpc.method", method)

			sc := SpanContext{TraceID: span.TraceID, SpanID: span.SpanID}
			ctx = metadata.AppendToOutgoingContext(ctx, TraceparentHeader, FormatTraceparent(sc))
		}

		defer finalize(t, span, ctx)

		err := invoker(ctx, method, req, reply, cc, opts...)
		recordOutcome(span, ctx, err)
		t.End(span)
		return err
	}
}

// extractMetadata lifts traceparent metadata into the span context.
func extractMetadata(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	values := md.Get(TraceparentHeader)
	if len(values) == 0 {
		return ctx
	}
	if parent, ok := ParseTraceparent(values[0]); ok {
		return ContextWithSpan(ctx, parent)
	}
	return ctx
}

// tracedServerStream overrides the stream context with the traced one.
type tracedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedServerStream) Context() context.Context {
	return s.ctx
}
