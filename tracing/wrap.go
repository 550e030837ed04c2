package tracing

import (
	"context"
	"errors"
	"fmt"

	"github.com/tracelay/tracelay/redact"
)

// OpOption attaches attributes to an operation wrapper at wrap time.
type OpOption func(*opConfig)

type opAttr struct {
	key   string
	value any
}

type opConfig struct {
	attrs []opAttr
	kind  Kind
}

// WithOperation tags the span with db.operation (e.g. "get", "insert").
func WithOperation(operation string) OpOption {
	return func(c *opConfig) {
		c.attrs = append(c.attrs, opAttr{key: "db.operation", value: operation})
	}
}

// WithTable tags the span with db.table.
func WithTable(table string) OpOption {
	return func(c *opConfig) {
		c.attrs = append(c.attrs, opAttr{key: "db.table", value: table})
	}
}

// WithAttr tags the span with an arbitrary attribute.
func WithAttr(key string, value any) OpOption {
	return func(c *opConfig) {
		c.attrs = append(c.attrs, opAttr{key: key, value: value})
	}
}

// WithSpanKind sets the span kind for the wrapped operation.
func WithSpanKind(kind Kind) OpOption {
	return func(c *opConfig) { c.kind = kind }
}

// Wrap returns a traced version of fn. The wrapped callable keeps fn's
// calling contract exactly: same argument, same result, same error value.
// Tracing only observes. Attributes supplied via options are recorded at call time,
// subject to the tracer's redaction policy. Panics and context cancellation
// still seal the span before propagating.
//
// Wrapped callables compose with further wrappers and are safe for
// concurrent use; every invocation gets its own span.
func Wrap[A, R any](t *Tracer, name string, fn func(context.Context, A) (R, error), opts ...OpOption) func(context.Context, A) (R, error) {
	cfg := buildOpConfig(opts)

	return func(ctx context.Context, arg A) (R, error) {
		span, ctx := t.StartSpan(ctx, name, WithKind(cfg.kind))
		applyOpAttrs(t, span, cfg)

		defer finalize(t, span, ctx)

		result, err := fn(ctx, arg)
		recordOutcome(span, ctx, err)
		t.End(span)
		return result, err
	}
}

// Do runs fn inside a span, the inline counterpart of Wrap for call sites
// that do not need a reusable wrapped callable.
func Do(ctx context.Context, t *Tracer, name string, fn func(context.Context) error, opts ...OpOption) error {
	cfg := buildOpConfig(opts)

	span, ctx := t.StartSpan(ctx, name, WithKind(cfg.kind))
	applyOpAttrs(t, span, cfg)

	defer finalize(t, span, ctx)

	err := fn(ctx)
	recordOutcome(span, ctx, err)
	t.End(span)
	return err
}

func buildOpConfig(opts []OpOption) opConfig {
	var cfg opConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func applyOpAttrs(t *Tracer, span *Span, cfg opConfig) {
	if !span.Recording() {
		return
	}
	for _, a := range cfg.attrs {
		if t.policy.Permit(redact.ClassBase, a.key) {
			span.SetAttribute(a.key, a.value)
		}
	}
}

// recordOutcome seals the outcome of the wrapped call on the span: errors
// are recorded without being altered, and a cancelled context is noted even
// when the call itself returned cleanly.
func recordOutcome(span *Span, ctx context.Context, err error) {
	if !span.Recording() {
		return
	}
	if err != nil {
		span.SetError(err)
	}
	if ctx.Err() != nil {
		span.SetAttribute("cancelled", true)
		if err == nil {
			span.SetError(ctx.Err())
		}
	}
}

// finalize is the guaranteed exit path: on panic it seals the span as ERROR
// and re-panics with the original value, so the host's recovery middleware
// sees the panic unchanged.
func finalize(t *Tracer, span *Span, ctx context.Context) {
	if r := recover(); r != nil {
		if span.Recording() && !span.Finished() {
			span.SetError(panicError(r))
			if ctx.Err() != nil {
				span.SetAttribute("cancelled", true)
			}
			t.End(span)
		}
		panic(r)
	}
	// Normal return: End already ran. Catch a missed seal anyway so a span
	// can never leak unfinished.
	if span.Recording() && !span.Finished() {
		if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			span.SetAttribute("cancelled", true)
			span.SetError(ctx.Err())
		}
		t.End(span)
	}
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
