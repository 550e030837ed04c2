// Package tracing implements the span-emitting instrumentation layer: a span
// model, sampling, redaction-aware wrappers for HTTP routes, gRPC calls and
// arbitrary operations, and W3C traceparent propagation.
//
// Tracing is strictly best-effort and observational. Wrappers never swallow
// or alter errors from the code they wrap, never block the caller on export,
// and degrade to no-ops when tracing is disabled or a call is not sampled.
package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/tracelay/tracelay/config"
	"github.com/tracelay/tracelay/internal/id"
	"github.com/tracelay/tracelay/logging"
	"github.com/tracelay/tracelay/monitoring"
	"github.com/tracelay/tracelay/redact"
)

// Submitter receives sealed spans for asynchronous transmission. The export
// package provides the batching OTLP implementation.
type Submitter interface {
	Submit(*Span)
}

// Tracer creates, samples and finalizes spans for one service.
type Tracer struct {
	service     string
	version     string
	environment string

	enabled  bool
	strict   bool
	sampler  Sampler
	policy   redact.Policy
	exporter Submitter
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

// Option customizes a Tracer.
type Option func(*Tracer)

// WithExporter sets the span destination.
func WithExporter(e Submitter) Option {
	return func(t *Tracer) { t.exporter = e }
}

// WithSampler overrides the configuration-derived sampler.
func WithSampler(s Sampler) Option {
	return func(t *Tracer) { t.sampler = s }
}

// WithLogger sets the instrumentation logger.
func WithLogger(l *logging.Logger) Option {
	return func(t *Tracer) { t.logger = l }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(t *Tracer) { t.metrics = m }
}

// WithPolicy overrides the configuration-derived redaction policy.
func WithPolicy(p redact.Policy) Option {
	return func(t *Tracer) { t.policy = p }
}

// New creates a tracer from configuration. The configuration is treated as
// immutable; nothing is read from it after construction.
func New(cfg *config.Config, opts ...Option) *Tracer {
	t := &Tracer{
		service:     cfg.Service.Name,
		version:     cfg.Service.Version,
		environment: cfg.Service.Environment,
		enabled:     cfg.Enabled,
		strict:      cfg.Logging.Development,
		sampler:     samplerFromConfig(cfg.Sampling),
		policy:      policyFromConfig(cfg.Capture),
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func samplerFromConfig(cfg config.SamplingConfig) Sampler {
	sampler := NewRatioSampler(cfg.Rate)
	if cfg.SpansPerSecond > 0 {
		sampler = Combine(sampler, NewRateLimitSampler(cfg.SpansPerSecond))
	}
	return sampler
}

func policyFromConfig(cfg config.CaptureConfig) redact.Policy {
	return redact.NewPolicy(
		redact.Capture{
			QueryParams:  cfg.QueryParams,
			PathParams:   cfg.PathParams,
			Headers:      cfg.Headers,
			RequestBody:  cfg.RequestBody,
			ResponseBody: cfg.ResponseBody,
		},
		redact.WithDenylist(cfg.ExtraDenylist...),
		redact.WithMaxBodyBytes(cfg.MaxBodyBytes),
	)
}

// Service returns the service name stamped on emitted spans.
func (t *Tracer) Service() string { return t.service }

// Policy returns the tracer's redaction policy.
func (t *Tracer) Policy() redact.Policy { return t.policy }

// Enabled reports whether the tracer records spans at all.
func (t *Tracer) Enabled() bool { return t.enabled }

// StartSpan begins a span for the named operation. The sampling decision is
// made here, before any span state exists: an unsampled call returns a nil
// span (whose methods are no-ops) and the unchanged context, paying no
// attribute-capture cost.
//
// The returned context carries the new span's identity for downstream
// propagation.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (*Span, context.Context) {
	if !t.enabled {
		return nil, ctx
	}
	if !t.sampler.ShouldSample(name) {
		if t.metrics != nil {
			t.metrics.RecordDrop(monitoring.DropUnsampled, 1)
		}
		return nil, ctx
	}

	var cfg spanConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	parent, hasParent := SpanContextFromContext(ctx)
	if cfg.parent != (SpanContext{}) {
		parent, hasParent = cfg.parent, true
	}

	span := &Span{
		SpanID:    id.NewSpanID(),
		Name:      name,
		Kind:      cfg.kind,
		StartTime: time.Now(),
		attrs:     make(map[string]any, 8),
		tracer:    t,
	}
	if hasParent {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
	} else {
		span.TraceID = id.NewTraceID()
	}

	if t.metrics != nil {
		t.metrics.SpansStarted.Inc()
	}

	return span, ContextWithSpan(ctx, SpanContext{TraceID: span.TraceID, SpanID: span.SpanID})
}

// End seals the span and transfers ownership to the exporter. Safe on nil
// spans and on tracers without an exporter.
func (t *Tracer) End(span *Span) {
	if span == nil {
		return
	}
	if !span.Finished() {
		span.Finish()
	}
	if t.exporter != nil {
		t.exporter.Submit(span)
	}
}

// SpanOption customizes span creation.
type SpanOption func(*spanConfig)

type spanConfig struct {
	kind   Kind
	parent SpanContext
}

// WithKind sets the span kind.
func WithKind(kind Kind) SpanOption {
	return func(c *spanConfig) { c.kind = kind }
}

// WithParent sets an explicit parent, overriding the context.
func WithParent(parent SpanContext) SpanOption {
	return func(c *spanConfig) { c.parent = parent }
}

// SpanContext is the propagated identity of a span.
type SpanContext struct {
	TraceID TraceID
	SpanID  SpanID
}

type contextKey struct{}

// ContextWithSpan returns a context carrying the span identity.
func ContextWithSpan(ctx context.Context, sc SpanContext) context.Context {
	return context.WithValue(ctx, contextKey{}, sc)
}

// SpanContextFromContext extracts the propagated span identity, if any.
func SpanContextFromContext(ctx context.Context) (SpanContext, bool) {
	sc, ok := ctx.Value(contextKey{}).(SpanContext)
	return sc, ok && !sc.TraceID.IsZero()
}

// Traceparent header handling per the W3C trace-context format used by the
// OTLP ecosystem: "00-<trace id>-<span id>-<flags>".

// TraceparentHeader is the propagation header name.
const TraceparentHeader = "traceparent"

// FormatTraceparent renders a traceparent header value for the span context.
func FormatTraceparent(sc SpanContext) string {
	return fmt.Sprintf("00-%s-%s-01", sc.TraceID, sc.SpanID)
}

// ParseTraceparent parses a traceparent header value. Malformed values are
// rejected rather than guessed at.
func ParseTraceparent(value string) (SpanContext, bool) {
	// version(2) - trace(32) - span(16) - flags(2)
	if len(value) != 55 || value[2] != '-' || value[35] != '-' || value[52] != '-' {
		return SpanContext{}, false
	}
	traceID, ok := id.ParseTraceID(value[3:35])
	if !ok {
		return SpanContext{}, false
	}
	spanID, ok := id.ParseSpanID(value[36:52])
	if !ok {
		return SpanContext{}, false
	}
	return SpanContext{TraceID: traceID, SpanID: spanID}, true
}
