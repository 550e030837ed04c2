package tracing

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tracelay/tracelay/internal/id"
	"github.com/tracelay/tracelay/monitoring"
)

// TraceID identifies all spans of one logical request.
type TraceID = id.TraceID

// SpanID identifies a single span within a trace.
type SpanID = id.SpanID

// Status is the completion status of a span.
type Status uint8

const (
	StatusUnset Status = iota
	StatusOK
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unset"
	}
}

// Kind describes the role of a span within a trace.
type Kind uint8

const (
	KindInternal Kind = iota
	KindServer
	KindClient
)

// Span represents a single traced unit of work.
//
// A span is created by StartSpan, mutated only by the wrapper executing the
// traced call, and sealed by Finish. After Finish ownership transfers to the
// exporter; further mutation is a programming error. A nil *Span is the
// unsampled span: all methods are safe no-ops on it.
type Span struct {
	TraceID   TraceID
	SpanID    SpanID
	ParentID  SpanID
	Name      string
	Kind      Kind
	StartTime time.Time
	EndTime   time.Time

	status        Status
	statusMessage string
	attrs         map[string]any
	finished      bool
	tracer        *Tracer
}

// Recording reports whether the span records attributes. False for the
// unsampled nil span.
func (s *Span) Recording() bool {
	return s != nil
}

// SetAttribute records a scalar attribute. Supported value types are string,
// bool, the int family, and the float family; anything else is logged and
// dropped so that instrumentation can never break the wrapped call. Keys are
// unique with last-write-wins semantics.
func (s *Span) SetAttribute(key string, value any) {
	if !s.mutable("SetAttribute") {
		return
	}

	switch v := value.(type) {
	case string:
		s.attrs[key] = v
	case bool:
		s.attrs[key] = v
	case int:
		s.attrs[key] = int64(v)
	case int32:
		s.attrs[key] = int64(v)
	case int64:
		s.attrs[key] = v
	case float32:
		s.attrs[key] = float64(v)
	case float64:
		s.attrs[key] = v
	default:
		s.tracer.logger.Warn("unsupported span attribute type, dropping",
			zap.String("key", key),
			zap.String("type", fmt.Sprintf("%T", value)),
			zap.String("span", s.Name),
		)
	}
}

// SetError marks the span as failed and records the error message and type.
// The error itself is not altered or consumed.
func (s *Span) SetError(err error) {
	if err == nil || !s.mutable("SetError") {
		return
	}

	s.status = StatusError
	s.statusMessage = err.Error()
	s.attrs["error.message"] = err.Error()
	s.attrs["error.type"] = fmt.Sprintf("%T", err)
}

// SetStatus overrides the span status.
func (s *Span) SetStatus(status Status) {
	if !s.mutable("SetStatus") {
		return
	}
	s.status = status
}

// Finish seals the span, computing its end time. A span with no explicit
// status is sealed OK. Finishing twice is a programming error and is
// reported the same way as other post-seal mutation.
func (s *Span) Finish() {
	if s == nil {
		return
	}
	if s.finished {
		s.sealed("Finish")
		return
	}

	s.EndTime = time.Now()
	if s.EndTime.Before(s.StartTime) {
		s.EndTime = s.StartTime
	}
	if s.status == StatusUnset {
		s.status = StatusOK
	}
	s.finished = true
}

// Finished reports whether the span has been sealed.
func (s *Span) Finished() bool {
	return s != nil && s.finished
}

// Status returns the span status.
func (s *Span) Status() Status {
	if s == nil {
		return StatusUnset
	}
	return s.status
}

// StatusMessage returns the recorded error message, empty unless ERROR.
func (s *Span) StatusMessage() string {
	if s == nil {
		return ""
	}
	return s.statusMessage
}

// Duration returns the sealed span's duration, zero before Finish.
func (s *Span) Duration() time.Duration {
	if s == nil || !s.finished {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Attribute returns a recorded attribute value.
func (s *Span) Attribute(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.attrs[key]
	return v, ok
}

// Attributes returns the span's attribute map. Callers must treat it as
// read-only; it is handed to the exporter without copying.
func (s *Span) Attributes() map[string]any {
	if s == nil {
		return nil
	}
	return s.attrs
}

func (s *Span) mutable(op string) bool {
	if s == nil {
		return false
	}
	if s.finished {
		s.sealed(op)
		return false
	}
	return true
}

// sealed reports mutation of a finished span: panic in strict mode so tests
// and development builds fail fast, a warning in production.
func (s *Span) sealed(op string) {
	if s.tracer == nil {
		return
	}
	if s.tracer.metrics != nil {
		s.tracer.metrics.RecordDrop(monitoring.DropSealedMutated, 1)
	}
	if s.tracer.strict {
		panic(fmt.Sprintf("tracing: %s on sealed span %q", op, s.Name))
	}
	s.tracer.logger.Warn("mutation of sealed span ignored",
		zap.String("op", op),
		zap.String("span", s.Name),
	)
}
