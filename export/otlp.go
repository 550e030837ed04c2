package export

import (
	"sort"
	"strconv"

	"github.com/bytedance/sonic"

	"github.com/tracelay/tracelay/tracing"
)

// OTLP/HTTP JSON request shape for the /v1/traces endpoint. Field names and
// value encodings (hex ids, string-encoded nanosecond timestamps and int64s)
// follow the protobuf JSON mapping the collector accepts on port 4318.

type exportRequest struct {
	ResourceSpans []resourceSpans `json:"resourceSpans"`
}

type resourceSpans struct {
	Resource   resource     `json:"resource"`
	ScopeSpans []scopeSpans `json:"scopeSpans"`
}

type resource struct {
	Attributes []keyValue `json:"attributes"`
}

type scopeSpans struct {
	Scope scope      `json:"scope"`
	Spans []otlpSpan `json:"spans"`
}

type scope struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type otlpSpan struct {
	TraceID           string     `json:"traceId"`
	SpanID            string     `json:"spanId"`
	ParentSpanID      string     `json:"parentSpanId,omitempty"`
	Name              string     `json:"name"`
	Kind              int        `json:"kind"`
	StartTimeUnixNano string     `json:"startTimeUnixNano"`
	EndTimeUnixNano   string     `json:"endTimeUnixNano"`
	Attributes        []keyValue `json:"attributes,omitempty"`
	Status            otlpStatus `json:"status"`
}

type keyValue struct {
	Key   string   `json:"key"`
	Value anyValue `json:"value"`
}

type anyValue struct {
	StringValue *string  `json:"stringValue,omitempty"`
	BoolValue   *bool    `json:"boolValue,omitempty"`
	IntValue    *string  `json:"intValue,omitempty"`
	DoubleValue *float64 `json:"doubleValue,omitempty"`
}

type otlpStatus struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Resource identifies the emitting service on every batch.
type Resource struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
}

const scopeName = "github.com/tracelay/tracelay"

// encodeBatch renders sealed spans as an OTLP/HTTP JSON payload.
func encodeBatch(res Resource, spans []*tracing.Span) ([]byte, error) {
	out := make([]otlpSpan, 0, len(spans))
	for _, s := range spans {
		out = append(out, convertSpan(s))
	}

	req := exportRequest{
		ResourceSpans: []resourceSpans{{
			Resource: resource{Attributes: resourceAttributes(res)},
			ScopeSpans: []scopeSpans{{
				Scope: scope{Name: scopeName, Version: res.ServiceVersion},
				Spans: out,
			}},
		}},
	}
	return sonic.Marshal(req)
}

func resourceAttributes(res Resource) []keyValue {
	attrs := []keyValue{
		stringAttr("service.name", res.ServiceName),
		stringAttr("service.version", res.ServiceVersion),
	}
	if res.Environment != "" {
		attrs = append(attrs,
			stringAttr("environment", res.Environment),
			stringAttr("deployment.environment", res.Environment),
		)
	}
	return attrs
}

func convertSpan(s *tracing.Span) otlpSpan {
	span := otlpSpan{
		TraceID:           s.TraceID.String(),
		SpanID:            s.SpanID.String(),
		Name:              s.Name,
		Kind:              kindCode(s.Kind),
		StartTimeUnixNano: strconv.FormatInt(s.StartTime.UnixNano(), 10),
		EndTimeUnixNano:   strconv.FormatInt(s.EndTime.UnixNano(), 10),
		Attributes:        convertAttributes(s.Attributes()),
		Status:            otlpStatus{Code: statusCode(s.Status()), Message: s.StatusMessage()},
	}
	if !s.ParentID.IsZero() {
		span.ParentSpanID = s.ParentID.String()
	}
	return span
}

func convertAttributes(attrs map[string]any) []keyValue {
	if len(attrs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]keyValue, 0, len(attrs))
	for _, k := range keys {
		switch v := attrs[k].(type) {
		case string:
			out = append(out, stringAttr(k, v))
		case bool:
			b := v
			out = append(out, keyValue{Key: k, Value: anyValue{BoolValue: &b}})
		case int64:
			i := strconv.FormatInt(v, 10)
			out = append(out, keyValue{Key: k, Value: anyValue{IntValue: &i}})
		case float64:
			f := v
			out = append(out, keyValue{Key: k, Value: anyValue{DoubleValue: &f}})
		}
	}
	return out
}

func stringAttr(key, value string) keyValue {
	v := value
	return keyValue{Key: key, Value: anyValue{StringValue: &v}}
}

func kindCode(k tracing.Kind) int {
	switch k {
	case tracing.KindServer:
		return 2
	case tracing.KindClient:
		return 3
	default:
		return 1 // internal
	}
}

func statusCode(s tracing.Status) int {
	switch s {
	case tracing.StatusOK:
		return 1
	case tracing.StatusError:
		return 2
	default:
		return 0
	}
}
