package tracing

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tracelay/tracelay/redact"
)

// TraceIDHeader carries the trace id on responses so callers can look the
// trace up in the backend.
const TraceIDHeader = "X-Trace-ID"

// RouteOption customizes the route middleware.
type RouteOption func(*routeConfig)

type routeConfig struct {
	operationName string
}

// WithOperationName overrides the derived "METHOD route" span name.
func WithOperationName(name string) RouteOption {
	return func(c *routeConfig) { c.operationName = name }
}

// Middleware creates Gin middleware tracing each request.
//
// The span name is the explicit override or "METHOD route". Request details
// are captured as attributes subject to the tracer's redaction policy.
// Handler errors and panics mark the span ERROR and propagate unchanged;
// the middleware only observes. The span is sealed on every exit path,
// including panic and request cancellation.
func Middleware(t *Tracer, opts ...RouteOption) gin.HandlerFunc {
	var cfg routeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if parent, ok := ParseTraceparent(c.GetHeader(TraceparentHeader)); ok {
			ctx = ContextWithSpan(ctx, parent)
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		name := cfg.operationName
		if name == "" {
			name = c.Request.Method + " " + route
		}

		span, ctx := t.StartSpan(ctx, name, WithKind(KindServer))
		c.Request = c.Request.WithContext(ctx)

		if span.Recording() {
			captureRequest(t, span, c, route)
			c.Header(TraceIDHeader, span.TraceID.String())
			c.Header(TraceparentHeader, FormatTraceparent(SpanContext{TraceID: span.TraceID, SpanID: span.SpanID}))
		}

		var respBody *bodyWriter
		if span.Recording() && t.policy.Permit(redact.ClassResponseBody, "http.response.body") {
			respBody = &bodyWriter{ResponseWriter: c.Writer}
			c.Writer = respBody
		}

		defer func() {
			if r := recover(); r != nil {
				if span.Recording() && !span.Finished() {
					span.SetError(panicError(r))
					span.SetAttribute("http.status_code", int64(500))
					t.End(span)
				}
				panic(r)
			}
		}()

		c.Next()

		if !span.Recording() {
			return
		}

		span.SetAttribute("http.status_code", int64(c.Writer.Status()))
		if respBody != nil {
			span.SetAttribute("http.response.body", t.policy.TruncateBody(respBody.buf.String()))
		}

		if len(c.Errors) > 0 {
			// The handler's error reaches the client through gin untouched;
			// here it is only recorded.
			span.SetError(c.Errors.Last().Err)
		} else if c.Writer.Status() >= 500 {
			span.SetStatus(StatusError)
			span.SetAttribute("error.message", fmt.Sprintf("HTTP %d", c.Writer.Status()))
		}

		if c.Request.Context().Err() != nil {
			span.SetAttribute("cancelled", true)
			if span.Status() != StatusError {
				span.SetError(c.Request.Context().Err())
			}
		}

		t.End(span)
	}
}

// captureRequest records request attributes permitted by the policy.
func captureRequest(t *Tracer, span *Span, c *gin.Context, route string) {
	policy := t.Policy()

	span.SetAttribute("http.method", c.Request.Method)
	span.SetAttribute("http.route", route)
	span.SetAttribute("http.url", redactedURL(policy, c.Request.URL))

	for key, values := range c.Request.URL.Query() {
		if policy.Permit(redact.ClassQueryParam, key) {
			span.SetAttribute("http.query."+key, strings.Join(values, ","))
		}
	}

	for _, param := range c.Params {
		if policy.Permit(redact.ClassPathParam, param.Key) {
			span.SetAttribute("http.path."+param.Key, param.Value)
		}
	}

	for name, values := range c.Request.Header {
		if policy.PermitHeader(name) {
			span.SetAttribute("http.header."+strings.ToLower(name), strings.Join(values, ","))
		}
	}

	if policy.Permit(redact.ClassRequestBody, "http.request.body") && c.Request.Body != nil {
		// The body can only be read once; restore it for the handler.
		body, err := io.ReadAll(c.Request.Body)
		if err == nil {
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
			span.SetAttribute("http.request.body", policy.TruncateBody(string(body)))
		}
	}
}

// redactedURL renders the request URL with query parameters the policy would
// deny removed, so denylisted values cannot ride into the span inside the
// url attribute.
func redactedURL(policy redact.Policy, u *url.URL) string {
	if u.RawQuery == "" {
		return u.String()
	}

	query := u.Query()
	stripped := false
	for key := range query {
		if !policy.Permit(redact.ClassQueryParam, key) {
			query.Del(key)
			stripped = true
		}
	}
	if !stripped {
		return u.String()
	}

	clean := *u
	clean.RawQuery = query.Encode()
	return clean.String()
}

// bodyWriter tees the response body for capture.
type bodyWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
