// Package redact decides which request and operation fields are safe to
// attach to a span.
//
// Two mechanisms compose:
//   - Capture flags switch whole attribute classes (query params, path
//     params, headers, request/response bodies) on or off.
//   - A denylist of sensitive key substrings is applied regardless of the
//     capture flags. Matching is case-insensitive and applies to attribute
//     keys and header names alike.
package redact

import "strings"

// Class identifies the source of a candidate attribute.
type Class int

const (
	// ClassBase covers attributes the wrapper always records, such as
	// http.method or db.operation. Only the denylist applies.
	ClassBase Class = iota
	ClassQueryParam
	ClassPathParam
	ClassHeader
	ClassRequestBody
	ClassResponseBody
)

// Sensitive key substrings that are always stripped, independent of
// configuration.
var fixedDenylist = []string{"password", "token", "secret", "authorization"}

// Capture enumerates which attribute classes may be recorded.
type Capture struct {
	QueryParams  bool
	PathParams   bool
	Headers      bool
	RequestBody  bool
	ResponseBody bool
}

// DefaultCapture mirrors the defaults of the route decorator this policy
// descends from: params on, headers and bodies off.
func DefaultCapture() Capture {
	return Capture{
		QueryParams: true,
		PathParams:  true,
	}
}

// Policy is an immutable redaction decision table.
type Policy struct {
	capture      Capture
	denylist     []string
	maxBodyBytes int
}

// DefaultMaxBodyBytes caps captured body attributes at 4 KB.
const DefaultMaxBodyBytes = 4096

// Option customizes a Policy.
type Option func(*Policy)

// WithDenylist adds extra sensitive key substrings.
func WithDenylist(keys ...string) Option {
	return func(p *Policy) {
		for _, k := range keys {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				p.denylist = append(p.denylist, k)
			}
		}
	}
}

// WithMaxBodyBytes overrides the captured-body size cap.
func WithMaxBodyBytes(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.maxBodyBytes = n
		}
	}
}

// NewPolicy builds a policy from capture flags. The fixed denylist is always
// present; options may extend it.
func NewPolicy(capture Capture, opts ...Option) Policy {
	p := Policy{
		capture:      capture,
		denylist:     append([]string(nil), fixedDenylist...),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Permit reports whether an attribute with the given class and key may be
// recorded on a span.
func (p Policy) Permit(class Class, key string) bool {
	switch class {
	case ClassQueryParam:
		if !p.capture.QueryParams {
			return false
		}
	case ClassPathParam:
		if !p.capture.PathParams {
			return false
		}
	case ClassHeader:
		if !p.capture.Headers {
			return false
		}
	case ClassRequestBody:
		if !p.capture.RequestBody {
			return false
		}
	case ClassResponseBody:
		if !p.capture.ResponseBody {
			return false
		}
	}
	return !p.denied(key)
}

// PermitHeader reports whether the named header may be recorded.
func (p Policy) PermitHeader(name string) bool {
	return p.Permit(ClassHeader, name)
}

// TruncateBody trims a captured body to the configured cap.
func (p Policy) TruncateBody(body string) string {
	if len(body) > p.maxBodyBytes {
		return body[:p.maxBodyBytes]
	}
	return body
}

func (p Policy) denied(key string) bool {
	lower := strings.ToLower(key)
	for _, deny := range p.denylist {
		if strings.Contains(lower, deny) {
			return true
		}
	}
	return false
}
