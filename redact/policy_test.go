package redact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedDenylist(t *testing.T) {
	// Everything enabled; the denylist must still strip sensitive keys.
	policy := NewPolicy(Capture{
		QueryParams:  true,
		PathParams:   true,
		Headers:      true,
		RequestBody:  true,
		ResponseBody: true,
	})

	tests := []struct {
		name    string
		class   Class
		key     string
		allowed bool
	}{
		{"plain query param", ClassQueryParam, "page", true},
		{"password substring", ClassQueryParam, "user_password", false},
		{"password uppercase", ClassQueryParam, "PASSWORD", false},
		{"token substring", ClassQueryParam, "api_token", false},
		{"secret substring", ClassBase, "client_secret", false},
		{"authorization header", ClassHeader, "Authorization", false},
		{"proxy authorization header", ClassHeader, "Proxy-Authorization", false},
		{"content type header", ClassHeader, "Content-Type", true},
		{"base attribute", ClassBase, "http.method", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, policy.Permit(tt.class, tt.key))
		})
	}
}

func TestCaptureFlagsOff(t *testing.T) {
	policy := NewPolicy(Capture{})

	// With everything off, only base attributes pass.
	assert.True(t, policy.Permit(ClassBase, "http.route"))
	assert.False(t, policy.Permit(ClassQueryParam, "page"))
	assert.False(t, policy.Permit(ClassPathParam, "id"))
	assert.False(t, policy.Permit(ClassHeader, "Accept"))
	assert.False(t, policy.Permit(ClassRequestBody, "http.request.body"))
	assert.False(t, policy.Permit(ClassResponseBody, "http.response.body"))
}

func TestHeadersOffBeatsDenylist(t *testing.T) {
	// capture_headers=false must exclude headers the denylist would allow.
	policy := NewPolicy(Capture{QueryParams: true})

	assert.False(t, policy.PermitHeader("X-Request-Id"))
}

func TestExtraDenylist(t *testing.T) {
	policy := NewPolicy(Capture{Headers: true}, WithDenylist("cookie", "  SESSION  "))

	assert.False(t, policy.PermitHeader("Cookie"))
	assert.False(t, policy.PermitHeader("Set-Cookie"))
	assert.False(t, policy.Permit(ClassBase, "session_id"))
	assert.True(t, policy.PermitHeader("Accept"))
}

func TestTruncateBody(t *testing.T) {
	policy := NewPolicy(DefaultCapture(), WithMaxBodyBytes(8))

	assert.Equal(t, "short", policy.TruncateBody("short"))
	assert.Equal(t, "12345678", policy.TruncateBody("123456789"))

	// Default cap is 4 KB.
	def := NewPolicy(DefaultCapture())
	long := strings.Repeat("x", DefaultMaxBodyBytes+1)
	assert.Len(t, def.TruncateBody(long), DefaultMaxBodyBytes)
}
