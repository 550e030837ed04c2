// Package id provides centralized trace and span identifier generation.
//
// Identifiers follow the W3C trace-context sizes used by OTLP backends:
//   - TraceID: 16 random bytes, rendered as 32 lowercase hex characters
//   - SpanID: 8 random bytes, rendered as 16 lowercase hex characters
//
// Generation is safe for concurrent use.
package id

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// TraceID identifies all spans of one logical request.
type TraceID [16]byte

// SpanID identifies a single span within a trace.
type SpanID [8]byte

// NewTraceID returns a random trace identifier.
func NewTraceID() TraceID {
	// A v4 UUID is 16 random bytes, exactly the OTLP trace id width.
	return TraceID(uuid.New())
}

// NewSpanID returns a random span identifier.
func NewSpanID() SpanID {
	var sid SpanID
	// rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(sid[:])
	return sid
}

// IsZero reports whether the trace id is unset.
func (t TraceID) IsZero() bool { return t == TraceID{} }

// IsZero reports whether the span id is unset.
func (s SpanID) IsZero() bool { return s == SpanID{} }

func (t TraceID) String() string { return hex.EncodeToString(t[:]) }

func (s SpanID) String() string { return hex.EncodeToString(s[:]) }

// ParseTraceID decodes a 32-character hex trace id.
func ParseTraceID(s string) (TraceID, bool) {
	var t TraceID
	if len(s) != 32 {
		return t, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return t, false
	}
	copy(t[:], b)
	return t, !t.IsZero()
}

// ParseSpanID decodes a 16-character hex span id.
func ParseSpanID(s string) (SpanID, bool) {
	var sid SpanID
	if len(s) != 16 {
		return sid, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return sid, false
	}
	copy(sid[:], b)
	return sid, !sid.IsZero()
}
