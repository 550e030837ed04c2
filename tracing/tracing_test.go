package tracing

import (
	"sync"

	"github.com/tracelay/tracelay/config"
)

// captureExporter collects sealed spans for assertions.
type captureExporter struct {
	mu    sync.Mutex
	spans []*Span
}

func (c *captureExporter) Submit(span *Span) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = append(c.spans, span)
}

func (c *captureExporter) all() []*Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Span(nil), c.spans...)
}

func (c *captureExporter) last() *Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.spans) == 0 {
		return nil
	}
	return c.spans[len(c.spans)-1]
}

// newTestTracer builds a tracer with default configuration, full sampling
// and a capture exporter.
func newTestTracer(mutate func(*config.Config), opts ...Option) (*Tracer, *captureExporter) {
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}

	exporter := &captureExporter{}
	opts = append([]Option{WithExporter(exporter)}, opts...)
	return New(cfg, opts...), exporter
}
