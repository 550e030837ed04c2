// Package export ships sealed spans to an OTLP collector endpoint.
//
// The Batcher decouples the request path from the network: Submit enqueues
// and returns immediately, a background flusher forms batches and transmits
// them with bounded retry. Export failure is never surfaced to the wrapped
// call; spans that cannot be delivered are dropped and counted.
package export

import (
	"bytes"
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/tracelay/tracelay/config"
	"github.com/tracelay/tracelay/logging"
	"github.com/tracelay/tracelay/monitoring"
	"github.com/tracelay/tracelay/tracing"
)

// Batcher buffers sealed spans and flushes them as OTLP batches.
//
// Flush triggers: the buffer reaches BatchSize, or FlushInterval elapses
// since the oldest buffered span, whichever comes first.
type Batcher struct {
	cfg      config.ExportConfig
	resource Resource
	url      string

	client  *retryablehttp.Client
	logger  *logging.Logger
	metrics *monitoring.Metrics

	queue  chan *tracing.Span
	stop   chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

// BatcherOption customizes a Batcher.
type BatcherOption func(*Batcher)

// WithLogger sets the exporter logger.
func WithLogger(l *logging.Logger) BatcherOption {
	return func(b *Batcher) { b.logger = l }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *monitoring.Metrics) BatcherOption {
	return func(b *Batcher) { b.metrics = m }
}

// NewBatcher creates and starts a batching exporter. Configuration errors
// (malformed endpoint, unreadable TLS material) are returned so the caller
// can fail at startup rather than trace into the void.
func NewBatcher(cfg *config.Config, opts ...BatcherOption) (*Batcher, error) {
	url, err := cfg.Export.URL()
	if err != nil {
		return nil, err
	}

	b := &Batcher{
		cfg: cfg.Export,
		resource: Resource{
			ServiceName:    cfg.Service.Name,
			ServiceVersion: cfg.Service.Version,
			Environment:    cfg.Service.Environment,
		},
		url:    url,
		logger: logging.NewNop(),
		queue:  make(chan *tracing.Span, cfg.Export.QueueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	client, err := newHTTPClient(cfg.Export, b.logger)
	if err != nil {
		return nil, err
	}
	b.client = client

	go b.run()
	return b, nil
}

// Submit enqueues a sealed span for transmission. It never blocks: when the
// buffer is full or the batcher is shut down the span is dropped and
// counted, not the caller's problem.
func (b *Batcher) Submit(span *tracing.Span) {
	if span == nil {
		return
	}
	if b.closed.Load() {
		b.drop(monitoring.DropShutdown, 1)
		return
	}

	select {
	case b.queue <- span:
		if b.metrics != nil {
			b.metrics.QueueDepth.Set(float64(len(b.queue)))
		}
	default:
		b.drop(monitoring.DropQueueFull, 1)
		b.logger.Warn("span buffer full, dropping span",
			zap.String("trace_id", span.TraceID.String()),
			zap.String("span", span.Name),
		)
	}
}

// Shutdown stops the batcher and attempts a best-effort final flush, bounded
// by the context deadline.
func (b *Batcher) Shutdown(ctx context.Context) error {
	if b.closed.Swap(true) {
		return nil
	}
	close(b.stop)

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Batcher) run() {
	defer close(b.done)

	timer := time.NewTimer(b.cfg.FlushInterval)
	defer timer.Stop()

	var buf []*tracing.Span
	for {
		select {
		case span := <-b.queue:
			if len(buf) == 0 {
				// Interval counts from the oldest buffered span.
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(b.cfg.FlushInterval)
			}
			buf = append(buf, span)
			if len(buf) >= b.cfg.BatchSize {
				b.flush(buf)
				buf = nil
			}

		case <-timer.C:
			timer.Reset(b.cfg.FlushInterval)
			if len(buf) > 0 {
				b.flush(buf)
				buf = nil
			}

		case <-b.stop:
			b.drain(buf)
			return
		}
	}
}

// drain empties what is already queued and performs the final flush.
func (b *Batcher) drain(buf []*tracing.Span) {
	for {
		select {
		case span := <-b.queue:
			buf = append(buf, span)
			if len(buf) >= b.cfg.BatchSize {
				b.flush(buf)
				buf = nil
			}
		default:
			if len(buf) > 0 {
				b.flush(buf)
			}
			return
		}
	}
}

// flush transmits one batch. Spans join exactly one batch and batches go out
// in formation order; failures after retries drop the whole batch.
func (b *Batcher) flush(spans []*tracing.Span) {
	start := time.Now()

	payload, err := encodeBatch(b.resource, spans)
	if err != nil {
		b.drop(monitoring.DropExportFailed, len(spans))
		b.logger.Error("failed to encode span batch", zap.Error(err), zap.Int("spans", len(spans)))
		return
	}

	contentEncoding := ""
	if b.cfg.Compression {
		var compressed bytes.Buffer
		zw := gzip.NewWriter(&compressed)
		if _, err := zw.Write(payload); err == nil && zw.Close() == nil {
			payload = compressed.Bytes()
			contentEncoding = "gzip"
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.Timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(payload))
	if err != nil {
		b.drop(monitoring.DropExportFailed, len(spans))
		b.logger.Error("failed to build export request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if contentEncoding != "" {
		req.Header.Set("Content-Encoding", contentEncoding)
	}
	authorize(req, b.cfg)

	resp, err := b.client.Do(req)
	if err != nil {
		b.exportFailed(len(spans), err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b.exportFailed(len(spans), nil)
		b.logger.Warn("collector rejected span batch",
			zap.Int("status", resp.StatusCode),
			zap.Int("spans", len(spans)),
		)
		return
	}

	if b.metrics != nil {
		b.metrics.RecordExport(len(spans), time.Since(start))
		b.metrics.QueueDepth.Set(float64(len(b.queue)))
	}
	b.logger.Debug("exported span batch",
		zap.Int("spans", len(spans)),
		zap.Duration("took", time.Since(start)),
	)
}

func (b *Batcher) exportFailed(spans int, err error) {
	if b.metrics != nil {
		b.metrics.ExportFailures.Inc()
	}
	b.drop(monitoring.DropExportFailed, spans)
	if err != nil {
		b.logger.Warn("span export failed after retries", zap.Error(err), zap.Int("spans", spans))
	}
}

func (b *Batcher) drop(reason string, count int) {
	if b.metrics != nil {
		b.metrics.RecordDrop(reason, count)
	}
}
