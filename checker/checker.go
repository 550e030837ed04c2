// Package checker verifies connectivity to the tracing backend: readiness
// polling before spans are sent, and trace lookup afterwards to confirm
// ingestion end to end.
package checker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/tracelay/tracelay/logging"
)

// Checker talks to the backend's query/health surface (Tempo port 3200).
type Checker struct {
	client *resty.Client
	logger *logging.Logger
}

// New creates a checker for the backend at baseURL.
func New(baseURL string, logger *logging.Logger) *Checker {
	if logger == nil {
		logger = logging.NewNop()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second)

	return &Checker{client: client, logger: logger}
}

// Ready probes the backend's readiness endpoint once.
func (c *Checker) Ready(ctx context.Context) error {
	resp, err := c.client.R().SetContext(ctx).Get("/ready")
	if err != nil {
		return fmt.Errorf("backend not reachable: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("backend not ready: status %d", resp.StatusCode())
	}
	return nil
}

// WaitReady polls the readiness endpoint until the backend answers or the
// context expires.
func (c *Checker) WaitReady(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := c.Ready(ctx)
		if err == nil {
			return nil
		}
		c.logger.Debug("backend not ready yet", zap.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("backend never became ready: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// FindTrace asks the backend whether it has ingested the given trace.
func (c *Checker) FindTrace(ctx context.Context, traceID string) (bool, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", traceID).
		Get("/api/traces/{id}")
	if err != nil {
		return false, fmt.Errorf("trace query failed: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected trace query status %d", resp.StatusCode())
	}
}

// WaitForTrace polls until the trace is queryable or the context expires.
// Ingestion is asynchronous on the backend side, so a fresh span takes a
// few seconds to become visible.
func (c *Checker) WaitForTrace(ctx context.Context, traceID string, interval time.Duration) (bool, error) {
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		found, err := c.FindTrace(ctx, traceID)
		if err == nil && found {
			return true, nil
		}
		if err != nil {
			c.logger.Debug("trace not queryable yet", zap.String("trace_id", traceID), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return false, nil
		case <-ticker.C:
		}
	}
}
