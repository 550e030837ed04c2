// Command tempocheck verifies a span pipeline end to end: it waits for the
// tracing backend to become ready, emits a test span through the real
// exporter, queries the span back out, and can render the Grafana datasource
// provisioning file for the backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/tracelay/tracelay/checker"
	"github.com/tracelay/tracelay/config"
	"github.com/tracelay/tracelay/export"
	"github.com/tracelay/tracelay/logging"
	"github.com/tracelay/tracelay/provision"
	"github.com/tracelay/tracelay/tracing"
)

func main() {
	queryURL := flag.String("query-url", "http://localhost:3200", "Backend query/health base URL")
	wait := flag.Duration("wait", 30*time.Second, "How long to wait for readiness and trace visibility")
	datasourceOut := flag.String("datasource-out", "", "Write a Grafana datasource provisioning file to this path and exit")
	skipSend := flag.Bool("skip-send", false, "Only check readiness, do not send a test span")
	flag.Parse()

	if err := run(*queryURL, *wait, *datasourceOut, *skipSend); err != nil {
		fmt.Fprintln(os.Stderr, "tempocheck:", err)
		os.Exit(1)
	}
}

func run(queryURL string, wait time.Duration, datasourceOut string, skipSend bool) error {
	if datasourceOut != "" {
		data, err := provision.Render(provision.Tempo("Tempo", queryURL))
		if err != nil {
			return err
		}
		if err := os.WriteFile(datasourceOut, data, 0o644); err != nil {
			return err
		}
		fmt.Println("datasource file written to", datasourceOut)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.Enabled && !skipSend {
		return fmt.Errorf("tracing is disabled (TEMPO_ENABLED=false), nothing to verify")
	}

	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	check := checker.New(queryURL, logger)
	if err := check.WaitReady(ctx, 2*time.Second); err != nil {
		return err
	}
	logger.Info("backend is ready", zap.String("url", queryURL))

	if skipSend {
		return nil
	}

	batcher, err := export.NewBatcher(cfg, export.WithLogger(logger))
	if err != nil {
		return err
	}

	tracer := tracing.New(cfg,
		tracing.WithExporter(batcher),
		tracing.WithLogger(logger),
		tracing.WithSampler(tracing.Always()),
	)

	endpoint, _ := cfg.Export.URL()
	span, _ := tracer.StartSpan(context.Background(), "tempo-connection-test")
	span.SetAttribute("tempo.test", true)
	span.SetAttribute("tempo.endpoint", endpoint)
	traceID := span.TraceID.String()
	tracer.End(span)

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	if err := batcher.Shutdown(flushCtx); err != nil {
		return fmt.Errorf("test span flush incomplete: %w", err)
	}
	logger.Info("test span sent", zap.String("trace_id", traceID))

	found, err := check.WaitForTrace(ctx, traceID, 2*time.Second)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("test span %s was not queryable within %s", traceID, wait)
	}

	fmt.Println("trace pipeline OK, trace id:", traceID)
	return nil
}
