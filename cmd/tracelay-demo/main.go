// Command tracelay-demo is a small API service wired with the full
// instrumentation stack: route tracing, traced store operations, Prometheus
// metrics, and a batching OTLP exporter with graceful flush on shutdown.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tracelay/tracelay/config"
	"github.com/tracelay/tracelay/export"
	"github.com/tracelay/tracelay/logging"
	"github.com/tracelay/tracelay/monitoring"
	"github.com/tracelay/tracelay/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid tracing configuration: %v", err)
	}

	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}
	defer logger.Sync() //nolint:errcheck

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	var exporter tracing.Submitter
	var batcher *export.Batcher
	if cfg.Enabled {
		batcher, err = export.NewBatcher(cfg,
			export.WithLogger(logger.Named("export")),
			export.WithMetrics(metrics),
		)
		if err != nil {
			log.Fatalf("invalid exporter configuration: %v", err)
		}
		exporter = batcher
	}

	tracer := tracing.New(cfg,
		tracing.WithExporter(exporter),
		tracing.WithLogger(logger.Named("tracing")),
		tracing.WithMetrics(metrics),
	)

	store := newUserStore(tracer)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(monitoring.Middleware(metrics))
	router.Use(tracing.Middleware(tracer))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.Service.Name})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	router.GET("/users/:id", func(c *gin.Context) {
		user, err := store.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, errUserNotFound) {
				status = http.StatusNotFound
			}
			c.Error(err) //nolint:errcheck
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, user)
	})

	router.POST("/users", func(c *gin.Context) {
		var user User
		if err := c.ShouldBindJSON(&user); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		created, err := store.Insert(c.Request.Context(), user)
		if err != nil {
			c.Error(err) //nolint:errcheck
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, created)
	})

	srv := &http.Server{
		Addr:    ":8000",
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("demo service listening",
			zap.String("addr", srv.Addr),
			zap.String("service", cfg.Service.Name),
			zap.Bool("tracing", cfg.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown incomplete", zap.Error(err))
	}
	if batcher != nil {
		// Best-effort final flush so in-flight spans reach the collector.
		if err := batcher.Shutdown(shutdownCtx); err != nil {
			logger.Warn("span flush incomplete", zap.Error(err))
		}
	}
}
