// Package config loads instrumentation configuration from the environment.
//
// Configuration is an explicitly constructed, immutable value passed to each
// component at construction time; there is no process-wide singleton. All
// options have documented defaults, so a bare environment yields a working
// tracer pointed at a local collector.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all instrumentation configuration.
type Config struct {
	// Enabled is the explicit fallback switch: when false the tracer is a
	// no-op and transport configuration is not validated.
	Enabled bool `envconfig:"TEMPO_ENABLED" default:"true"`

	Service  ServiceConfig
	Sampling SamplingConfig
	Capture  CaptureConfig
	Export   ExportConfig
	Logging  LogConfig
}

// ServiceConfig identifies the instrumented service on emitted spans.
type ServiceConfig struct {
	Name        string `envconfig:"SERVICE_NAME" default:"tracelay"`
	Version     string `envconfig:"SERVICE_VERSION" default:"1.0.0"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

// SamplingConfig controls which calls produce recorded spans.
type SamplingConfig struct {
	// Rate is the fraction of calls to sample, in [0, 1].
	Rate float64 `envconfig:"TEMPO_SAMPLE_RATE" default:"1.0"`
	// SpansPerSecond caps span creation with a token bucket when > 0.
	SpansPerSecond int `envconfig:"TEMPO_SPANS_PER_SECOND" default:"0"`
}

// CaptureConfig mirrors the redaction policy's capture flags.
type CaptureConfig struct {
	QueryParams  bool `envconfig:"TEMPO_CAPTURE_QUERY_PARAMS" default:"true"`
	PathParams   bool `envconfig:"TEMPO_CAPTURE_PATH_PARAMS" default:"true"`
	Headers      bool `envconfig:"TEMPO_CAPTURE_HEADERS" default:"false"`
	RequestBody  bool `envconfig:"TEMPO_CAPTURE_REQUEST_BODY" default:"false"`
	ResponseBody bool `envconfig:"TEMPO_CAPTURE_RESPONSE_BODY" default:"false"`

	// ExtraDenylist extends the fixed sensitive-key denylist.
	ExtraDenylist []string `envconfig:"TEMPO_DENYLIST" default:"cookie"`
	// MaxBodyBytes caps captured body attributes.
	MaxBodyBytes int `envconfig:"TEMPO_MAX_BODY_BYTES" default:"4096"`
}

// ExportConfig configures the OTLP/HTTP exporter.
type ExportConfig struct {
	// Endpoint is the collector host:port (OTLP/HTTP, usually :4318).
	Endpoint string `envconfig:"TEMPO_ENDPOINT" default:"localhost:4318"`
	// Insecure selects plaintext HTTP instead of TLS.
	Insecure   bool   `envconfig:"TEMPO_INSECURE" default:"true"`
	SkipVerify bool   `envconfig:"TEMPO_SKIP_VERIFY" default:"false"`
	CAFile     string `envconfig:"TEMPO_CA_FILE"`
	CertFile   string `envconfig:"TEMPO_CERT_FILE"`
	KeyFile    string `envconfig:"TEMPO_KEY_FILE"`

	Username    string `envconfig:"TEMPO_USERNAME"`
	Password    string `envconfig:"TEMPO_PASSWORD"`
	BearerToken string `envconfig:"TEMPO_BEARER_TOKEN"`

	Compression bool `envconfig:"TEMPO_COMPRESSION" default:"true"`

	QueueSize     int           `envconfig:"TEMPO_QUEUE_SIZE" default:"2048"`
	BatchSize     int           `envconfig:"TEMPO_BATCH_SIZE" default:"512"`
	FlushInterval time.Duration `envconfig:"TEMPO_FLUSH_INTERVAL" default:"5s"`
	Timeout       time.Duration `envconfig:"TEMPO_EXPORT_TIMEOUT" default:"10s"`

	RetryMax     int           `envconfig:"TEMPO_RETRY_MAX" default:"3"`
	RetryWaitMin time.Duration `envconfig:"TEMPO_RETRY_WAIT_MIN" default:"500ms"`
	RetryWaitMax time.Duration `envconfig:"TEMPO_RETRY_WAIT_MAX" default:"8s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load reads configuration from environment variables and validates it.
// Invalid tracing configuration is an error; callers are expected to treat
// it as fatal at startup rather than run with silently broken tracing.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the documented default configuration. It is constructed
// literally and never reads the process environment, so tests and embedders
// get the same values regardless of exported TEMPO_* variables. Keep in sync
// with the struct tag defaults Load applies.
func Default() *Config {
	return &Config{
		Enabled: true,
		Service: ServiceConfig{
			Name:        "tracelay",
			Version:     "1.0.0",
			Environment: "development",
		},
		Sampling: SamplingConfig{
			Rate: 1.0,
		},
		Capture: CaptureConfig{
			QueryParams:   true,
			PathParams:    true,
			ExtraDenylist: []string{"cookie"},
			MaxBodyBytes:  4096,
		},
		Export: ExportConfig{
			Endpoint:      "localhost:4318",
			Insecure:      true,
			Compression:   true,
			QueueSize:     2048,
			BatchSize:     512,
			FlushInterval: 5 * time.Second,
			Timeout:       10 * time.Second,
			RetryMax:      3,
			RetryWaitMin:  500 * time.Millisecond,
			RetryWaitMax:  8 * time.Second,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for startup-fatal mistakes. A disabled
// tracer skips transport checks: that is the explicit fallback mode.
func (c *Config) Validate() error {
	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		return fmt.Errorf("sample rate must be in [0, 1], got %v", c.Sampling.Rate)
	}
	if c.Sampling.SpansPerSecond < 0 {
		return fmt.Errorf("spans per second must not be negative, got %d", c.Sampling.SpansPerSecond)
	}
	if !c.Enabled {
		return nil
	}

	if _, err := c.Export.URL(); err != nil {
		return err
	}
	if c.Export.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive, got %d", c.Export.QueueSize)
	}
	if c.Export.BatchSize <= 0 || c.Export.BatchSize > c.Export.QueueSize {
		return fmt.Errorf("batch size must be in [1, queue size], got %d", c.Export.BatchSize)
	}
	if c.Export.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive, got %v", c.Export.FlushInterval)
	}
	if c.Export.RetryMax < 0 {
		return fmt.Errorf("retry max must not be negative, got %d", c.Export.RetryMax)
	}
	if c.Export.RetryWaitMin <= 0 || c.Export.RetryWaitMax < c.Export.RetryWaitMin {
		return fmt.Errorf("retry waits must satisfy 0 < min <= max, got %v..%v",
			c.Export.RetryWaitMin, c.Export.RetryWaitMax)
	}
	if c.Capture.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive, got %d", c.Capture.MaxBodyBytes)
	}
	return nil
}

// URL resolves the configured endpoint to the OTLP trace ingestion URL.
// Accepts bare host:port or a full http(s) URL.
func (e ExportConfig) URL() (string, error) {
	endpoint := strings.TrimSpace(e.Endpoint)
	if endpoint == "" {
		return "", fmt.Errorf("collector endpoint is empty")
	}

	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return "", fmt.Errorf("malformed collector endpoint %q", endpoint)
		}
		return strings.TrimSuffix(u.String(), "/") + "/v1/traces", nil
	}

	host, port, err := net.SplitHostPort(endpoint)
	if err != nil || host == "" || port == "" {
		return "", fmt.Errorf("malformed collector endpoint %q: want host:port", endpoint)
	}

	scheme := "https"
	if e.Insecure {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/v1/traces", scheme, net.JoinHostPort(host, port)), nil
}
