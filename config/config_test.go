package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "tracelay", cfg.Service.Name)
	assert.Equal(t, 1.0, cfg.Sampling.Rate)
	assert.True(t, cfg.Capture.QueryParams)
	assert.True(t, cfg.Capture.PathParams)
	assert.False(t, cfg.Capture.Headers)
	assert.False(t, cfg.Capture.RequestBody)
	assert.False(t, cfg.Capture.ResponseBody)
	assert.Equal(t, []string{"cookie"}, cfg.Capture.ExtraDenylist)
	assert.Equal(t, 4096, cfg.Capture.MaxBodyBytes)
	assert.Equal(t, "localhost:4318", cfg.Export.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Export.FlushInterval)
}

func TestDefaultIgnoresEnvironment(t *testing.T) {
	t.Setenv("TEMPO_SAMPLE_RATE", "0.25")
	t.Setenv("TEMPO_ENDPOINT", "somewhere-else:9999")
	t.Setenv("SERVICE_NAME", "not-the-default")

	cfg := Default()
	assert.Equal(t, 1.0, cfg.Sampling.Rate)
	assert.Equal(t, "localhost:4318", cfg.Export.Endpoint)
	assert.Equal(t, "tracelay", cfg.Service.Name)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("TEMPO_SAMPLE_RATE", "0.25")
	t.Setenv("SERVICE_NAME", "orders")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.Sampling.Rate)
	assert.Equal(t, "orders", cfg.Service.Name)
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("TEMPO_SAMPLE_RATE", "not a number")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"rate below zero", func(cfg *Config) { cfg.Sampling.Rate = -0.1 }},
		{"rate above one", func(cfg *Config) { cfg.Sampling.Rate = 1.5 }},
		{"negative spans per second", func(cfg *Config) { cfg.Sampling.SpansPerSecond = -1 }},
		{"empty endpoint", func(cfg *Config) { cfg.Export.Endpoint = "" }},
		{"endpoint without port", func(cfg *Config) { cfg.Export.Endpoint = "tempo.internal" }},
		{"endpoint with bad scheme", func(cfg *Config) { cfg.Export.Endpoint = "ftp://tempo:4318" }},
		{"zero queue size", func(cfg *Config) { cfg.Export.QueueSize = 0 }},
		{"batch larger than queue", func(cfg *Config) {
			cfg.Export.QueueSize = 10
			cfg.Export.BatchSize = 11
		}},
		{"zero flush interval", func(cfg *Config) { cfg.Export.FlushInterval = 0 }},
		{"negative retry max", func(cfg *Config) { cfg.Export.RetryMax = -1 }},
		{"retry waits inverted", func(cfg *Config) {
			cfg.Export.RetryWaitMin = time.Second
			cfg.Export.RetryWaitMax = time.Millisecond
		}},
		{"zero body cap", func(cfg *Config) { cfg.Capture.MaxBodyBytes = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateDisabledSkipsTransportChecks(t *testing.T) {
	cfg := Default()
	cfg.Enabled = false
	cfg.Export.Endpoint = "not an endpoint"

	assert.NoError(t, cfg.Validate(), "fallback mode must not require a working exporter")

	// Sampling bounds still apply.
	cfg.Sampling.Rate = 2
	assert.Error(t, cfg.Validate())
}

func TestExportURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		insecure bool
		want     string
	}{
		{"host port insecure", "localhost:4318", true, "http://localhost:4318/v1/traces"},
		{"host port tls", "tempo.internal:4318", false, "https://tempo.internal:4318/v1/traces"},
		{"full http url", "http://tempo:4318", false, "http://tempo:4318/v1/traces"},
		{"full url trailing slash", "https://tempo:4318/", true, "https://tempo:4318/v1/traces"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ExportConfig{Endpoint: tt.endpoint, Insecure: tt.insecure}
			got, err := e.URL()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
