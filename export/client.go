package export

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/tracelay/tracelay/config"
	"github.com/tracelay/tracelay/logging"
)

// newHTTPClient builds the retrying transport for batch transmission.
// Retry policy: bounded exponential backoff between RetryWaitMin and
// RetryWaitMax for up to RetryMax attempts, the library's default curve.
func newHTTPClient(cfg config.ExportConfig, logger *logging.Logger) (*retryablehttp.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if !cfg.Insecure {
		tlsCfg, err := tlsConfig(cfg)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = tlsCfg
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = cfg.RetryWaitMin
	client.RetryWaitMax = cfg.RetryWaitMax
	client.Logger = retryLogger{logger: logger}
	return client, nil
}

// tlsConfig assembles TLS material: optional private CA and optional mutual
// TLS client certificate, with a skip-verify escape hatch for lab setups.
func tlsConfig(cfg config.ExportConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.SkipVerify,
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in CA file %s", cfg.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}

// authorize applies the configured credentials to an export request.
// Bearer tokens win over basic auth when both are set.
func authorize(req *retryablehttp.Request, cfg config.ExportConfig) {
	switch {
	case cfg.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+cfg.BearerToken)
	case cfg.Username != "" && cfg.Password != "":
		req.SetBasicAuth(cfg.Username, cfg.Password)
	}
}

// retryLogger adapts zap to retryablehttp's leveled logger.
type retryLogger struct {
	logger *logging.Logger
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.logger.Sugar().Errorw(msg, kv...) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.logger.Sugar().Warnw(msg, kv...) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.logger.Sugar().Debugw(msg, kv...) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.logger.Sugar().Debugw(msg, kv...) }
