package httpclient

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Braze serves each workspace from a single REST host, so the idle pool is
// sized for one host.
const (
	idleConnsPerHost = 16
	idleConnTimeout  = 90 * time.Second
)

// New builds the client used for Braze calls. cfg.Timeout bounds a whole
// call, retries included.
func New(cfg Config) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &http.Client{
		Transport: chain(instrument(newBaseTransport(cfg.Timeout)), cfg, logger),
		Timeout:   cfg.Timeout,
	}, nil
}

// chain wraps base so that logging sees every attempt, retry replays
// through logging, and pacing admits each call once however often it is
// retried.
func chain(base http.RoundTripper, cfg Config, logger *slog.Logger) http.RoundTripper {
	rt := http.RoundTripper(newLoggingTransport(base, cfg.UserAgent, logger))
	if cfg.RetryAttempts > 0 {
		rt = newRetryTransport(rt, cfg)
	}
	if cfg.RequestsPerSecond > 0 {
		rt = newPacingTransport(rt, cfg.RequestsPerSecond, cfg.Burst)
	}
	return rt
}

// instrument records a client span per attempt and writes the W3C trace
// context headers of the calling span.
func instrument(base http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(base,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "braze " + r.Method + " " + r.URL.Path
		}),
	)
}

func newBaseTransport(responseTimeout time.Duration) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	t.MaxIdleConns = idleConnsPerHost
	t.MaxIdleConnsPerHost = idleConnsPerHost
	t.IdleConnTimeout = idleConnTimeout
	t.ResponseHeaderTimeout = responseTimeout
	return t
}
