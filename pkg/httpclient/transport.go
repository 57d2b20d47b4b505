package httpclient

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/tombee/brazegate/internal/tracing"
)

// loggingTransport logs each attempt with a sanitized URL and injects the
// User-Agent and correlation ID headers.
type loggingTransport struct {
	base      http.RoundTripper
	userAgent string
	logger    *slog.Logger
}

func newLoggingTransport(base http.RoundTripper, userAgent string, logger *slog.Logger) *loggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingTransport{base: base, userAgent: userAgent, logger: logger}
}

// RoundTrip implements http.RoundTripper.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	tracing.InjectIntoRequest(req.Context(), req)

	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start).Milliseconds()
	target := logURL(req.URL)

	if err != nil {
		t.logger.WarnContext(req.Context(), "http request failed",
			"method", req.Method,
			"url", target,
			"duration_ms", duration,
			"error", err.Error(),
		)
		return nil, err
	}

	level := slog.LevelDebug
	if resp.StatusCode >= 400 {
		level = slog.LevelWarn
	}
	t.logger.Log(req.Context(), level, "http request",
		"method", req.Method,
		"url", target,
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}

// pacingTransport blocks each request on a token bucket so bursts of tool
// calls do not trip Braze's own per-key rate limits.
type pacingTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func newPacingTransport(base http.RoundTripper, rps float64, burst int) *pacingTransport {
	if burst < 1 {
		burst = 1
	}
	return &pacingTransport{base: base, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// RoundTrip implements http.RoundTripper.
func (t *pacingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}
