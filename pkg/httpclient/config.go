package httpclient

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Config controls timeouts, retries and pacing for outbound Braze calls.
//
// Timeout bounds a whole call including retries. RetryBackoff is the first
// delay; later delays double up to MaxBackoff. RequestsPerSecond of 0
// turns pacing off, and Burst falls back to 1 when pacing is on.
type Config struct {
	Timeout           time.Duration
	RetryAttempts     int
	RetryBackoff      time.Duration
	MaxBackoff        time.Duration
	RequestsPerSecond float64
	Burst             int
	UserAgent         string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig stays under Braze's documented per-endpoint limits for a
// single gateway process.
func DefaultConfig() Config {
	return Config{
		Timeout:           30 * time.Second,
		RetryAttempts:     2,
		RetryBackoff:      200 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		RequestsPerSecond: 10,
		Burst:             1,
		UserAgent:         "brazegate-http-client/1.0",
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(bad bool, format string, args ...any) {
		if bad {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Timeout <= 0, "timeout must be > 0, got %v", c.Timeout)
	check(c.RetryAttempts < 0, "retry_attempts must be >= 0, got %d", c.RetryAttempts)
	if c.RetryAttempts > 0 {
		check(c.RetryBackoff <= 0, "retry_backoff must be > 0 when retries are enabled, got %v", c.RetryBackoff)
		check(c.RetryBackoff > 0 && c.MaxBackoff < c.RetryBackoff,
			"max_backoff (%v) must be >= retry_backoff (%v)", c.MaxBackoff, c.RetryBackoff)
	}
	check(c.RequestsPerSecond < 0, "requests_per_second must be >= 0, got %v", c.RequestsPerSecond)
	check(c.UserAgent == "", "user_agent must not be empty")

	return errors.Join(errs...)
}
