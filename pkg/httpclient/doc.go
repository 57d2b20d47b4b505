// Package httpclient builds the HTTP client used for outbound Braze calls.
//
// Transports are layered, outermost first:
//   - pacing: a token bucket (golang.org/x/time/rate) caps requests per second
//   - retry: exponential backoff with jitter
//   - logging: sanitized URLs, User-Agent and correlation ID injection
//
// # Retry Behavior
//
// Idempotent methods (GET, HEAD, OPTIONS) are retried on transport errors,
// 408, 429 and 5xx. Non-idempotent methods are only retried when the server
// cannot have acted on the request: a 429 response or a refused connection.
// A POST that reached the server and failed with 5xx is never replayed,
// since a replayed campaign send reaches real recipients twice.
//
//	cfg := httpclient.DefaultConfig()
//	cfg.UserAgent = "brazegate/1.0"
//	client, err := httpclient.New(cfg)
package httpclient
