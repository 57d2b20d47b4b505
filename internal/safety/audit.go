// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package safety

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tombee/brazegate/internal/tracing"
)

// CallResult is the audited outcome of one invocation.
type CallResult string

const (
	ResultSuccess CallResult = "success"
	ResultPreview CallResult = "preview"
	ResultDenied  CallResult = "denied"
	ResultFailed  CallResult = "failed"
)

// AuditEvent is one audited invocation.
type AuditEvent struct {
	Timestamp     time.Time     `json:"timestamp"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	Caller        string        `json:"caller,omitempty"`
	Operation     string        `json:"operation"`
	Destination   string        `json:"destination"`
	Result        CallResult    `json:"result"`
	Kind          Kind          `json:"kind,omitempty"`
	Message       string        `json:"message,omitempty"`
	Params        Params        `json:"parameters,omitempty"`
	Duration      time.Duration `json:"duration"`
}

type callerKey struct{}

// WithCaller records the authenticated principal making the call.
func WithCaller(ctx context.Context, caller string) context.Context {
	if caller == "" {
		return ctx
	}
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the principal set by WithCaller, or "".
func CallerFromContext(ctx context.Context) string {
	caller, _ := ctx.Value(callerKey{}).(string)
	return caller
}

// AuditSink receives one event per invocation. Record must not block for
// long; the dispatcher ignores sink failures.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent)
}

// AuditSinkFunc adapts a function to AuditSink.
type AuditSinkFunc func(ctx context.Context, event AuditEvent)

// Record calls f.
func (f AuditSinkFunc) Record(ctx context.Context, event AuditEvent) {
	f(ctx, event)
}

// MultiAuditSink fans each event out to every non-nil sink in order.
func MultiAuditSink(sinks ...AuditSink) AuditSink {
	var live []AuditSink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	if len(live) == 1 {
		return live[0]
	}
	return AuditSinkFunc(func(ctx context.Context, event AuditEvent) {
		for _, s := range live {
			s.Record(ctx, event)
		}
	})
}

// SlogAuditSink writes audit events as structured log records.
type SlogAuditSink struct {
	logger *slog.Logger
}

// NewSlogAuditSink creates a sink; a nil logger uses slog.Default.
func NewSlogAuditSink(logger *slog.Logger) *SlogAuditSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAuditSink{logger: logger.With(slog.String("component", "audit"))}
}

// Record logs successes and previews at info, denials and failures at warn.
func (s *SlogAuditSink) Record(ctx context.Context, e AuditEvent) {
	level := slog.LevelInfo
	if e.Result == ResultDenied || e.Result == ResultFailed {
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.Time("timestamp", e.Timestamp),
		slog.String("operation", e.Operation),
		slog.String("destination", e.Destination),
		slog.String("result", string(e.Result)),
		slog.Int64("duration_ms", e.Duration.Milliseconds()),
	}
	// Loggers from internal/log already add the context's correlation ID.
	if e.CorrelationID != "" && tracing.FromContextOrEmpty(ctx).String() != e.CorrelationID {
		attrs = append(attrs, slog.String("correlation_id", e.CorrelationID))
	}
	if e.Caller != "" {
		attrs = append(attrs, slog.String("caller", e.Caller))
	}
	if e.Kind != "" {
		attrs = append(attrs, slog.String("kind", string(e.Kind)))
	}
	if e.Message != "" {
		attrs = append(attrs, slog.String("message", e.Message))
	}
	if len(e.Params) > 0 {
		attrs = append(attrs, slog.Any("parameters", map[string]any(e.Params)))
	}

	s.logger.LogAttrs(ctx, level, "write operation audit", attrs...)
}

// sensitiveKeys are matched case-insensitively as substrings of map keys.
var sensitiveKeys = []string{
	"api_key", "apikey", "token", "secret", "password", "authorization",
	"email", "phone",
}

const redacted = "[REDACTED]"

// SanitizeParams returns a deep copy of params with sensitive values
// replaced by a redaction marker.
func SanitizeParams(params Params) Params {
	if params == nil {
		return nil
	}
	return Params(sanitizeMap(params))
}

func sanitizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if isSensitiveKey(k) {
			out[k] = redacted
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return sanitizeMap(val)
	case Params:
		return sanitizeMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
