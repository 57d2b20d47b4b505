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

package log

import (
	"context"
	"log/slog"
	"time"
)

// ToolCall describes an MCP tool invocation for logging purposes.
type ToolCall struct {
	// Tool is the MCP tool name (e.g., "call_function").
	Tool string

	// Operation is the catalog operation targeted by the call, if any.
	// The correlation ID comes from the context.
	Operation string
}

// ToolResult describes the outcome of an MCP tool invocation.
type ToolResult struct {
	// Success is false when the tool returned an error envelope.
	Success bool

	// Kind is the error kind for failed calls.
	Kind string

	// DurationMs is the duration of the call in milliseconds.
	DurationMs int64
}

func (c *ToolCall) attrs() []any {
	attrs := []any{"tool", c.Tool}
	if c.Operation != "" {
		attrs = append(attrs, OperationKey, c.Operation)
	}
	return attrs
}

// LogToolCall logs an incoming tool call at debug level.
func LogToolCall(ctx context.Context, logger *slog.Logger, call *ToolCall) {
	attrs := append([]any{EventKey, "tool_call"}, call.attrs()...)
	logger.DebugContext(ctx, "tool call received", attrs...)
}

// LogToolResult logs the completion of a tool call. Failed calls are
// logged at warn since most failures are expected refusals.
func LogToolResult(ctx context.Context, logger *slog.Logger, call *ToolCall, res *ToolResult) {
	attrs := append([]any{EventKey, "tool_result"}, call.attrs()...)
	attrs = append(attrs, "success", res.Success, DurationKey, res.DurationMs)
	if res.Kind != "" {
		attrs = append(attrs, KindKey, res.Kind)
	}

	level := slog.LevelInfo
	message := "tool call completed"
	if !res.Success {
		level = slog.LevelWarn
		message = "tool call refused or failed"
	}
	logger.Log(ctx, level, message, attrs...)
}

// ToolMiddleware wraps tool handlers with request and result logging.
type ToolMiddleware struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewToolMiddleware creates a new tool logging middleware.
func NewToolMiddleware(logger *slog.Logger) *ToolMiddleware {
	return &ToolMiddleware{logger: logger, now: time.Now}
}

// Handle runs handler, logging the call and its result. The handler
// reports whether it succeeded and, if not, the failure kind.
func (m *ToolMiddleware) Handle(ctx context.Context, call *ToolCall, handler func() (bool, string)) {
	start := m.now()
	LogToolCall(ctx, m.logger, call)

	ok, kind := handler()

	LogToolResult(ctx, m.logger, call, &ToolResult{
		Success:    ok,
		Kind:       kind,
		DurationMs: m.now().Sub(start).Milliseconds(),
	})
}
