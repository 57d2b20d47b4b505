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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/brazegate/internal/tracing"
	gateerrors "github.com/tombee/brazegate/pkg/errors"
)

const tracerName = "github.com/tombee/brazegate/internal/safety"

// maxListedOperations bounds the operation names echoed in an
// UnknownOperation detail.
const maxListedOperations = 10

// StatusError is implemented by executor errors that carry an upstream
// HTTP status and body.
type StatusError interface {
	error
	HTTPStatus() int
	ResponseBody() any
}

// ResultTransform post-processes success payloads with a filter
// expression.
type ResultTransform interface {
	Validate(expression string) error
	Execute(ctx context.Context, expression string, data any) (any, error)
}

// Dispatcher looks up operations, admits them through the gate and runs
// the admitted ones.
type Dispatcher struct {
	catalog     *Catalog
	gate        *Gate
	quota       Quota
	config      Config
	destination string

	audit     AuditSink
	transform ResultTransform
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithAuditSink sets the audit collaborator.
func WithAuditSink(sink AuditSink) DispatcherOption {
	return func(d *Dispatcher) { d.audit = sink }
}

// WithResultTransform enables result_filter support.
func WithResultTransform(t ResultTransform) DispatcherOption {
	return func(d *Dispatcher) { d.transform = t }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) { d.tracer = t }
}

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// WithQuota replaces the in-memory limiter, e.g. with a store shared
// between gateway processes.
func WithQuota(q Quota) DispatcherOption {
	return func(d *Dispatcher) { d.quota = q }
}

// WithGate replaces the default pipeline.
func WithGate(g *Gate) DispatcherOption {
	return func(d *Dispatcher) { d.gate = g }
}

// NewDispatcher wires a dispatcher over catalog for one destination. The
// default gate uses DefaultChecks with an in-memory Limiter built from cfg
// unless WithQuota supplies another store.
func NewDispatcher(catalog *Catalog, cfg Config, destination string, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		catalog:     catalog,
		config:      cfg,
		destination: destination,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.quota == nil {
		d.quota = NewLimiter(cfg.RateLimits())
	}
	if d.gate == nil {
		d.gate = NewGate(DefaultChecks(d.quota)...)
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	if d.audit == nil {
		d.audit = NewSlogAuditSink(d.logger)
	}
	return d
}

// Catalog returns the operation catalog.
func (d *Dispatcher) Catalog() *Catalog { return d.catalog }

// Config returns the safety configuration.
func (d *Dispatcher) Config() Config { return d.config }

// Destination returns the configured workspace identifier.
func (d *Dispatcher) Destination() string { return d.destination }

// Usage reports current rate-limit usage.
func (d *Dispatcher) Usage(ctx context.Context) ([]Usage, error) {
	return d.quota.Usage(ctx, d.now())
}

// Invoke runs one call through lookup, admission, validation and
// execution. It never returns nil and never returns a Go error: every
// expected failure is an error envelope.
func (d *Dispatcher) Invoke(ctx context.Context, name string, params Params, flags Flags) *Envelope {
	ctx, corrID := tracing.EnsureContext(ctx)
	ctx, span := d.tracer.Start(ctx, "safety.Invoke",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("brazegate.operation", name),
			attribute.String("brazegate.correlation_id", corrID.String()),
			attribute.Bool("brazegate.confirm", flags.Confirm),
		),
	)
	defer span.End()

	caller := CallerFromContext(ctx)
	if caller != "" {
		span.SetAttributes(attribute.String("brazegate.caller", caller))
	}
	if params == nil {
		params = Params{}
	}

	start := d.now()
	env := d.invoke(ctx, name, params, flags)

	result := resultOf(env)
	kind := Kind("")
	message := ""
	if env.Error != nil {
		kind = env.Error.Kind
		message = env.Error.Message
		span.SetStatus(codes.Error, string(kind))
		span.SetAttributes(attribute.String("brazegate.kind", string(kind)))
	}
	span.SetAttributes(attribute.String("brazegate.result", string(result)))

	admissionDecisions.WithLabelValues(d.operationLabel(name), string(result), string(kind)).Inc()

	d.audit.Record(ctx, AuditEvent{
		Timestamp:     start,
		CorrelationID: corrID.String(),
		Caller:        caller,
		Operation:     name,
		Destination:   d.destination,
		Result:        result,
		Kind:          kind,
		Message:       message,
		Params:        SanitizeParams(params),
		Duration:      d.now().Sub(start),
	})
	return env
}

func (d *Dispatcher) invoke(ctx context.Context, name string, params Params, flags Flags) *Envelope {
	desc, err := d.catalog.Lookup(name)
	if err != nil {
		return d.unknownOperation(name)
	}

	decision := d.gate.Admit(AdmissionContext{
		Ctx:         ctx,
		Operation:   desc,
		Params:      params,
		Flags:       flags,
		Config:      d.config,
		Destination: d.destination,
		Now:         d.now(),
	})

	if decision.Outcome == OutcomeDeny {
		return Failure(decision.Denial)
	}

	if env := d.validate(desc, params, flags); env != nil {
		return env
	}

	if decision.Outcome == OutcomePreview {
		return Preview(desc.Name, params)
	}

	return d.execute(ctx, desc, decision.Params, flags)
}

func (d *Dispatcher) validate(desc Descriptor, params Params, flags Flags) *Envelope {
	if desc.Validate != nil {
		if err := desc.Validate(params); err != nil {
			return InvalidParameters(err)
		}
	}
	if flags.ResultFilter != "" {
		if d.transform == nil {
			return Failed(KindInvalidParameters, "result_filter is not supported by this server", map[string]any{"field": "result_filter"})
		}
		if err := d.transform.Validate(flags.ResultFilter); err != nil {
			return InvalidParameters(err)
		}
	}
	return nil
}

func (d *Dispatcher) execute(ctx context.Context, desc Descriptor, params Params, flags Flags) *Envelope {
	start := time.Now()
	result, err := desc.Execute(ctx, params)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		executorDuration.WithLabelValues(desc.Name, "error").Observe(elapsed)
		d.logger.WarnContext(ctx, "remote execution failed",
			slog.String("operation", desc.Name),
			slog.Any("error", err),
		)
		return executionFailure(desc.Name, err)
	}
	executorDuration.WithLabelValues(desc.Name, "success").Observe(elapsed)

	if flags.ResultFilter == "" || d.transform == nil {
		return Success(result)
	}

	filtered, err := d.transform.Execute(ctx, flags.ResultFilter, result)
	if err != nil {
		env := Success(result)
		env.Warning = fmt.Sprintf("result_filter failed, returning unfiltered result: %v", err)
		return env
	}
	return Success(filtered)
}

func (d *Dispatcher) operationLabel(name string) string {
	if _, err := d.catalog.Lookup(name); err != nil {
		return unknownOperationLabel
	}
	return name
}

func (d *Dispatcher) unknownOperation(name string) *Envelope {
	names := d.catalog.Names()
	listed := names
	if len(listed) > maxListedOperations {
		listed = listed[:maxListedOperations]
	}
	return Failed(KindUnknownOperation,
		fmt.Sprintf("Function '%s' is not available", name),
		map[string]any{
			"available_operations": listed,
			"total_available":      len(names),
			"suggestion":           "Use list_functions to see all available functions",
		},
	)
}

// InvalidParameters builds the failure envelope for a malformed call.
func InvalidParameters(err error) *Envelope {
	detail := map[string]any{}
	var verr *gateerrors.ValidationError
	if errors.As(err, &verr) {
		if verr.Field != "" {
			detail["field"] = verr.Field
		}
		if verr.Suggestion != "" {
			detail["suggestion"] = verr.Suggestion
		}
	}
	return Failed(KindInvalidParameters, err.Error(), detail)
}

func executionFailure(operation string, err error) *Envelope {
	var verr *gateerrors.ValidationError
	if errors.As(err, &verr) {
		return InvalidParameters(err)
	}

	detail := map[string]any{"operation": operation}
	var serr StatusError
	if errors.As(err, &serr) {
		detail["status"] = serr.HTTPStatus()
		if body := serr.ResponseBody(); body != nil {
			detail["body"] = body
		}
	}
	if class := gateerrors.Classify(err); class != "" {
		detail["error_type"] = class
		detail["retryable"] = gateerrors.IsRetryable(err)
	}
	if s := gateerrors.SuggestionOf(err); s != "" {
		detail["suggestion"] = s
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		detail["cancelled"] = true
	}
	return Failed(KindRemoteExecutionFailed,
		fmt.Sprintf("Operation '%s' failed: %v", operation, err),
		detail,
	)
}

func resultOf(env *Envelope) CallResult {
	switch {
	case env.Error == nil && env.DryRun:
		return ResultPreview
	case env.Error == nil:
		return ResultSuccess
	case env.Error.Kind == KindRemoteExecutionFailed:
		return ResultFailed
	default:
		return ResultDenied
	}
}
