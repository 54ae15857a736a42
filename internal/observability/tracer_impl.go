// Copyright 2026 The Orchestrator Kernel Authors
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

package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry tracer with the domain-specific span
// helpers the kernel's components call (agent runs, LLM requests, tool
// execution, memory lookups), plus an optional in-memory DebugExporter
// for local UI inspection.
type Tracer struct {
	tracer          trace.Tracer
	provider        *sdktrace.TracerProvider
	debugExporter   *DebugExporter
	capturePayloads bool
}

// TracerOption configures a Tracer at construction time.
type TracerOption func(*tracerOptions)

type tracerOptions struct {
	debugExporter   *DebugExporter
	capturePayloads bool
}

// WithDebugExporter attaches an in-memory DebugExporter that additionally
// receives every captured span, alongside the configured remote exporter.
func WithDebugExporter(d *DebugExporter) TracerOption {
	return func(o *tracerOptions) { o.debugExporter = d }
}

// WithCapturePayloads enables AddPayload/AddToolPayload actually recording
// their string arguments as span attributes, rather than being no-ops.
func WithCapturePayloads(enabled bool) TracerOption {
	return func(o *tracerOptions) { o.capturePayloads = enabled }
}

// NewTracer builds a Tracer from cfg, wiring a batch span processor over
// the configured exporter (otlp or stdout; jaeger/zipkin are accepted by
// TracingConfig.Validate for forward compatibility but fall back to otlp
// here, matching the teacher's own single-exporter-path tracer setup).
func NewTracer(ctx context.Context, cfg *TracingConfig, opts ...TracerOption) (*Tracer, error) {
	var o tracerOptions
	for _, opt := range opts {
		opt(&o)
	}

	exporter, err := buildSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	}
	if o.debugExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(o.debugExporter))
	}

	provider := sdktrace.NewTracerProvider(tpOpts...)

	return &Tracer{
		tracer:          provider.Tracer(DefaultServiceName),
		provider:        provider,
		debugExporter:   o.debugExporter,
		capturePayloads: o.capturePayloads,
	}, nil
}

func buildSpanExporter(ctx context.Context, cfg *TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		var exp *otlptrace.Exporter
		var err error
		if cfg.IsInsecure() {
			exp, err = otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
		} else {
			exp, err = otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint))
		}
		if err != nil {
			return nil, fmt.Errorf("build otlp exporter: %w", err)
		}
		return exp, nil
	}
}

// Start begins a generic span.
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// StartAgentRun begins a SpanAgentCall span describing one kernel request
// cycle (sessionID/eventID/intent/userMessage excerpt/mode).
func (t *Tracer) StartAgentRun(ctx context.Context, sessionID, eventID, intent, mode, excerpt string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanAgentCall, trace.WithAttributes(
		attribute.String(AttrKernelEventID, eventID),
		attribute.String("session.id", sessionID),
		attribute.String("intent", intent),
		attribute.String("mode", mode),
		attribute.String("message.excerpt", excerpt),
	))
}

// StartLLMCall begins a SpanLLMRequest span for one model invocation.
func (t *Tracer) StartLLMCall(ctx context.Context, model string, maxTokens int, temperature, timeoutSeconds float64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanLLMRequest, trace.WithAttributes(
		attribute.String(AttrLLMModel, model),
		attribute.Int("llm.max_tokens", maxTokens),
		attribute.Float64("llm.temperature", temperature),
		attribute.Float64("llm.timeout_seconds", timeoutSeconds),
	))
}

// StartToolExecution begins a SpanToolExecution span for one Tool-Client
// call.
func (t *Tracer) StartToolExecution(ctx context.Context, tool, action, sessionID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanToolExecution, trace.WithAttributes(
		attribute.String(AttrToolName, tool),
		attribute.String("tool.action", action),
		attribute.String("session.id", sessionID),
	))
}

// StartMemorySearch begins a SpanMemoryLookup span for one Session Memory
// or Document Store query.
func (t *Tracer) StartMemorySearch(ctx context.Context, source string, topK int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanMemoryLookup, trace.WithAttributes(
		attribute.String("memory.source", source),
		attribute.Int("memory.top_k", topK),
	))
}

// AddLLMUsage records token usage on an in-flight LLM span.
func (t *Tracer) AddLLMUsage(span trace.Span, inputTokens, outputTokens int) {
	span.SetAttributes(
		attribute.Int(AttrLLMTokensInput, inputTokens),
		attribute.Int(AttrLLMTokensOutput, outputTokens),
	)
}

// AddLLMFinishReason records why an LLM call stopped generating.
func (t *Tracer) AddLLMFinishReason(span trace.Span, reason string) {
	span.SetAttributes(attribute.String("llm.finish_reason", reason))
}

// AddPayload attaches a request/response payload pair to span, only when
// the Tracer was built WithCapturePayloads(true).
func (t *Tracer) AddPayload(span trace.Span, request, response string) {
	if !t.capturePayloads {
		return
	}
	span.SetAttributes(
		attribute.String("llm.request", request),
		attribute.String("llm.response", response),
	)
}

// AddToolPayload attaches a tool call's args/result pair to span, only
// when the Tracer was built WithCapturePayloads(true).
func (t *Tracer) AddToolPayload(span trace.Span, args, result string) {
	if !t.capturePayloads {
		return
	}
	span.SetAttributes(
		attribute.String("tool.args", args),
		attribute.String("tool.result", result),
	)
}

// RecordError records err on span and marks it as failed.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(AttrErrorType, err.Error()))
}

// DebugExporter returns the Tracer's attached DebugExporter, or nil.
func (t *Tracer) DebugExporter() *DebugExporter {
	return t.debugExporter
}

// Shutdown flushes and stops the underlying TracerProvider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
