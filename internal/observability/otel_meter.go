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

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// otelBridge hosts the subset of kernel metrics recorded through the OTel
// metrics API instead of direct prometheus client calls. Its reader
// publishes into the same prometheus.Registry as Metrics, so both styles
// surface on one /metrics endpoint. Grounded on the teacher's otel-metric
// instrument fields (pkg/observability/recorder.go) wired to an actual
// Prometheus bridge reader here.
type otelBridge struct {
	provider          *sdkmetric.MeterProvider
	httpRequestsTotal metric.Int64Counter
	toolCallsTotal    metric.Int64Counter
}

func newOTelBridge(registry *prometheus.Registry) (*otelBridge, error) {
	reader, err := otelprom.New(otelprom.WithRegisterer(registry), otelprom.WithoutTargetInfo())
	if err != nil {
		return nil, fmt.Errorf("observability: otel prometheus reader: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("github.com/kernelmesh/orchestrator/internal/observability")

	httpRequestsTotal, err := meter.Int64Counter(
		"kernel_otel_http_requests_total",
		metric.WithDescription("HTTP requests observed via the OTel metrics bridge"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: http requests counter: %w", err)
	}

	toolCallsTotal, err := meter.Int64Counter(
		"kernel_otel_tool_calls_total",
		metric.WithDescription("Tool invocations observed via the OTel metrics bridge"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: tool calls counter: %w", err)
	}

	return &otelBridge{
		provider:          provider,
		httpRequestsTotal: httpRequestsTotal,
		toolCallsTotal:    toolCallsTotal,
	}, nil
}

func (b *otelBridge) recordHTTPRequest(ctx context.Context, method, path, status string) {
	if b == nil {
		return
	}
	b.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", status),
	))
}

func (b *otelBridge) recordToolCall(ctx context.Context, tool string, ok bool) {
	if b == nil {
		return
	}
	result := "success"
	if !ok {
		result = "error"
	}
	b.toolCallsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("result", result),
	))
}

func (b *otelBridge) shutdown(ctx context.Context) error {
	if b == nil {
		return nil
	}
	return b.provider.Shutdown(ctx)
}
