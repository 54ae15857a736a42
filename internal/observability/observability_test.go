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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecording(t *testing.T) {
	metrics, err := NewMetrics(&MetricsConfig{Enabled: true, Namespace: "test_agent"})
	require.NoError(t, err)

	metrics.RecordAgentCall("planner", "reasoning", 100*time.Millisecond)
	metrics.RecordAgentCall("planner", "reasoning", 200*time.Millisecond)
	metrics.RecordAgentError("planner", "reasoning", "timeout")
}

func TestToolMetricsRecording(t *testing.T) {
	metrics, err := NewMetrics(&MetricsConfig{Enabled: true, Namespace: "test_tool"})
	require.NoError(t, err)

	metrics.RecordToolCall("search", 50*time.Millisecond)
	metrics.RecordToolCall("write_file", 100*time.Millisecond)
	metrics.RecordToolError("search", "remote_error")
}

func TestLLMMetricsRecording(t *testing.T) {
	metrics, err := NewMetrics(&MetricsConfig{Enabled: true, Namespace: "test_llm"})
	require.NoError(t, err)

	metrics.RecordLLMCall("gpt-4o", "openai", 500*time.Millisecond)
	metrics.RecordLLMTokens("gpt-4o", "openai", 100, 50)
	metrics.RecordLLMError("gpt-4o", "openai", "rate_limited")
}

func TestHTTPMetricsRecording(t *testing.T) {
	metrics, err := NewMetrics(&MetricsConfig{Enabled: true, Namespace: "test_http"})
	require.NoError(t, err)

	metrics.RecordHTTPRequest("POST", "/orchestrate", 200, 10*time.Millisecond, 128, 512)
}

func TestMetricsShutdownReleasesOTelBridge(t *testing.T) {
	metrics, err := NewMetrics(&MetricsConfig{Enabled: true, Namespace: "test_shutdown"})
	require.NoError(t, err)
	require.NotNil(t, metrics.otel)

	metrics.RecordHTTPRequest("GET", "/health", 200, time.Millisecond, 0, 0)
	metrics.RecordToolCall("files", time.Millisecond)

	assert.NoError(t, metrics.Shutdown(context.Background()))
}

func TestMetricsDisabledReturnsNil(t *testing.T) {
	metrics, err := NewMetrics(&MetricsConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, metrics)
	assert.NoError(t, metrics.Shutdown(context.Background()))
}

func TestNoopMetrics(t *testing.T) {
	var rec Recorder = NoopMetrics{}

	rec.RecordAgentCall("planner", "reasoning", 100*time.Millisecond)
	rec.RecordToolCall("test", 50*time.Millisecond)
	rec.RecordLLMCall("test-model", "stub", 300*time.Millisecond)
}

func TestNoopTracer(t *testing.T) {
	tracer := NoopTracer{}

	ctx := context.Background()
	_, span := tracer.Start(ctx, "test_span")
	defer span.End()

	_, span = tracer.StartAgentRun(ctx, "sess-1", "evt-1", "search", "auto", "hello")
	defer span.End()
}

func TestDebugExporterCapturesKnownSpans(t *testing.T) {
	exp := NewDebugExporter()
	assert.True(t, exp.shouldCapture(SpanAgentCall))
	assert.True(t, exp.shouldCapture(SpanLLMRequest))
	assert.True(t, exp.shouldCapture(SpanToolExecution))
	assert.True(t, exp.shouldCapture(SpanMemoryLookup))
	assert.True(t, exp.shouldCapture(SpanPlanStep))
	assert.False(t, exp.shouldCapture("unrelated.span"))
}

func TestDebugExporterCount(t *testing.T) {
	exp := NewDebugExporter()
	assert.Equal(t, 0, exp.Count())
	exp.Clear()
	assert.Equal(t, 0, exp.Count())
}

func TestTracingConfigDefaults(t *testing.T) {
	cfg := TracingConfig{}
	cfg.SetDefaults()

	assert.Equal(t, DefaultServiceName, cfg.ServiceName)
	assert.Equal(t, DefaultSamplingRate, cfg.SamplingRate)
	assert.Equal(t, "otlp", cfg.Exporter)
	assert.Equal(t, DefaultOTLPEndpoint, cfg.Endpoint)
}

func BenchmarkMetricsRecording(b *testing.B) {
	metrics, err := NewMetrics(&MetricsConfig{Enabled: true, Namespace: "bench_agent"})
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		metrics.RecordAgentCall("planner", "reasoning", 100*time.Millisecond)
	}
}
