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

package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kernelmesh/orchestrator/internal/observability"
)

// instrumentedProvider wraps a Provider with a SpanLLMRequest span and
// the agent.llm_request duration/error metrics, so every model call is
// visible the same way regardless of backend.
type instrumentedProvider struct {
	Provider
	kind    string
	tracer  *observability.Tracer
	metrics observability.Recorder
}

// instrument wraps p with tracer/metrics, both of which may be nil.
func instrument(p Provider, kind string, tracer *observability.Tracer, metrics observability.Recorder) Provider {
	if tracer == nil && metrics == nil {
		return p
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &instrumentedProvider{Provider: p, kind: kind, tracer: tracer, metrics: metrics}
}

func (p *instrumentedProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return p.run(ctx, func(ctx context.Context) (string, error) {
		return p.Provider.Generate(ctx, prompt)
	})
}

func (p *instrumentedProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	return p.run(ctx, func(ctx context.Context) (string, error) {
		return p.Provider.Chat(ctx, messages)
	})
}

func (p *instrumentedProvider) run(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	model := p.Provider.ModelName()
	start := time.Now()

	callCtx := ctx
	var span trace.Span
	if p.tracer != nil {
		callCtx, span = p.tracer.StartLLMCall(ctx, model, 0, 0, 0)
		defer span.End()
	}

	out, err := fn(callCtx)

	p.metrics.RecordLLMCall(model, p.kind, time.Since(start))
	if err != nil {
		p.metrics.RecordLLMError(model, p.kind, "provider_error")
		if p.tracer != nil {
			p.tracer.RecordError(span, err)
		}
	}

	return out, err
}
