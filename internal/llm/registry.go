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
	"fmt"

	"github.com/kernelmesh/orchestrator/internal/catalog"
	"github.com/kernelmesh/orchestrator/internal/config"
	"github.com/kernelmesh/orchestrator/internal/observability"
)

// ModelRegistry resolves a catalog.LLMRole to a concrete Provider,
// exactly the re-architecture called for in spec Design Notes §9:
// downstream components carry the closed role variant, never a raw model
// string.
type ModelRegistry struct {
	byRole map[catalog.LLMRole]Provider
}

// NewModelRegistry builds providers for the three roles from cfg. tracer
// and metrics may be nil; when both are nil the providers are used
// unwrapped, otherwise every provider call goes through instrument.
func NewModelRegistry(reasoning, coding, vision config.LLMProviderConfig, tracer *observability.Tracer, metrics observability.Recorder) (*ModelRegistry, error) {
	r := &ModelRegistry{byRole: make(map[catalog.LLMRole]Provider, 3)}
	for role, cfg := range map[catalog.LLMRole]config.LLMProviderConfig{
		catalog.RoleReasoning: reasoning,
		catalog.RoleCoding:    coding,
		catalog.RoleVision:    vision,
	} {
		cfg.SetDefaults()
		p, err := build(cfg)
		if err != nil {
			return nil, fmt.Errorf("build provider for role %s: %w", role, err)
		}
		r.byRole[role] = instrument(p, cfg.Type, tracer, metrics)
	}
	return r, nil
}

func build(cfg config.LLMProviderConfig) (Provider, error) {
	switch cfg.Type {
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "gemini":
		return NewGeminiProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider type: %s", cfg.Type)
	}
}

// Resolve returns the Provider backing role.
func (r *ModelRegistry) Resolve(role catalog.LLMRole) (Provider, error) {
	p, ok := r.byRole[role]
	if !ok {
		return nil, fmt.Errorf("no provider configured for role %s", role)
	}
	return p, nil
}
