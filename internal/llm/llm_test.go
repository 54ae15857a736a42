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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelmesh/orchestrator/internal/catalog"
	"github.com/kernelmesh/orchestrator/internal/config"
	"github.com/kernelmesh/orchestrator/internal/observability"
)

type fakeProvider struct {
	response string
	err      error
	model    string
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func (f *fakeProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	return f.response, f.err
}

func (f *fakeProvider) ModelName() string { return f.model }

func TestInstrumentPassesThroughWithNoTracerOrMetrics(t *testing.T) {
	p := &fakeProvider{response: "hi", model: "test-model"}
	wrapped := instrument(p, "reasoning", nil, nil)
	assert.Same(t, Provider(p), wrapped)
}

func TestInstrumentWrapsAndRecordsMetrics(t *testing.T) {
	p := &fakeProvider{response: "hi", model: "test-model"}
	wrapped := instrument(p, "reasoning", nil, observability.NoopMetrics{})
	out, err := wrapped.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestInstrumentPropagatesError(t *testing.T) {
	p := &fakeProvider{err: errors.New("boom"), model: "test-model"}
	wrapped := instrument(p, "reasoning", nil, nil)
	_, err := wrapped.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	assert.Error(t, err)
}

func TestBuildUnsupportedProviderType(t *testing.T) {
	_, err := build(config.LLMProviderConfig{Type: "madeup", Model: "x"})
	assert.Error(t, err)
}

func TestBuildKnownProviderTypes(t *testing.T) {
	for _, typ := range []string{"anthropic", "openai", "gemini", "ollama"} {
		cfg := config.LLMProviderConfig{Type: typ, Model: "test-model"}
		cfg.SetDefaults()
		p, err := build(cfg)
		require.NoError(t, err)
		assert.Equal(t, "test-model", p.ModelName())
	}
}

func TestModelRegistryResolve(t *testing.T) {
	reg, err := NewModelRegistry(
		config.LLMProviderConfig{Type: "anthropic", Model: "reasoning-model"},
		config.LLMProviderConfig{Type: "anthropic", Model: "coding-model"},
		config.LLMProviderConfig{Type: "openai", Model: "vision-model"},
		nil, nil,
	)
	require.NoError(t, err)

	p, err := reg.Resolve(catalog.RoleReasoning)
	require.NoError(t, err)
	assert.Equal(t, "reasoning-model", p.ModelName())

	_, err = reg.Resolve(catalog.LLMRole("nonexistent"))
	assert.Error(t, err)
}

func TestNewModelRegistryRejectsUnsupportedType(t *testing.T) {
	_, err := NewModelRegistry(
		config.LLMProviderConfig{Type: "madeup", Model: "x"},
		config.LLMProviderConfig{Type: "anthropic", Model: "x"},
		config.LLMProviderConfig{Type: "anthropic", Model: "x"},
		nil, nil,
	)
	assert.Error(t, err)
}
