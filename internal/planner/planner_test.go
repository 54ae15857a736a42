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

package planner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelmesh/orchestrator/internal/catalog"
	"github.com/kernelmesh/orchestrator/internal/config"
	"github.com/kernelmesh/orchestrator/internal/contextbuilder"
	"github.com/kernelmesh/orchestrator/internal/llm"
)

func TestFallbackPlan(t *testing.T) {
	plan := FallbackPlan("what's 2+2")
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "llm", plan.Steps[0].Tool)
	assert.Equal(t, "generate", plan.Steps[0].Action)
	assert.Equal(t, catalog.RoleReasoning, plan.Steps[0].PreferredLLM)
}

func TestParsePlanRaw(t *testing.T) {
	plan, err := parsePlan(`{"steps":[{"tool":"files","action":"read_file","args":{"path":"a.txt"}}],"reasoning":"read it"}`)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "files", plan.Steps[0].Tool)
}

func TestParsePlanToleratesProseWrapping(t *testing.T) {
	raw := "Sure, here's the plan:\n```json\n{\"steps\":[{\"tool\":\"files\",\"action\":\"read_file\",\"args\":{\"path\":\"a.txt\"}}],\"reasoning\":\"ok\"}\n```\nLet me know if that works."
	plan, err := parsePlan(raw)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
}

func TestParsePlanInvalidJSON(t *testing.T) {
	_, err := parsePlan("not json at all")
	assert.Error(t, err)
}

func TestResolvePreferredLLMRespectsExplicitPreference(t *testing.T) {
	role, err := catalog.Default.ResolvePreferredLLM("files", "read_file", catalog.RoleVision)
	require.NoError(t, err)
	assert.Equal(t, catalog.RoleVision, role)
}

func TestResolvePreferredLLMRejectsInvalidRole(t *testing.T) {
	_, err := catalog.Default.ResolvePreferredLLM("files", "read_file", catalog.LLMRole("bogus"))
	assert.Error(t, err)
}

func TestResolvePreferredLLMVisionTool(t *testing.T) {
	role, err := catalog.Default.ResolvePreferredLLM("vision", "analyze_screenshot", "")
	require.NoError(t, err)
	assert.Equal(t, catalog.RoleVision, role)
}

func TestResolvePreferredLLMDefaultsFromCatalog(t *testing.T) {
	role, err := catalog.Default.ResolvePreferredLLM("files", "write_file", "")
	require.NoError(t, err)
	assert.Equal(t, catalog.RoleCoding, role)
}

func TestResolvePreferredLLMDefaultsToReasoningWhenActionUnknown(t *testing.T) {
	role, err := catalog.Default.ResolvePreferredLLM("memory", "recall", "")
	require.NoError(t, err)
	assert.Equal(t, catalog.RoleReasoning, role)
}

func TestPlanUsesFallbackWhenReasonerReturnsInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":{"role":"assistant","content":"I cannot help with that."}}`))
	}))
	defer srv.Close()

	models, err := llm.NewModelRegistry(
		config.LLMProviderConfig{Type: "ollama", Model: "test-model", Host: srv.URL},
		config.LLMProviderConfig{Type: "ollama", Model: "test-model", Host: srv.URL},
		config.LLMProviderConfig{Type: "ollama", Model: "test-model", Host: srv.URL},
		nil, nil,
	)
	require.NoError(t, err)

	p := New(catalog.Default, models)
	plan, err := p.Plan(context.Background(), "do something", &contextbuilder.SuperContext{RAG: map[string]contextbuilder.Section{}})
	require.NoError(t, err)
	assert.Contains(t, plan.Reasoning, "fallback")
}

func TestPlanUsesValidPlanFromReasoner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":{"role":"assistant","content":"{\"steps\":[{\"tool\":\"files\",\"action\":\"read_file\",\"args\":{\"path\":\"a.txt\"}}],\"reasoning\":\"reading file\"}"}}`))
	}))
	defer srv.Close()

	models, err := llm.NewModelRegistry(
		config.LLMProviderConfig{Type: "ollama", Model: "test-model", Host: srv.URL},
		config.LLMProviderConfig{Type: "ollama", Model: "test-model", Host: srv.URL},
		config.LLMProviderConfig{Type: "ollama", Model: "test-model", Host: srv.URL},
		nil, nil,
	)
	require.NoError(t, err)

	p := New(catalog.Default, models)
	plan, err := p.Plan(context.Background(), "read a.txt", &contextbuilder.SuperContext{RAG: map[string]contextbuilder.Section{}})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "files", plan.Steps[0].Tool)
	assert.Equal(t, catalog.RoleCoding, plan.Steps[0].PreferredLLM)
}
