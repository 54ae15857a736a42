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

package kernel

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelmesh/orchestrator/internal/catalog"
	"github.com/kernelmesh/orchestrator/internal/config"
	"github.com/kernelmesh/orchestrator/internal/contextbuilder"
	"github.com/kernelmesh/orchestrator/internal/docstore"
	"github.com/kernelmesh/orchestrator/internal/executor"
	"github.com/kernelmesh/orchestrator/internal/intent"
	"github.com/kernelmesh/orchestrator/internal/llm"
	"github.com/kernelmesh/orchestrator/internal/planner"
	"github.com/kernelmesh/orchestrator/internal/session"
	"github.com/kernelmesh/orchestrator/internal/storage"
	"github.com/kernelmesh/orchestrator/internal/toolclient"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(text string) ([]float32, error) { return []float32{1, 0}, nil }
func (fakeEmbedder) Dimension() int                       { return 2 }

type fakeFilesCaller struct{}

func (fakeFilesCaller) Call(ctx context.Context, action string, args map[string]any) toolclient.Result {
	return toolclient.Ok(action, "file contents")
}

func (fakeFilesCaller) Health(ctx context.Context) toolclient.HealthStatus {
	return toolclient.HealthStatus{OK: true}
}

// newTestKernel builds a Kernel with lightweight fakes/in-memory stores,
// skipping the storage-backed Timeline and real network LLM providers.
func newTestKernel(t *testing.T, reasonerReply string) *Kernel {
	t.Helper()
	db, err := storage.Open(config.StorageConfig{Dialect: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sessions, err := session.New(t.TempDir(), fakeEmbedder{})
	require.NoError(t, err)

	rag := docstore.New(db, fakeEmbedder{})
	tools := toolclient.NewRegistryFromClients(map[string]toolclient.Caller{"files": fakeFilesCaller{}})
	ctxBuilder := contextbuilder.New(sessions, rag, tools)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":{"role":"assistant","content":` + jsonString(reasonerReply) + `}}`))
	}))
	t.Cleanup(srv.Close)

	models, err := llm.NewModelRegistry(
		config.LLMProviderConfig{Type: "ollama", Model: "test-model", Host: srv.URL},
		config.LLMProviderConfig{Type: "ollama", Model: "test-model", Host: srv.URL},
		config.LLMProviderConfig{Type: "ollama", Model: "test-model", Host: srv.URL},
		nil, nil,
	)
	require.NoError(t, err)

	pl := planner.New(catalog.Default, models)
	ex := executor.New(catalog.Default, tools, nil, nil, nil)

	return &Kernel{
		Catalog:        catalog.Default,
		Tools:          tools,
		DB:             db,
		RAG:            rag,
		Sessions:       sessions,
		ContextBuilder: ctxBuilder,
		Models:         models,
		Planner:        pl,
		Executor:       ex,
		log:            slog.Default(),
	}
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestConfidenceForGeneralIntent(t *testing.T) {
	assert.Equal(t, 0.5, confidenceFor(intent.General, "what's the weather"))
}

func TestConfidenceForSingleMatch(t *testing.T) {
	assert.Equal(t, 0.75, confidenceFor(intent.VisionAnalysis, "check this screenshot"))
}

func TestConfidenceForRepeatedMatch(t *testing.T) {
	assert.Equal(t, 0.95, confidenceFor(intent.VisionAnalysis, "screenshot this image for analysis"))
}

func TestResolveMode(t *testing.T) {
	assert.Equal(t, executor.ModePlanOnly, resolveMode("plan_only"))
	assert.Equal(t, executor.ModeStepByStep, resolveMode("step_by_step"))
	assert.Equal(t, executor.ModeAuto, resolveMode("auto"))
	assert.Equal(t, executor.ModeAuto, resolveMode(""))
	assert.Equal(t, executor.ModeAuto, resolveMode("bogus"))
}

func TestHandleOrchestrateEndToEnd(t *testing.T) {
	k := newTestKernel(t, `{"steps":[{"tool":"files","action":"read_file","args":{"path":"a.txt"}}],"reasoning":"read it"}`)

	body := `{"prompt":"read a.txt","session_id":"s1","execution_mode":"auto"}`
	req := httptest.NewRequest(http.MethodPost, "/orchestrate", strings.NewReader(body))
	rec := httptest.NewRecorder()

	k.handleOrchestrate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var resp orchestrateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.RequiresConfirmation)
	require.Len(t, resp.ExecutionResults, 1)
	assert.Equal(t, "files", resp.ExecutionResults[0].Tool)
	assert.Equal(t, "success", resp.ExecutionResults[0].Status)
}

func TestHandleOrchestrateRejectsEmptyPrompt(t *testing.T) {
	k := newTestKernel(t, `{}`)
	req := httptest.NewRequest(http.MethodPost, "/orchestrate", strings.NewReader(`{"prompt":""}`))
	rec := httptest.NewRecorder()

	k.handleOrchestrate(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleOrchestrateRejectsInvalidSessionID(t *testing.T) {
	k := newTestKernel(t, `{}`)
	req := httptest.NewRequest(http.MethodPost, "/orchestrate", strings.NewReader(`{"prompt":"hi","session_id":"bad id!"}`))
	rec := httptest.NewRecorder()

	k.handleOrchestrate(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealthAggregatesToolStatus(t *testing.T) {
	k := newTestKernel(t, `{}`)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	k.handleHealth(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}
