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

package cognitive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelmesh/orchestrator/internal/config"
	"github.com/kernelmesh/orchestrator/internal/contextbuilder"
	"github.com/kernelmesh/orchestrator/internal/docstore"
	"github.com/kernelmesh/orchestrator/internal/llm"
	"github.com/kernelmesh/orchestrator/internal/session"
	"github.com/kernelmesh/orchestrator/internal/storage"
	"github.com/kernelmesh/orchestrator/internal/timeline"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(text string) ([]float32, error) { return []float32{1, 0}, nil }
func (fakeEmbedder) Dimension() int                       { return 2 }

func newTestEngine(t *testing.T, summaryText string) (*Engine, *timeline.Timeline) {
	t.Helper()
	db, err := storage.Open(config.StorageConfig{Dialect: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rag := docstore.New(db, fakeEmbedder{})
	tl := timeline.New(db)
	sessions, err := session.New(t.TempDir(), fakeEmbedder{})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":{"role":"assistant","content":"` + summaryText + `"}}`))
	}))
	t.Cleanup(srv.Close)

	models, err := llm.NewModelRegistry(
		config.LLMProviderConfig{Type: "ollama", Model: "test-model", Host: srv.URL},
		config.LLMProviderConfig{Type: "ollama", Model: "test-model", Host: srv.URL},
		config.LLMProviderConfig{Type: "ollama", Model: "test-model", Host: srv.URL},
		nil, nil,
	)
	require.NoError(t, err)

	return New(sessions, rag, tl, models), tl
}

func TestAutosummarizeSkipsBelowThreshold(t *testing.T) {
	engine, tl := newTestEngine(t, "summary text")
	ctx := context.Background()

	_, err := tl.Append(ctx, "s1", "chat_message", map[string]any{"text": "hi"}, nil, "")
	require.NoError(t, err)

	res, err := engine.Autosummarize(ctx, "s1", false)
	require.NoError(t, err)
	assert.False(t, res.Ran)
}

func TestAutosummarizeForceRunsRegardless(t *testing.T) {
	engine, tl := newTestEngine(t, "summary text")
	ctx := context.Background()

	_, err := tl.Append(ctx, "s1", "chat_message", map[string]any{"text": "hi"}, nil, "")
	require.NoError(t, err)

	res, err := engine.Autosummarize(ctx, "s1", true)
	require.NoError(t, err)
	assert.True(t, res.Ran)
	assert.NotEmpty(t, res.DocumentID)
}

func TestAutosummarizeEmptyTimelineDoesNotRun(t *testing.T) {
	engine, _ := newTestEngine(t, "summary text")
	res, err := engine.Autosummarize(context.Background(), "empty-session", true)
	require.NoError(t, err)
	assert.False(t, res.Ran)
}

func TestSyncVisionToRAGIsIdempotent(t *testing.T) {
	engine, tl := newTestEngine(t, "summary text")
	ctx := context.Background()

	_, err := tl.Append(ctx, "s1", "vision_analyzed", map[string]any{"caption": "a cat"}, nil, "")
	require.NoError(t, err)

	res, err := engine.SyncVisionToRAG(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)

	// The marker event SyncVisionToRAG records after its first pass makes
	// the second pass a no-op: nothing with an id past the marker remains.
	res2, err := engine.SyncVisionToRAG(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, res2.Synced)
}

func TestSyncAudioToMemoryAppendsUserMessage(t *testing.T) {
	engine, tl := newTestEngine(t, "summary text")
	ctx := context.Background()

	_, err := tl.Append(ctx, "s1", "audio_transcribed", map[string]any{"text": "hello there"}, nil, "")
	require.NoError(t, err)

	res, err := engine.SyncAudioToMemory(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)

	msgs, err := engine.Sessions.GetMessages("s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, session.RoleUser, msgs[0].Role)
	assert.Equal(t, "audio", msgs[0].Metadata["source"])

	// A second pass past the recorded marker finds nothing new to sync.
	res2, err := engine.SyncAudioToMemory(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, res2.Synced)
}

func TestProactiveSuggestionsFlagsUnavailableSources(t *testing.T) {
	engine, _ := newTestEngine(t, "summary text")
	sc := &contextbuilder.SuperContext{
		Memory: contextbuilder.Section{Status: contextbuilder.StatusError},
		RAG:    map[string]contextbuilder.Section{"projects": {Status: contextbuilder.StatusError}},
	}

	suggestions := engine.ProactiveSuggestions(context.Background(), sc, "s1")
	kinds := map[string]bool{}
	for _, s := range suggestions {
		kinds[s.Kind] = true
	}
	assert.True(t, kinds["memory_unavailable"])
	assert.True(t, kinds["rag_unavailable"])
}

func TestRunAutonomousCycleIsolatesFailures(t *testing.T) {
	engine, tl := newTestEngine(t, "summary text")
	ctx := context.Background()

	_, err := tl.Append(ctx, "s1", "chat_message", nil, nil, "")
	require.NoError(t, err)

	report := engine.RunAutonomousCycle(ctx, "s1")
	assert.NoError(t, report.SummaryErr)
	assert.NoError(t, report.VisionErr)
	assert.NoError(t, report.AudioErr)
	assert.NoError(t, report.RetentionErr)
}
