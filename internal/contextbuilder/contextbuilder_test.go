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

package contextbuilder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelmesh/orchestrator/internal/config"
	"github.com/kernelmesh/orchestrator/internal/docstore"
	"github.com/kernelmesh/orchestrator/internal/intent"
	"github.com/kernelmesh/orchestrator/internal/session"
	"github.com/kernelmesh/orchestrator/internal/storage"
	"github.com/kernelmesh/orchestrator/internal/toolclient"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(text string) ([]float32, error) { return []float32{1, 0}, nil }
func (fakeEmbedder) Dimension() int                       { return 2 }

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	db, err := storage.Open(config.StorageConfig{Dialect: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sessions, err := session.New(t.TempDir(), fakeEmbedder{})
	require.NoError(t, err)

	rag := docstore.New(db, fakeEmbedder{})
	tools := toolclient.NewRegistryFromClients(map[string]toolclient.Caller{})

	return New(sessions, rag, tools)
}

func TestBuildIncludesMemoryAndRAGSections(t *testing.T) {
	b := newTestBuilder(t)
	require.NoError(t, b.Sessions.AddMessage("s1", session.Message{Role: session.RoleUser, Content: "hello"}, nil))

	sc := b.Build(context.Background(), "what's the weather", "s1")
	assert.Equal(t, StatusOK, sc.Memory.Status)
	assert.NotEmpty(t, sc.RAG)
	assert.Contains(t, sc.SourcesAvailable, "memory")
}

func TestBuildToolSectionWithNoClientReturnsError(t *testing.T) {
	b := newTestBuilder(t)
	sec := b.buildToolSection(context.Background(), "vision", "analyze_screenshot", nil)
	assert.Equal(t, StatusError, sec.Status)
	assert.Contains(t, sec.Error, "no client")
}

func TestBuildToolSectionWithFakeClient(t *testing.T) {
	b := newTestBuilder(t)
	b.Tools = toolclient.NewRegistryFromClients(map[string]toolclient.Caller{
		"vision": fakeCaller{},
	})
	sec := b.buildToolSection(context.Background(), "vision", "analyze_screenshot", nil)
	assert.Equal(t, StatusOK, sec.Status)
}

type fakeCaller struct{}

func (fakeCaller) Call(ctx context.Context, action string, args map[string]any) toolclient.Result {
	return toolclient.Ok(action, map[string]any{"ok": true})
}

func (fakeCaller) Health(ctx context.Context) toolclient.HealthStatus {
	return toolclient.HealthStatus{OK: true}
}

func TestSummarizeRendersSections(t *testing.T) {
	sc := &SuperContext{
		Memory: Section{Status: StatusOK},
		RAG:    map[string]Section{"projects": {Status: StatusOK}},
	}
	summary := sc.Summarize()
	assert.Contains(t, summary, "Memory: present")
	assert.Contains(t, summary, "RAG: 1 datasets")
}

func TestProfileForAdaptsToIntent(t *testing.T) {
	p := profileFor(intent.RulesQuery)
	assert.Contains(t, p, docstore.DatasetAgentCore)
}

func TestBuildPopulatesSystemSectionOnSystemQuery(t *testing.T) {
	b := newTestBuilder(t)
	b.Tools = toolclient.NewRegistryFromClients(map[string]toolclient.Caller{
		"system": fakeCaller{},
	})

	sc := b.Build(context.Background(), "what running processes do you see", "s1")
	require.NotNil(t, sc.System)
	assert.Equal(t, StatusOK, sc.System.Status)
	assert.Contains(t, sc.SourcesAvailable, "system")
}
