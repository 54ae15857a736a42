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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvironmentDefaults(t *testing.T) {
	cfg := FromEnvironment()
	require.NotNil(t, cfg)

	assert.Equal(t, ":8090", cfg.ListenAddr)
	assert.Equal(t, "sqlite", cfg.Storage.Dialect)
	assert.Equal(t, "kernel.db", cfg.Storage.DSN)
	assert.Equal(t, "ollama", cfg.Embedder.Type)
	assert.Equal(t, "anthropic", cfg.ReasoningLLM.Type)
	assert.Equal(t, 4096, cfg.ReasoningLLM.MaxTokens)
	assert.Equal(t, "./sessions", cfg.SessionRoot)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Observability.Tracing.Enabled)
	assert.True(t, cfg.Observability.Metrics.Enabled)

	for _, tool := range []string{"files", "memory", "rag", "vision", "search", "system", "control", "audio", "documents", "llm"} {
		ep, ok := cfg.Tools[tool]
		assert.True(t, ok, "expected tool endpoint for %s", tool)
		assert.Contains(t, ep.BaseURL, tool)
	}
}

func TestFromEnvironmentRespectsOverrides(t *testing.T) {
	t.Setenv("KERNEL_LISTEN_ADDR", ":9999")
	t.Setenv("KERNEL_TRACING_ENABLED", "true")
	t.Setenv("KERNEL_METRICS_ENABLED", "false")

	cfg := FromEnvironment()
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.True(t, cfg.Observability.Tracing.Enabled)
	assert.False(t, cfg.Observability.Metrics.Enabled)
}

func TestVectorStoreConfigValidate(t *testing.T) {
	c := &VectorStoreConfig{Type: "qdrant"}
	c.SetDefaults()
	assert.NoError(t, c.Validate())

	bad := &VectorStoreConfig{Type: "pinecone"}
	assert.Error(t, bad.Validate())

	unsupported := &VectorStoreConfig{Type: "madeup"}
	assert.Error(t, unsupported.Validate())
}

func TestStorageConfigValidate(t *testing.T) {
	c := &StorageConfig{}
	c.SetDefaults()
	assert.NoError(t, c.Validate())

	bad := &StorageConfig{Dialect: "oracle", DSN: "x"}
	assert.Error(t, bad.Validate())
}
